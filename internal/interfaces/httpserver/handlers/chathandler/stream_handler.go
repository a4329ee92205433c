package chathandler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/domain/scoring"
	"houzel-server/internal/domain/title"
	"houzel-server/internal/infrastructure/inference"
	"houzel-server/internal/infrastructure/logger"
	"houzel-server/internal/infrastructure/metrics"
	"houzel-server/internal/infrastructure/observability"
	"houzel-server/internal/interfaces/httpserver/middlewares"
	chatrequests "houzel-server/internal/interfaces/httpserver/requests/chat"
	"houzel-server/internal/interfaces/httpserver/responses"
	"houzel-server/internal/utils/platformerrors"
)

// feedbackSeparator is written between the reply body and the feedback text
// so clients can split the two visually.
const feedbackSeparator = "\n\n\n---\n\n**Feedback automático sobre o texto gerado:**\n\n"

// feedbackMarkerOpen and feedbackMarkerClose delimit the machine-readable
// feedback payload embedded at the end of the stream body.
const (
	feedbackMarkerOpen  = "\n\n<!--FEEDBACK_JSON:"
	feedbackMarkerClose = "-->\n\n"
)

// StreamHandler runs the streaming reply pipeline: persist the incoming
// turns, stream the model reply as raw text, persist the reply, then derive
// and append feedback and trigger title derivation.
type StreamHandler struct {
	chatService  *chat.ChatService
	model        inference.Client
	compiler     scoring.Compiler
	titleService *title.TitleService
	log          zerolog.Logger
}

func NewStreamHandler(
	chatService *chat.ChatService,
	model inference.Client,
	compiler scoring.Compiler,
	titleService *title.TitleService,
) *StreamHandler {
	return &StreamHandler{
		chatService:  chatService,
		model:        model,
		compiler:     compiler,
		titleService: titleService,
		log:          logger.Component("stream_handler"),
	}
}

// Stream handles one streaming completion request against the chat already
// resolved into the gin context.
func (h *StreamHandler) Stream(reqCtx *gin.Context) {
	record, ok := GetChatFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "chat not found")
		return
	}

	var request chatrequests.StreamRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid stream request body")
		return
	}

	ctx, span := observability.StartSpan(reqCtx.Request.Context(), "houzel-server", "StreamHandler.Stream")
	defer span.End()
	observability.AddSpanAttributes(ctx,
		attribute.String("chat.public_id", record.PublicID),
		attribute.Int("chat.turn_count", len(request.Messages)),
	)

	// An empty batch opens and closes the stream without producing output.
	if len(request.Messages) == 0 {
		middlewares.PrepareRawStream(reqCtx)
		return
	}

	turns, err := h.persistIncomingTurns(ctx, record.ID, request.Messages)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to persist messages")
		return
	}

	flusher, _ := middlewares.PrepareRawStream(reqCtx)
	startTime := time.Now()
	metrics.ActiveStreams.Inc()
	defer metrics.ActiveStreams.Dec()

	// Writes stop silently on the first failure so a disconnected client
	// does not abort generation or persistence.
	var writeFailed bool
	write := func(s string) {
		if writeFailed || s == "" {
			return
		}
		if _, err := reqCtx.Writer.WriteString(s); err != nil {
			writeFailed = true
			h.log.Debug().Err(err).Str("chat_id", record.PublicID).Msg("client went away mid-stream")
			return
		}
		if flusher != nil {
			flusher.Flush()
		}
	}

	// Generation and persistence outlive the request once streaming starts.
	pipelineCtx := context.WithoutCancel(ctx)

	// The fragment callback returns nil unconditionally: write failures are
	// swallowed above, so the model runs to completion, and the adapter turns
	// its own failures into the apology reply rather than an error.
	fullText, _ := h.model.StreamReply(pipelineCtx, turns, func(fragment string) error {
		write(fragment)
		return nil
	})

	outcome := "ok"
	if fullText != "" {
		responseMsg, err := h.chatService.AppendTurn(pipelineCtx, record.ID,
			chat.KindResponse, fullText, nil, nil, nil)
		if err != nil {
			h.log.Error().Err(err).Str("chat_id", record.PublicID).Msg("failed to persist response")
			outcome = "persist_error"
		} else {
			h.appendFeedback(pipelineCtx, record, responseMsg, fullText, write)
		}
	}

	if record.HasPlaceholderTitle() {
		go h.titleService.DeriveNow(pipelineCtx, record.ID)
	}

	metrics.RecordStreamSession(outcome, time.Since(startTime).Seconds())
	reqCtx.Status(http.StatusOK)
}

// persistIncomingTurns stores the turns the client has not persisted yet,
// identified by a missing id, and returns the full batch as the model
// context window.
func (h *StreamHandler) persistIncomingTurns(ctx context.Context, chatID uint, batch []chatrequests.StreamTurn) ([]chat.Message, error) {
	turns := make([]chat.Message, 0, len(batch))
	for _, turn := range batch {
		kind := chat.MessageKind(turn.Type)
		if !chat.ValidKind(kind) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler,
				platformerrors.ErrorTypeValidation, "unknown message type: "+turn.Type, nil)
		}
		if turn.ID == nil {
			if _, err := h.chatService.AppendTurn(ctx, chatID, kind, turn.Content, turn.Images, nil, nil); err != nil {
				return nil, err
			}
		}
		turns = append(turns, chat.Message{
			ChatID:  chatID,
			Kind:    kind,
			Content: turn.Content,
			Images:  turn.Images,
		})
	}
	return turns, nil
}

// appendFeedback runs the scoring tool over the finished reply, asks the
// model for feedback text and appends it both to the chat and to the wire.
// Every failure degrades to a reply without feedback.
func (h *StreamHandler) appendFeedback(ctx context.Context, record *chat.Chat, responseMsg *chat.Message, replyText string, write func(string)) {
	directive, err := h.compiler.Compile(ctx, scoring.FeedbackInstruction, replyText, "")
	if err != nil {
		h.log.Warn().Err(err).Str("chat_id", record.PublicID).Msg("scoring tool unavailable, skipping feedback")
		metrics.RecordFeedbackDerivation("compiler_error")
		return
	}

	feedbackText, err := h.model.CompleteOnce(ctx,
		directive.EffectiveSystem(), directive.EffectivePrompt(),
		float32(directive.EffectiveTemperature()), directive.EffectiveMaxTokens())
	if err != nil {
		h.log.Warn().Err(err).Str("chat_id", record.PublicID).Msg("feedback completion failed, skipping feedback")
		metrics.RecordFeedbackDerivation("model_error")
		return
	}
	if feedbackText == "" {
		metrics.RecordFeedbackDerivation("empty")
		return
	}

	payload := scoring.NewFeedbackPayload(directive, feedbackText)
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode feedback payload")
		metrics.RecordFeedbackDerivation("encode_error")
		return
	}
	var meta map[string]any
	if err := json.Unmarshal(payloadJSON, &meta); err != nil {
		h.log.Error().Err(err).Msg("failed to decode feedback payload")
		metrics.RecordFeedbackDerivation("encode_error")
		return
	}

	if _, err := h.chatService.AppendTurn(ctx, record.ID, chat.KindFeedback,
		feedbackText, nil, &responseMsg.ID, meta); err != nil {
		h.log.Error().Err(err).Str("chat_id", record.PublicID).Msg("failed to persist feedback")
		metrics.RecordFeedbackDerivation("persist_error")
		return
	}

	write(feedbackSeparator)
	write(feedbackText)
	write(feedbackMarkerOpen + string(payloadJSON) + feedbackMarkerClose)
	metrics.RecordFeedbackDerivation("ok")
}
