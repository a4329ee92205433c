package chathandler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"houzel-server/internal/domain/title"
	"houzel-server/internal/infrastructure/logger"
	"houzel-server/internal/infrastructure/metrics"
	"houzel-server/internal/interfaces/httpserver/middlewares"
	"houzel-server/internal/interfaces/httpserver/responses"
	"houzel-server/internal/utils/platformerrors"
)

const titleUpdateEvent = "title-update"

// TitleHandler streams title derivation progress for a chat over SSE.
type TitleHandler struct {
	titleService *title.TitleService
	log          zerolog.Logger
}

func NewTitleHandler(titleService *title.TitleService) *TitleHandler {
	return &TitleHandler{
		titleService: titleService,
		log:          logger.Component("title_handler"),
	}
}

// StreamTitle emits title-update events until the chat has a real title or
// the watch ceiling elapses, then closes with the end-of-stream sentinel.
func (h *TitleHandler) StreamTitle(reqCtx *gin.Context) {
	record, ok := GetChatFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "chat not found")
		return
	}

	flusher, ok := middlewares.PrepareSSE(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeInternal, "streaming unsupported")
		return
	}

	writeEvent := func(data string) error {
		if _, err := reqCtx.Writer.WriteString("event: " + titleUpdateEvent + "\ndata: " + data + "\n\n"); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.titleService.Watch(reqCtx.Request.Context(), record.ID, func(derived string) error {
		body, err := json.Marshal(gin.H{"title": derived})
		if err != nil {
			return err
		}
		metrics.RecordTitleDerivation("delivered")
		return writeEvent(string(body))
	})
	if err != nil {
		h.log.Debug().Err(err).Str("chat_id", record.PublicID).Msg("title watch ended early")
		return
	}

	if err := writeEvent(title.EndOfStreamSentinel); err != nil {
		h.log.Debug().Err(err).Str("chat_id", record.PublicID).Msg("client closed title stream")
	}
	reqCtx.Status(http.StatusOK)
}
