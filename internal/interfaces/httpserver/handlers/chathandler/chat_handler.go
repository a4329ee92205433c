package chathandler

import (
	"context"

	"github.com/gin-gonic/gin"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/infrastructure/metrics"
	"houzel-server/internal/infrastructure/observability"
	chatrequests "houzel-server/internal/interfaces/httpserver/requests/chat"
	"houzel-server/internal/interfaces/httpserver/responses"
	"houzel-server/internal/utils/platformerrors"
)

const chatContextKey = "chat_record"

// ChatHandler exposes the chat lifecycle operations to the route layer.
type ChatHandler struct {
	chatService *chat.ChatService
}

func NewChatHandler(chatService *chat.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// CreateChat creates a chat and optionally seeds it with a first prompt turn.
func (h *ChatHandler) CreateChat(ctx context.Context, request chatrequests.CreateChatRequest) (*chat.Chat, error) {
	ctx, span := observability.StartSpan(ctx, "houzel-server", "ChatHandler.CreateChat")
	defer span.End()

	created, err := h.chatService.CreateChat(ctx, request.Title)
	if err != nil {
		observability.RecordError(ctx, err)
		return nil, err
	}
	metrics.ChatsCreatedTotal.Inc()

	if request.FirstMessage != "" {
		msg, err := h.chatService.AppendTurn(ctx, created.ID, chat.KindPrompt,
			request.FirstMessage, request.Images, nil, nil)
		if err != nil {
			observability.RecordError(ctx, err)
			return nil, err
		}
		created.Messages = append(created.Messages, *msg)
	}
	return created, nil
}

func (h *ChatHandler) GetChat(ctx context.Context, publicID string) (*chat.Chat, error) {
	return h.chatService.GetChatWithMessages(ctx, publicID)
}

func (h *ChatHandler) ListChats(ctx context.Context) ([]*chat.Chat, error) {
	return h.chatService.ListChats(ctx)
}

func (h *ChatHandler) RenameChat(ctx context.Context, publicID string, title string) (*chat.Chat, error) {
	return h.chatService.RenameChat(ctx, publicID, title)
}

func (h *ChatHandler) DeleteChat(ctx context.Context, publicID string) error {
	return h.chatService.DeleteChat(ctx, publicID)
}

// ChatMiddleware resolves the :chat_id path parameter into the chat record
// and aborts with 404 when it does not exist.
func (h *ChatHandler) ChatMiddleware() gin.HandlerFunc {
	return func(reqCtx *gin.Context) {
		publicID := reqCtx.Param("chat_id")
		if publicID == "" {
			responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "chat id is required")
			return
		}
		record, err := h.chatService.GetChatByPublicID(reqCtx.Request.Context(), publicID)
		if err != nil {
			responses.HandleError(reqCtx, err, "chat not found")
			return
		}
		SetChatToContext(reqCtx, record)
		reqCtx.Next()
	}
}

func SetChatToContext(reqCtx *gin.Context, record *chat.Chat) {
	reqCtx.Set(chatContextKey, record)
}

func GetChatFromContext(reqCtx *gin.Context) (*chat.Chat, bool) {
	val, ok := reqCtx.Get(chatContextKey)
	if !ok {
		return nil, false
	}
	record, ok := val.(*chat.Chat)
	return record, ok
}
