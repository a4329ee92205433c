package chat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"houzel-server/internal/interfaces/httpserver/handlers/chathandler"
	chatrequests "houzel-server/internal/interfaces/httpserver/requests/chat"
	"houzel-server/internal/interfaces/httpserver/responses"
	chatresponses "houzel-server/internal/interfaces/httpserver/responses/chat"
	"houzel-server/internal/utils/platformerrors"
)

type ChatRoute struct {
	handler       *chathandler.ChatHandler
	streamHandler *chathandler.StreamHandler
	titleHandler  *chathandler.TitleHandler
}

func NewChatRoute(
	handler *chathandler.ChatHandler,
	streamHandler *chathandler.StreamHandler,
	titleHandler *chathandler.TitleHandler,
) *ChatRoute {
	return &ChatRoute{
		handler:       handler,
		streamHandler: streamHandler,
		titleHandler:  titleHandler,
	}
}

func (route *ChatRoute) RegisterRouter(router gin.IRouter) {
	chats := router.Group("/chats")
	chats.POST("", route.createChat)
	chats.GET("", route.listChats)
	chats.GET("/:chat_id", route.handler.ChatMiddleware(), route.getChat)
	chats.PATCH("/:chat_id", route.handler.ChatMiddleware(), route.renameChat)
	chats.DELETE("/:chat_id", route.handler.ChatMiddleware(), route.deleteChat)
	chats.POST("/:chat_id/stream", route.handler.ChatMiddleware(), route.streamHandler.Stream)
	chats.GET("/:chat_id/title/stream", route.handler.ChatMiddleware(), route.titleHandler.StreamTitle)
}

func (route *ChatRoute) createChat(reqCtx *gin.Context) {
	ctx := reqCtx.Request.Context()

	var request chatrequests.CreateChatRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "invalid request body")
		return
	}

	created, err := route.handler.CreateChat(ctx, request)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to create chat")
		return
	}
	reqCtx.JSON(http.StatusCreated, chatresponses.NewChatResponse(created))
}

func (route *ChatRoute) listChats(reqCtx *gin.Context) {
	chats, err := route.handler.ListChats(reqCtx.Request.Context())
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to list chats")
		return
	}
	reqCtx.JSON(http.StatusOK, chatresponses.NewListChatsResponse(chats))
}

func (route *ChatRoute) getChat(reqCtx *gin.Context) {
	record, ok := chathandler.GetChatFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "chat not found")
		return
	}
	full, err := route.handler.GetChat(reqCtx.Request.Context(), record.PublicID)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to load chat")
		return
	}
	reqCtx.JSON(http.StatusOK, chatresponses.NewChatResponse(full))
}

func (route *ChatRoute) renameChat(reqCtx *gin.Context) {
	record, ok := chathandler.GetChatFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "chat not found")
		return
	}

	var request chatrequests.RenameChatRequest
	if err := reqCtx.ShouldBindJSON(&request); err != nil {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeValidation, "title is required")
		return
	}

	renamed, err := route.handler.RenameChat(reqCtx.Request.Context(), record.PublicID, request.Title)
	if err != nil {
		responses.HandleError(reqCtx, err, "failed to rename chat")
		return
	}
	reqCtx.JSON(http.StatusOK, chatresponses.NewChatResponse(renamed))
}

func (route *ChatRoute) deleteChat(reqCtx *gin.Context) {
	record, ok := chathandler.GetChatFromContext(reqCtx)
	if !ok {
		responses.HandleNewError(reqCtx, platformerrors.ErrorTypeNotFound, "chat not found")
		return
	}
	if err := route.handler.DeleteChat(reqCtx.Request.Context(), record.PublicID); err != nil {
		responses.HandleError(reqCtx, err, "failed to delete chat")
		return
	}
	reqCtx.JSON(http.StatusOK, gin.H{"success": true})
}
