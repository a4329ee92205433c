package chat

import (
	"context"
	"strings"

	"houzel-server/internal/utils/idgen"
	"houzel-server/internal/utils/platformerrors"
)

const (
	maxTitleLength  = 255
	publicIDLength  = 16
	chatIDPrefix    = "chat"
	messageIDPrefix = "msg"
)

// ChatService handles business logic for chats and their messages
type ChatService struct {
	repo ChatRepository
}

// NewChatService creates a new chat service
func NewChatService(repo ChatRepository) *ChatService {
	return &ChatService{repo: repo}
}

// CreateChat creates a chat, assigning the placeholder title when none is given.
func (s *ChatService) CreateChat(ctx context.Context, title string) (*Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = PlaceholderTitle
	}
	if len(title) > maxTitleLength {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "title exceeds maximum length", nil)
	}

	publicID, err := idgen.GenerateSecureID(chatIDPrefix, publicIDLength)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate chat id")
	}

	c := &Chat{
		PublicID: publicID,
		Title:    title,
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create chat")
	}
	return c, nil
}

// GetChatByPublicID retrieves a chat without its messages.
func (s *ChatService) GetChatByPublicID(ctx context.Context, publicID string) (*Chat, error) {
	c, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	return c, nil
}

// GetChatWithMessages retrieves a chat and its messages in creation order.
func (s *ChatService) GetChatWithMessages(ctx context.Context, publicID string) (*Chat, error) {
	c, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	messages, err := s.repo.ListMessages(ctx, c.ID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	c.Messages = make([]Message, 0, len(messages))
	for _, m := range messages {
		c.Messages = append(c.Messages, *m)
	}
	return c, nil
}

// ListChats returns all chats ordered by most recent update.
func (s *ChatService) ListChats(ctx context.Context) ([]*Chat, error) {
	chats, err := s.repo.List(ctx)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list chats")
	}
	return chats, nil
}

// RenameChat sets an explicit title.
func (s *ChatService) RenameChat(ctx context.Context, publicID string, title string) (*Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "title is required", nil)
	}
	if len(title) > maxTitleLength {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "title exceeds maximum length", nil)
	}

	c, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	if err := s.repo.UpdateTitle(ctx, c.ID, title); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to rename chat")
	}
	c.Title = title
	return c, nil
}

// DeleteChat removes a chat and cascades to its messages.
func (s *ChatService) DeleteChat(ctx context.Context, publicID string) error {
	c, err := s.repo.FindByPublicID(ctx, publicID)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "chat not found")
	}
	if err := s.repo.Delete(ctx, c.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete chat")
	}
	return nil
}

// AppendTurn appends one message to a chat, enforcing the kind and parent
// linkage invariants. A feedback message's parent must be a response message
// in the same chat.
func (s *ChatService) AppendTurn(ctx context.Context, chatID uint, kind MessageKind, content string, images []string, parentID *uint, meta map[string]any) (*Message, error) {
	if !ValidKind(kind) {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "unknown message kind", nil)
	}
	if parentID != nil {
		if kind != KindFeedback {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "parent linkage is reserved for feedback messages", nil)
		}
		parent, err := s.repo.FindMessageByID(ctx, chatID, *parentID)
		if err != nil {
			return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "parent message not found")
		}
		if parent.Kind != KindResponse {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeValidation, "feedback parent must be a response message", nil)
		}
	}

	publicID, err := idgen.GenerateSecureID(messageIDPrefix, publicIDLength)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
	}

	m := &Message{
		PublicID: publicID,
		ChatID:   chatID,
		Kind:     kind,
		Content:  content,
		Images:   images,
		ParentID: parentID,
		Meta:     meta,
	}
	if err := s.repo.AppendMessage(ctx, m); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to append message")
	}
	return m, nil
}

// ListTurns returns the chat's messages in creation order.
func (s *ChatService) ListTurns(ctx context.Context, chatID uint) ([]*Message, error) {
	messages, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list messages")
	}
	return messages, nil
}

// FirstPrompt returns the earliest prompt message of a chat, or a not found
// error when the chat has no prompts yet.
func (s *ChatService) FirstPrompt(ctx context.Context, chatID uint) (*Message, error) {
	m, err := s.repo.FirstPromptMessage(ctx, chatID)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "no prompt message found")
	}
	return m, nil
}
