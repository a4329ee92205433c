package chatresponses

import (
	"time"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/utils/functional"
)

type MessageResponse struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Images    []string       `json:"images,omitempty"`
	ParentID  *string        `json:"parent_id,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

type ChatResponse struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Messages  []MessageResponse `json:"messages,omitempty"`
}

type ListChatsResponse struct {
	Chats []ChatResponse `json:"chats"`
}

func NewMessageResponse(m *chat.Message, parentPublicID *string) MessageResponse {
	return MessageResponse{
		ID:        m.PublicID,
		Type:      string(m.Kind),
		Content:   m.Content,
		Images:    m.Images,
		ParentID:  parentPublicID,
		Meta:      m.Meta,
		CreatedAt: m.CreatedAt,
	}
}

func NewChatResponse(c *chat.Chat) ChatResponse {
	resp := ChatResponse{
		ID:        c.PublicID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	if len(c.Messages) == 0 {
		return resp
	}
	publicByID := make(map[uint]string, len(c.Messages))
	for i := range c.Messages {
		publicByID[c.Messages[i].ID] = c.Messages[i].PublicID
	}
	resp.Messages = functional.Map(c.Messages, func(m chat.Message) MessageResponse {
		var parent *string
		if m.ParentID != nil {
			if pub, ok := publicByID[*m.ParentID]; ok {
				parent = &pub
			}
		}
		return NewMessageResponse(&m, parent)
	})
	return resp
}

func NewListChatsResponse(chats []*chat.Chat) ListChatsResponse {
	return ListChatsResponse{
		Chats: functional.Map(chats, func(c *chat.Chat) ChatResponse {
			return NewChatResponse(c)
		}),
	}
}
