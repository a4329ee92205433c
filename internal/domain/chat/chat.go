package chat

import (
	"context"
	"time"
)

// PlaceholderTitle is assigned at chat creation and replaced by title
// derivation or an explicit rename.
const PlaceholderTitle = "Sem título"

// MessageKind classifies a message within a chat. Kind is immutable after
// creation.
type MessageKind string

const (
	KindPrompt   MessageKind = "prompt"
	KindResponse MessageKind = "response"
	KindFeedback MessageKind = "feedback"
	KindError    MessageKind = "error"
)

// ValidKind reports whether k is one of the persistable message kinds.
func ValidKind(k MessageKind) bool {
	switch k {
	case KindPrompt, KindResponse, KindFeedback, KindError:
		return true
	}
	return false
}

// Chat is an ordered collection of messages with a mutable title.
type Chat struct {
	ID        uint
	PublicID  string
	Title     string
	Messages  []Message
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPlaceholderTitle reports whether the chat still awaits title derivation.
func (c *Chat) HasPlaceholderTitle() bool {
	return c.Title == "" || c.Title == PlaceholderTitle
}

// Message is one append-only unit of a chat. Feedback messages link to the
// response message that produced them through ParentID and carry the full
// scoring directive in Meta.
type Message struct {
	ID        uint
	PublicID  string
	ChatID    uint
	Kind      MessageKind
	Content   string
	Images    []string
	ParentID  *uint
	Meta      map[string]any
	CreatedAt time.Time
}

// ChatRepository is the persistence contract for chats and their messages.
// Messages are append-only, ListMessages returns creation order.
type ChatRepository interface {
	Create(ctx context.Context, chat *Chat) error
	FindByID(ctx context.Context, id uint) (*Chat, error)
	FindByPublicID(ctx context.Context, publicID string) (*Chat, error)
	List(ctx context.Context) ([]*Chat, error)
	UpdateTitle(ctx context.Context, id uint, title string) error
	// UpdateTitleIfPlaceholder writes title only when the stored title is
	// still the placeholder, returning whether the write happened.
	UpdateTitleIfPlaceholder(ctx context.Context, id uint, title string) (bool, error)
	Delete(ctx context.Context, id uint) error

	AppendMessage(ctx context.Context, message *Message) error
	ListMessages(ctx context.Context, chatID uint) ([]*Message, error)
	FindMessageByID(ctx context.Context, chatID uint, messageID uint) (*Message, error)
	FirstPromptMessage(ctx context.Context, chatID uint) (*Message, error)
	FindPlaceholderChats(ctx context.Context, olderThan time.Time) ([]*Chat, error)
}
