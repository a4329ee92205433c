package dbschema

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/infrastructure/database"
)

func init() {
	database.RegisterSchemaForAutoMigrate(Chat{})
	database.RegisterSchemaForAutoMigrate(Message{})
}

// Chat represents the database schema for chats
type Chat struct {
	BaseModel
	PublicID string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Title    string    `gorm:"type:varchar(255);not null"`
	Messages []Message `gorm:"foreignKey:ChatID;constraint:OnDelete:CASCADE"`
}

// Message represents the database schema for chat messages. Images holds the
// ordered image reference list of prompt messages, Meta holds the scoring
// directive of feedback messages.
type Message struct {
	BaseModel
	ChatID   uint           `gorm:"index:idx_message_chat_created,priority:1;not null"`
	Chat     Chat           `gorm:"foreignKey:ChatID"`
	PublicID string         `gorm:"type:varchar(50);uniqueIndex;not null"`
	Kind     string         `gorm:"type:varchar(20);not null"`
	Content  string         `gorm:"type:text;not null"`
	Images   datatypes.JSON `gorm:"type:jsonb"`
	ParentID *uint          `gorm:"index"`
	Meta     datatypes.JSON `gorm:"type:jsonb"`
}

// NewSchemaChat creates a database schema from a domain chat
func NewSchemaChat(c *chat.Chat) *Chat {
	return &Chat{
		BaseModel: BaseModel{
			ID:        c.ID,
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		},
		PublicID: c.PublicID,
		Title:    c.Title,
	}
}

// EtoD converts database schema to domain chat (Entity to Domain)
func (c *Chat) EtoD() *chat.Chat {
	domainChat := &chat.Chat{
		ID:        c.ID,
		PublicID:  c.PublicID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, m := range c.Messages {
		dm, err := m.EtoD()
		if err != nil {
			continue
		}
		domainChat.Messages = append(domainChat.Messages, *dm)
	}
	return domainChat
}

// NewSchemaMessage creates a database schema from a domain message
func NewSchemaMessage(m *chat.Message) (*Message, error) {
	schemaMsg := &Message{
		BaseModel: BaseModel{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
		},
		ChatID:   m.ChatID,
		PublicID: m.PublicID,
		Kind:     string(m.Kind),
		Content:  m.Content,
		ParentID: m.ParentID,
	}

	if len(m.Images) > 0 {
		raw, err := json.Marshal(m.Images)
		if err != nil {
			return nil, fmt.Errorf("marshal images: %w", err)
		}
		schemaMsg.Images = datatypes.JSON(raw)
	}

	if m.Meta != nil {
		raw, err := json.Marshal(m.Meta)
		if err != nil {
			return nil, fmt.Errorf("marshal meta: %w", err)
		}
		schemaMsg.Meta = datatypes.JSON(raw)
	}

	return schemaMsg, nil
}

// EtoD converts database schema to domain message (Entity to Domain)
func (m *Message) EtoD() (*chat.Message, error) {
	domainMsg := &chat.Message{
		ID:        m.ID,
		PublicID:  m.PublicID,
		ChatID:    m.ChatID,
		Kind:      chat.MessageKind(m.Kind),
		Content:   m.Content,
		ParentID:  m.ParentID,
		CreatedAt: m.CreatedAt,
	}

	if len(m.Images) > 0 {
		if err := json.Unmarshal(m.Images, &domainMsg.Images); err != nil {
			return nil, fmt.Errorf("unmarshal images: %w", err)
		}
	}

	if len(m.Meta) > 0 {
		if err := json.Unmarshal(m.Meta, &domainMsg.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal meta: %w", err)
		}
	}

	return domainMsg, nil
}
