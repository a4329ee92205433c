package chatrepo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/infrastructure/database/dbschema"
	"houzel-server/internal/infrastructure/database/transaction"
	"houzel-server/internal/utils/platformerrors"
)

// ChatGormRepository implements ChatRepository using GORM
type ChatGormRepository struct {
	db *transaction.Database
}

var _ chat.ChatRepository = (*ChatGormRepository)(nil)

// NewChatGormRepository creates a new GORM-based chat repository
func NewChatGormRepository(db *transaction.Database) chat.ChatRepository {
	return &ChatGormRepository{db: db}
}

// Create creates a new chat
func (r *ChatGormRepository) Create(ctx context.Context, c *chat.Chat) error {
	schema := dbschema.NewSchemaChat(c)

	tx := r.db.GetTx(ctx)
	if err := tx.Create(schema).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to create chat", err)
	}

	c.ID = schema.ID
	c.CreatedAt = schema.CreatedAt
	c.UpdatedAt = schema.UpdatedAt

	return nil
}

// FindByID finds a chat by its internal ID
func (r *ChatGormRepository) FindByID(ctx context.Context, id uint) (*chat.Chat, error) {
	var schema dbschema.Chat
	tx := r.db.GetTx(ctx)
	if err := tx.Where("id = ?", id).First(&schema).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", err)
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find chat", err)
	}
	return schema.EtoD(), nil
}

// FindByPublicID finds a chat by its public ID
func (r *ChatGormRepository) FindByPublicID(ctx context.Context, publicID string) (*chat.Chat, error) {
	var schema dbschema.Chat
	tx := r.db.GetTx(ctx)
	if err := tx.Where("public_id = ?", publicID).First(&schema).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", err)
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find chat", err)
	}
	return schema.EtoD(), nil
}

// List returns all chats, most recently updated first
func (r *ChatGormRepository) List(ctx context.Context) ([]*chat.Chat, error) {
	var schemas []dbschema.Chat
	tx := r.db.GetTx(ctx)
	if err := tx.Order("updated_at DESC").Find(&schemas).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list chats", err)
	}

	chats := make([]*chat.Chat, 0, len(schemas))
	for i := range schemas {
		chats = append(chats, schemas[i].EtoD())
	}
	return chats, nil
}

// UpdateTitle sets the chat title unconditionally
func (r *ChatGormRepository) UpdateTitle(ctx context.Context, id uint, title string) error {
	tx := r.db.GetTx(ctx)
	result := tx.Model(&dbschema.Chat{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update chat title", result.Error)
	}
	if result.RowsAffected == 0 {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", nil)
	}
	return nil
}

// UpdateTitleIfPlaceholder sets the title only while it is still the
// placeholder. The single conditional UPDATE makes concurrent derivation
// attempts race-free, first writer wins.
func (r *ChatGormRepository) UpdateTitleIfPlaceholder(ctx context.Context, id uint, title string) (bool, error) {
	tx := r.db.GetTx(ctx)
	result := tx.Model(&dbschema.Chat{}).
		Where("id = ? AND title = ?", id, chat.PlaceholderTitle).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to update chat title", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// Delete removes a chat and all of its messages
func (r *ChatGormRepository) Delete(ctx context.Context, id uint) error {
	tx := r.db.GetTx(ctx)
	return tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ?", id).Delete(&dbschema.Message{}).Error; err != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete chat messages", err)
		}
		result := tx.Delete(&dbschema.Chat{}, "id = ?", id)
		if result.Error != nil {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to delete chat", result.Error)
		}
		if result.RowsAffected == 0 {
			return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "chat not found", nil)
		}
		return nil
	})
}

// AppendMessage appends one message. Messages are append-only, there is no
// update path.
func (r *ChatGormRepository) AppendMessage(ctx context.Context, m *chat.Message) error {
	schema, err := dbschema.NewSchemaMessage(m)
	if err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeValidation, "failed to convert message to schema", err)
	}

	tx := r.db.GetTx(ctx)
	if err := tx.Create(schema).Error; err != nil {
		return platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to append message", err)
	}

	m.ID = schema.ID
	m.CreatedAt = schema.CreatedAt

	return nil
}

// ListMessages returns a chat's messages in creation order
func (r *ChatGormRepository) ListMessages(ctx context.Context, chatID uint) ([]*chat.Message, error) {
	var schemas []dbschema.Message
	tx := r.db.GetTx(ctx)
	if err := tx.Where("chat_id = ?", chatID).Order("id ASC").Find(&schemas).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list messages", err)
	}

	messages := make([]*chat.Message, 0, len(schemas))
	for i := range schemas {
		m, err := schemas[i].EtoD()
		if err != nil {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeInternal, "failed to convert message", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// FindMessageByID finds one message scoped to a chat
func (r *ChatGormRepository) FindMessageByID(ctx context.Context, chatID uint, messageID uint) (*chat.Message, error) {
	var schema dbschema.Message
	tx := r.db.GetTx(ctx)
	if err := tx.Where("chat_id = ? AND id = ?", chatID, messageID).First(&schema).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "message not found", err)
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find message", err)
	}
	return schema.EtoD()
}

// FirstPromptMessage returns the earliest prompt message of a chat
func (r *ChatGormRepository) FirstPromptMessage(ctx context.Context, chatID uint) (*chat.Message, error) {
	var schema dbschema.Message
	tx := r.db.GetTx(ctx)
	if err := tx.Where("chat_id = ? AND kind = ?", chatID, string(chat.KindPrompt)).Order("id ASC").First(&schema).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeNotFound, "no prompt message found", err)
		}
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to find prompt message", err)
	}
	return schema.EtoD()
}

// FindPlaceholderChats returns chats still holding the placeholder title
// that were created before olderThan
func (r *ChatGormRepository) FindPlaceholderChats(ctx context.Context, olderThan time.Time) ([]*chat.Chat, error) {
	var schemas []dbschema.Chat
	tx := r.db.GetTx(ctx)
	if err := tx.Where("title = ? AND created_at < ?", chat.PlaceholderTitle, olderThan).Find(&schemas).Error; err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerRepository, platformerrors.ErrorTypeDatabaseError, "failed to list placeholder chats", err)
	}

	chats := make([]*chat.Chat, 0, len(schemas))
	for i := range schemas {
		chats = append(chats, schemas[i].EtoD())
	}
	return chats, nil
}
