package chat_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"houzel-server/internal/domain/chat"
)

// memoryChatRepository is an in-memory ChatRepository for testing.
type memoryChatRepository struct {
	mu       sync.Mutex
	nextID   uint
	chats    map[uint]*chat.Chat
	messages map[uint][]*chat.Message
}

func newMemoryChatRepository() *memoryChatRepository {
	return &memoryChatRepository{
		chats:    make(map[uint]*chat.Chat),
		messages: make(map[uint][]*chat.Message),
	}
}

func (m *memoryChatRepository) Create(_ context.Context, c *chat.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	m.chats[c.ID] = &stored
	return nil
}

func (m *memoryChatRepository) FindByID(_ context.Context, id uint) (*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %d not found", id)
	}
	copied := *c
	return &copied, nil
}

func (m *memoryChatRepository) FindByPublicID(_ context.Context, publicID string) (*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.chats {
		if c.PublicID == publicID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("chat %s not found", publicID)
}

func (m *memoryChatRepository) List(_ context.Context) ([]*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*chat.Chat, 0, len(m.chats))
	for _, c := range m.chats {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryChatRepository) UpdateTitle(_ context.Context, id uint, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return fmt.Errorf("chat %d not found", id)
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return nil
}

func (m *memoryChatRepository) UpdateTitleIfPlaceholder(_ context.Context, id uint, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return false, fmt.Errorf("chat %d not found", id)
	}
	if c.Title != chat.PlaceholderTitle {
		return false, nil
	}
	c.Title = title
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m *memoryChatRepository) Delete(_ context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, id)
	delete(m.messages, id)
	return nil
}

func (m *memoryChatRepository) AppendMessage(_ context.Context, msg *chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	msg.ID = m.nextID
	msg.CreatedAt = time.Now()
	stored := *msg
	m.messages[msg.ChatID] = append(m.messages[msg.ChatID], &stored)
	return nil
}

func (m *memoryChatRepository) ListMessages(_ context.Context, chatID uint) ([]*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*chat.Message, 0, len(m.messages[chatID]))
	for _, msg := range m.messages[chatID] {
		copied := *msg
		out = append(out, &copied)
	}
	return out, nil
}

func (m *memoryChatRepository) FindMessageByID(_ context.Context, chatID uint, messageID uint) (*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[chatID] {
		if msg.ID == messageID {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("message %d not found in chat %d", messageID, chatID)
}

func (m *memoryChatRepository) FirstPromptMessage(_ context.Context, chatID uint) (*chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.messages[chatID] {
		if msg.Kind == chat.KindPrompt {
			copied := *msg
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no prompt message in chat %d", chatID)
}

func (m *memoryChatRepository) FindPlaceholderChats(_ context.Context, _ time.Time) ([]*chat.Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*chat.Chat
	for _, c := range m.chats {
		if c.Title == chat.PlaceholderTitle {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func TestCreateChatAssignsPlaceholderTitle(t *testing.T) {
	service := chat.NewChatService(newMemoryChatRepository())

	cases := []struct {
		name  string
		title string
		want  string
	}{
		{"empty title", "", chat.PlaceholderTitle},
		{"whitespace title", "   ", chat.PlaceholderTitle},
		{"explicit title", "Redação sobre mobilidade", "Redação sobre mobilidade"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			created, err := service.CreateChat(context.Background(), tc.title)
			if err != nil {
				t.Fatalf("CreateChat(%q) returned error: %v", tc.title, err)
			}
			if created.Title != tc.want {
				t.Errorf("title = %q, want %q", created.Title, tc.want)
			}
			if !strings.HasPrefix(created.PublicID, "chat_") {
				t.Errorf("public id %q missing chat prefix", created.PublicID)
			}
		})
	}
}

func TestCreateChatRejectsOverlongTitle(t *testing.T) {
	service := chat.NewChatService(newMemoryChatRepository())

	if _, err := service.CreateChat(context.Background(), strings.Repeat("a", 256)); err == nil {
		t.Fatal("expected error for title longer than 255 bytes")
	}
}

func TestAppendTurnRejectsUnknownKind(t *testing.T) {
	service := chat.NewChatService(newMemoryChatRepository())

	created, err := service.CreateChat(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if _, err := service.AppendTurn(context.Background(), created.ID, "system", "oi", nil, nil, nil); err == nil {
		t.Fatal("expected error for unknown message kind")
	}
}

func TestAppendTurnParentLinkage(t *testing.T) {
	service := chat.NewChatService(newMemoryChatRepository())
	ctx := context.Background()

	created, err := service.CreateChat(ctx, "")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	prompt, err := service.AppendTurn(ctx, created.ID, chat.KindPrompt, "Corrija minha redação", nil, nil, nil)
	if err != nil {
		t.Fatalf("append prompt: %v", err)
	}
	response, err := service.AppendTurn(ctx, created.ID, chat.KindResponse, "Sua redação está boa.", nil, nil, nil)
	if err != nil {
		t.Fatalf("append response: %v", err)
	}

	// Parent linkage is reserved for feedback messages.
	if _, err := service.AppendTurn(ctx, created.ID, chat.KindResponse, "x", nil, &response.ID, nil); err == nil {
		t.Error("expected error when a response message carries a parent")
	}

	// A feedback parent must be a response, not a prompt.
	if _, err := service.AppendTurn(ctx, created.ID, chat.KindFeedback, "x", nil, &prompt.ID, nil); err == nil {
		t.Error("expected error when feedback parent is a prompt message")
	}

	feedback, err := service.AppendTurn(ctx, created.ID, chat.KindFeedback, "Nota 840", nil, &response.ID,
		map[string]any{"confidence": 0.9})
	if err != nil {
		t.Fatalf("append feedback: %v", err)
	}
	if feedback.ParentID == nil || *feedback.ParentID != response.ID {
		t.Errorf("feedback parent = %v, want %d", feedback.ParentID, response.ID)
	}
}

func TestGetChatWithMessagesKeepsOrder(t *testing.T) {
	service := chat.NewChatService(newMemoryChatRepository())
	ctx := context.Background()

	created, err := service.CreateChat(ctx, "")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	for i, content := range []string{"primeira", "segunda", "terceira"} {
		kind := chat.KindPrompt
		if i%2 == 1 {
			kind = chat.KindResponse
		}
		if _, err := service.AppendTurn(ctx, created.ID, kind, content, nil, nil, nil); err != nil {
			t.Fatalf("append turn %d: %v", i, err)
		}
	}

	full, err := service.GetChatWithMessages(ctx, created.PublicID)
	if err != nil {
		t.Fatalf("GetChatWithMessages: %v", err)
	}
	if len(full.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(full.Messages))
	}
	for i, want := range []string{"primeira", "segunda", "terceira"} {
		if full.Messages[i].Content != want {
			t.Errorf("message %d content = %q, want %q", i, full.Messages[i].Content, want)
		}
	}
}

func TestFirstPromptSkipsResponses(t *testing.T) {
	service := chat.NewChatService(newMemoryChatRepository())
	ctx := context.Background()

	created, err := service.CreateChat(ctx, "")
	if err != nil {
		t.Fatalf("CreateChat: %v", err)
	}
	if _, err := service.AppendTurn(ctx, created.ID, chat.KindResponse, "resposta antiga", nil, nil, nil); err != nil {
		t.Fatalf("append response: %v", err)
	}
	if _, err := service.AppendTurn(ctx, created.ID, chat.KindPrompt, "meu primeiro texto", nil, nil, nil); err != nil {
		t.Fatalf("append prompt: %v", err)
	}

	first, err := service.FirstPrompt(ctx, created.ID)
	if err != nil {
		t.Fatalf("FirstPrompt: %v", err)
	}
	if first.Content != "meu primeiro texto" {
		t.Errorf("first prompt = %q, want %q", first.Content, "meu primeiro texto")
	}
}
