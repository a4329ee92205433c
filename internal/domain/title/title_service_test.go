package title_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/domain/title"
	"houzel-server/internal/infrastructure/metrics"
)

type stubCompleter struct {
	title string
	err   error
}

func (s *stubCompleter) DeriveTitle(context.Context, string) (string, error) {
	return s.title, s.err
}

// stubRepo keeps chats and messages in memory for the title loop.
type stubRepo struct {
	mu       sync.Mutex
	chats    map[uint]*chat.Chat
	messages map[uint][]*chat.Message
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		chats:    make(map[uint]*chat.Chat),
		messages: make(map[uint][]*chat.Message),
	}
}

func (r *stubRepo) addChat(id uint, chatTitle string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[id] = &chat.Chat{ID: id, Title: chatTitle, CreatedAt: time.Now().Add(-2 * time.Minute)}
}

func (r *stubRepo) addPrompt(chatID uint, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[chatID] = append(r.messages[chatID], &chat.Message{
		ID: uint(len(r.messages[chatID]) + 1), ChatID: chatID, Kind: chat.KindPrompt, Content: content,
	})
}

func (r *stubRepo) titleOf(id uint) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chats[id].Title
}

func (r *stubRepo) Create(context.Context, *chat.Chat) error { return errors.New("not implemented") }

func (r *stubRepo) FindByID(_ context.Context, id uint) (*chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return nil, fmt.Errorf("chat %d not found", id)
	}
	copied := *c
	return &copied, nil
}

func (r *stubRepo) FindByPublicID(context.Context, string) (*chat.Chat, error) {
	return nil, errors.New("not implemented")
}

func (r *stubRepo) List(context.Context) ([]*chat.Chat, error) {
	return nil, errors.New("not implemented")
}

func (r *stubRepo) UpdateTitle(_ context.Context, id uint, t string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats[id].Title = t
	return nil
}

func (r *stubRepo) UpdateTitleIfPlaceholder(_ context.Context, id uint, t string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chats[id]
	if !ok {
		return false, fmt.Errorf("chat %d not found", id)
	}
	if c.Title != "" && c.Title != chat.PlaceholderTitle {
		return false, nil
	}
	c.Title = t
	return true, nil
}

func (r *stubRepo) Delete(context.Context, uint) error { return errors.New("not implemented") }

func (r *stubRepo) AppendMessage(context.Context, *chat.Message) error {
	return errors.New("not implemented")
}

func (r *stubRepo) ListMessages(context.Context, uint) ([]*chat.Message, error) {
	return nil, errors.New("not implemented")
}

func (r *stubRepo) FindMessageByID(context.Context, uint, uint) (*chat.Message, error) {
	return nil, errors.New("not implemented")
}

func (r *stubRepo) FirstPromptMessage(_ context.Context, chatID uint) (*chat.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages[chatID] {
		if m.Kind == chat.KindPrompt {
			copied := *m
			return &copied, nil
		}
	}
	return nil, fmt.Errorf("no prompt in chat %d", chatID)
}

func (r *stubRepo) FindPlaceholderChats(_ context.Context, olderThan time.Time) ([]*chat.Chat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*chat.Chat
	for _, c := range r.chats {
		if (c.Title == "" || c.Title == chat.PlaceholderTitle) && c.CreatedAt.Before(olderThan) {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func TestWatchYieldsImmediatelyForDerivedTitle(t *testing.T) {
	repo := newStubRepo()
	repo.addChat(1, "Relatório de redação")

	service := title.NewTitleService(repo, &stubCompleter{title: "ignorado"})

	var got []string
	err := service.Watch(context.Background(), 1, func(derived string) error {
		got = append(got, derived)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 1 || got[0] != "Relatório de redação" {
		t.Errorf("yields = %v, want exactly the stored title", got)
	}
}

func TestWatchDeliversDerivedTitle(t *testing.T) {
	repo := newStubRepo()
	repo.addChat(1, chat.PlaceholderTitle)
	repo.addPrompt(1, "Corrija minha redação sobre mobilidade urbana, por favor.")

	service := title.NewTitleService(repo, &stubCompleter{title: "Mobilidade urbana"}).
		WithCadence(5*time.Millisecond, 2*time.Second)

	var got []string
	err := service.Watch(context.Background(), 1, func(derived string) error {
		got = append(got, derived)
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if len(got) != 1 || got[0] != "Mobilidade urbana" {
		t.Errorf("yields = %v, want the model title", got)
	}
}

func TestWatchCeilingTerminatesSilently(t *testing.T) {
	repo := newStubRepo()
	repo.addChat(1, chat.PlaceholderTitle)
	// No prompt message exists, derivation is a no-op and the title never moves.

	service := title.NewTitleService(repo, &stubCompleter{title: "nunca"}).
		WithCadence(5*time.Millisecond, 30*time.Millisecond)

	called := false
	err := service.Watch(context.Background(), 1, func(string) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if called {
		t.Error("yield fired although no title was ever derived")
	}
	if got := repo.titleOf(1); got != chat.PlaceholderTitle {
		t.Errorf("title = %q, want untouched placeholder", got)
	}
}

func TestDeriveNowFallsBackToPromptPrefix(t *testing.T) {
	repo := newStubRepo()
	repo.addChat(1, chat.PlaceholderTitle)
	prompt := strings.Repeat("a", 60)
	repo.addPrompt(1, prompt)

	service := title.NewTitleService(repo, &stubCompleter{err: errors.New("model down")})
	service.DeriveNow(context.Background(), 1)

	want := strings.Repeat("a", 47) + "..."
	if got := repo.titleOf(1); got != want {
		t.Errorf("fallback title = %q, want %q", got, want)
	}
}

func TestDeriveNowKeepsExplicitTitle(t *testing.T) {
	repo := newStubRepo()
	repo.addChat(1, "Título escolhido pelo usuário")
	repo.addPrompt(1, "Algum texto")

	service := title.NewTitleService(repo, &stubCompleter{title: "Outro título"})
	service.DeriveNow(context.Background(), 1)

	if got := repo.titleOf(1); got != "Título escolhido pelo usuário" {
		t.Errorf("title = %q, explicit rename must win over derivation", got)
	}
}

func TestDeriveNowRecordsOutcome(t *testing.T) {
	derivations := func(result string) float64 {
		return testutil.ToFloat64(metrics.TitleDerivationsTotal.WithLabelValues(result))
	}

	repo := newStubRepo()
	repo.addChat(1, chat.PlaceholderTitle)
	repo.addPrompt(1, "Corrija minha redação sobre saneamento básico.")

	before := derivations("model_ok")
	title.NewTitleService(repo, &stubCompleter{title: "Saneamento básico"}).
		DeriveNow(context.Background(), 1)
	if got := derivations("model_ok") - before; got != 1 {
		t.Errorf("model_ok derivations recorded = %v, want 1", got)
	}

	// Same chat again: the title already moved, the conditional write loses.
	before = derivations("cas_lost")
	title.NewTitleService(repo, &stubCompleter{title: "Outro título"}).
		DeriveNow(context.Background(), 1)
	if got := derivations("cas_lost") - before; got != 1 {
		t.Errorf("cas_lost derivations recorded = %v, want 1", got)
	}

	repo.addChat(2, chat.PlaceholderTitle)
	repo.addPrompt(2, "Texto sem modelo disponível")

	before = derivations("fallback")
	title.NewTitleService(repo, &stubCompleter{err: errors.New("model down")}).
		DeriveNow(context.Background(), 2)
	if got := derivations("fallback") - before; got != 1 {
		t.Errorf("fallback derivations recorded = %v, want 1", got)
	}
}

func TestSweepPlaceholdersDerivesStaleChats(t *testing.T) {
	repo := newStubRepo()
	repo.addChat(1, chat.PlaceholderTitle)
	repo.addPrompt(1, "Texto da primeira redação")
	repo.addChat(2, "Já titulado")
	repo.addPrompt(2, "Outro texto")

	service := title.NewTitleService(repo, &stubCompleter{title: "Primeira redação"})
	service.SweepPlaceholders(context.Background())

	if got := repo.titleOf(1); got != "Primeira redação" {
		t.Errorf("swept title = %q, want %q", got, "Primeira redação")
	}
	if got := repo.titleOf(2); got != "Já titulado" {
		t.Errorf("titled chat changed to %q during sweep", got)
	}
}
