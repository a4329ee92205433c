package inference

import (
	"context"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"houzel-server/internal/domain/chat"
)

func newOfflineClient() *OpenAIClient {
	return NewOpenAIClient(Options{Model: "gpt-4o", Offline: true}, nil)
}

func TestStreamReplyOfflineTextOnly(t *testing.T) {
	c := newOfflineClient()

	var got strings.Builder
	full, err := c.StreamReply(context.Background(), []chat.Message{
		{Kind: chat.KindPrompt, Content: "Corrija meu texto sobre sustentabilidade"},
	}, func(fragment string) error {
		got.WriteString(fragment)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamReply() error = %v", err)
	}
	if full != OfflineTextReply {
		t.Errorf("StreamReply() = %q, want the text-only offline reply", full)
	}
	if got.String() != full {
		t.Errorf("emitted fragments %q do not equal returned text %q", got.String(), full)
	}
}

func TestStreamReplyOfflineWithImages(t *testing.T) {
	c := newOfflineClient()

	full, err := c.StreamReply(context.Background(), []chat.Message{
		{Kind: chat.KindPrompt, Content: "Veja minha redação", Images: []string{"/storage/chat-images/img_abc.png"}},
	}, func(string) error { return nil })
	if err != nil {
		t.Fatalf("StreamReply() error = %v", err)
	}
	if full != OfflineImageReply {
		t.Errorf("StreamReply() = %q, want the image-aware offline reply", full)
	}
}

func TestCompleteOnceOffline(t *testing.T) {
	c := newOfflineClient()

	got, err := c.CompleteOnce(context.Background(), "sistema", "usuário", 0.25, 1200)
	if err != nil {
		t.Fatalf("CompleteOnce() error = %v", err)
	}
	if got != OfflineFeedback {
		t.Errorf("CompleteOnce() = %q, want the mock feedback string", got)
	}
}

func TestDeriveTitleOffline(t *testing.T) {
	c := newOfflineClient()

	got, err := c.DeriveTitle(context.Background(), "Corrija meu texto sobre sustentabilidade")
	if err != nil {
		t.Fatalf("DeriveTitle() error = %v", err)
	}
	if !strings.HasPrefix(got, "Chat sobre: ") {
		t.Errorf("DeriveTitle() = %q, want the deterministic prefix", got)
	}
	if n := len([]rune(got)); n > len("Chat sobre: ")+30 {
		t.Errorf("DeriveTitle() rune length = %d, want at most %d", n, len("Chat sobre: ")+30)
	}
}

func TestBlankAPIKeyForcesOffline(t *testing.T) {
	c := NewOpenAIClient(Options{Model: "gpt-4o", APIKey: "   "}, nil)
	if !c.Offline() {
		t.Fatal("client with blank API key should run offline")
	}
}

type stubResolver struct {
	data []byte
	mime string
}

func (r stubResolver) Resolve(context.Context, string) ([]byte, string, error) {
	return r.data, r.mime, nil
}

func TestBuildChatMessages(t *testing.T) {
	c := NewOpenAIClient(Options{Model: "gpt-4o", Offline: true}, stubResolver{data: []byte{1, 2, 3}, mime: "image/png"})

	turns := []chat.Message{
		{Kind: chat.KindPrompt, Content: "Primeira mensagem"},
		{Kind: chat.KindResponse, Content: "Resposta anterior"},
		{Kind: chat.KindPrompt, Content: "Com imagem", Images: []string{"/storage/chat-images/img_x.png"}},
	}

	messages := c.buildChatMessages(context.Background(), turns)
	if len(messages) != 4 {
		t.Fatalf("buildChatMessages() returned %d messages, want 4", len(messages))
	}

	if messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("messages[0].Role = %q, want system", messages[0].Role)
	}
	if messages[1].Role != openai.ChatMessageRoleUser {
		t.Errorf("messages[1].Role = %q, want user", messages[1].Role)
	}
	if messages[2].Role != openai.ChatMessageRoleAssistant {
		t.Errorf("messages[2].Role = %q, want assistant", messages[2].Role)
	}

	multimodal := messages[3]
	if multimodal.Content != "" {
		t.Errorf("multimodal message should use MultiContent, got Content %q", multimodal.Content)
	}
	if len(multimodal.MultiContent) != 2 {
		t.Fatalf("MultiContent has %d parts, want 2", len(multimodal.MultiContent))
	}
	if multimodal.MultiContent[0].Type != openai.ChatMessagePartTypeText || multimodal.MultiContent[0].Text != "Com imagem" {
		t.Errorf("first part = %+v, want the text part", multimodal.MultiContent[0])
	}
	image := multimodal.MultiContent[1]
	if image.Type != openai.ChatMessagePartTypeImageURL {
		t.Fatalf("second part type = %q, want image_url", image.Type)
	}
	if !strings.HasPrefix(image.ImageURL.URL, "data:image/png;base64,") {
		t.Errorf("image URL = %q, want a png data URI", image.ImageURL.URL)
	}
	if image.ImageURL.Detail != openai.ImageURLDetailHigh {
		t.Errorf("image detail = %q, want high", image.ImageURL.Detail)
	}
}
