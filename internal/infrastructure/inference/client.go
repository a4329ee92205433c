package inference

import (
	"context"
	"errors"

	"houzel-server/internal/domain/chat"
)

// ErrModelUnavailable covers transport, auth and rate-limit failures on
// either model call shape.
var ErrModelUnavailable = errors.New("model unavailable")

// Client is the model call surface the orchestrator and title loop depend
// on. StreamReply yields fragments through onFragment as they arrive and
// returns the accumulated text. CompleteOnce is the single-shot shape used
// for feedback generation. DeriveTitle produces a short chat title from the
// first prompt.
type Client interface {
	StreamReply(ctx context.Context, turns []chat.Message, onFragment func(fragment string) error) (string, error)
	CompleteOnce(ctx context.Context, system string, user string, temperature float32, maxTokens int) (string, error)
	DeriveTitle(ctx context.Context, firstPrompt string) (string, error)
}

// ImageResolver maps a stored image reference to raw bytes and a media type.
type ImageResolver interface {
	Resolve(ctx context.Context, ref string) ([]byte, string, error)
}
