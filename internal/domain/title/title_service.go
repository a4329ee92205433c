package title

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"houzel-server/internal/domain/chat"
	"houzel-server/internal/infrastructure/logger"
	"houzel-server/internal/infrastructure/metrics"
	"houzel-server/internal/utils/stringutils"
)

// EndOfStreamSentinel terminates a title-watch event stream.
const EndOfStreamSentinel = "</stream>"

const (
	maxTitleLength    = 50
	fallbackCutLength = 47

	defaultWatchInterval = 500 * time.Millisecond
	defaultWatchCeiling  = 30 * time.Second
	sweepMinimumAge      = time.Minute
)

// Completer is the single-shot model call the title loop depends on.
type Completer interface {
	DeriveTitle(ctx context.Context, firstPrompt string) (string, error)
}

// TitleService derives chat titles from the first prompt message and lets
// clients watch for the derived title to land.
type TitleService struct {
	repo  chat.ChatRepository
	model Completer
	log   zerolog.Logger

	watchInterval time.Duration
	watchCeiling  time.Duration
}

// NewTitleService creates a title service with the standard watch cadence.
func NewTitleService(repo chat.ChatRepository, model Completer) *TitleService {
	return &TitleService{
		repo:          repo,
		model:         model,
		log:           logger.Component("title"),
		watchInterval: defaultWatchInterval,
		watchCeiling:  defaultWatchCeiling,
	}
}

// WithCadence overrides the watch polling interval and ceiling. Zero values
// keep the current setting.
func (s *TitleService) WithCadence(interval, ceiling time.Duration) *TitleService {
	if interval > 0 {
		s.watchInterval = interval
	}
	if ceiling > 0 {
		s.watchCeiling = ceiling
	}
	return s
}

// DeriveNow computes a title from the chat's first prompt message and writes
// it, unless the title already moved past the placeholder. A chat without a
// prompt message is left untouched. After a prompt exists, DeriveNow never
// leaves the placeholder in place: model failure falls back to a truncated
// copy of the prompt itself.
func (s *TitleService) DeriveNow(ctx context.Context, chatID uint) {
	first, err := s.repo.FirstPromptMessage(ctx, chatID)
	if err != nil {
		return
	}

	derived := s.deriveFromModel(ctx, first.Content)
	result := "model_ok"
	if derived == "" {
		derived = fallbackTitle(first.Content)
		result = "fallback"
	}

	updated, err := s.repo.UpdateTitleIfPlaceholder(ctx, chatID, derived)
	if err != nil {
		s.log.Error().Err(err).Uint("chat_id", chatID).Msg("failed to write derived title")
		metrics.RecordTitleDerivation("write_error")
		return
	}
	if !updated {
		metrics.RecordTitleDerivation("cas_lost")
		return
	}
	metrics.RecordTitleDerivation(result)
	s.log.Info().Uint("chat_id", chatID).Str("title", derived).Msg("derived chat title")
}

func (s *TitleService) deriveFromModel(ctx context.Context, firstPrompt string) string {
	generated, err := s.model.DeriveTitle(ctx, firstPrompt)
	if err != nil {
		s.log.Warn().Err(err).Msg("title model call failed, using fallback")
		return ""
	}
	return stringutils.GenerateTitle(generated, maxTitleLength)
}

// Watch yields the chat's title once it is no longer the placeholder. A
// non-placeholder title yields immediately without polling. Otherwise
// derivation is triggered detached and the persisted title is polled at the
// configured cadence until it changes or the ceiling elapses; an elapsed
// ceiling terminates silently. The persisted title field is the only
// coordination point with the writer, which may run in another request.
func (s *TitleService) Watch(ctx context.Context, chatID uint, yield func(title string) error) error {
	c, err := s.repo.FindByID(ctx, chatID)
	if err != nil {
		return err
	}
	if !c.HasPlaceholderTitle() {
		return yield(c.Title)
	}

	// Detached: a client disconnect must not abort the derivation already
	// in flight.
	go s.DeriveNow(context.WithoutCancel(ctx), chatID)

	deadline := time.NewTimer(s.watchCeiling)
	defer deadline.Stop()
	ticker := time.NewTicker(s.watchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return nil
		case <-ticker.C:
			c, err := s.repo.FindByID(ctx, chatID)
			if err != nil {
				return err
			}
			if !c.HasPlaceholderTitle() {
				return yield(c.Title)
			}
		}
	}
}

// SweepPlaceholders derives titles for chats stuck on the placeholder, such
// as when the stream that created them disconnected before titling ran.
func (s *TitleService) SweepPlaceholders(ctx context.Context) {
	stale, err := s.repo.FindPlaceholderChats(ctx, time.Now().Add(-sweepMinimumAge))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list placeholder chats")
		return
	}
	for _, c := range stale {
		s.DeriveNow(ctx, c.ID)
	}
	if len(stale) > 0 {
		s.log.Info().Int("count", len(stale)).Msg("title sweep completed")
	}
}

func fallbackTitle(prompt string) string {
	runes := []rune(strings.TrimSpace(prompt))
	if len(runes) > fallbackCutLength {
		runes = runes[:fallbackCutLength]
	}
	return string(runes) + "..."
}
