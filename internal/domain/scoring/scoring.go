package scoring

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrUnavailable covers every scoring tool failure: timeout, non-zero exit
// or output that is not a single JSON object. Callers decide whether to
// retry or degrade.
var ErrUnavailable = errors.New("scoring tool unavailable")

// Defaults applied to a directive before it drives a model call. The raw
// directive values are preserved separately in the feedback payload.
const (
	DefaultPrompt      = "Avalie o texto a seguir com foco em ENEM (competências 1-5)."
	DefaultSystem      = "Você é um avaliador de redações no padrão ENEM. Dê notas por competência e justificativas específicas."
	DefaultTemperature = 0.25
	DefaultMaxTokens   = 1200
)

// FeedbackInstruction is the fixed instruction handed to the scoring tool
// for the post-reply feedback cycle.
const FeedbackInstruction = "Forneça FEEDBACK detalhado e notas no padrão ENEM para o texto a seguir."

// Directive is the structured output of a scoring run: how to prompt a model
// to grade an essay. It is ephemeral, it only survives folded into a
// feedback message's metadata.
type Directive struct {
	Prompt      *string         `json:"prompt"`
	System      *string         `json:"system"`
	Temperature *float64        `json:"temperature"`
	MaxTokens   *int            `json:"max_tokens"`
	Context     json.RawMessage `json:"context"`
	Confidence  *float64        `json:"confidence"`
	Suggestions []string        `json:"suggestions"`
}

// EffectivePrompt returns the directive prompt or its default.
func (d *Directive) EffectivePrompt() string {
	if d.Prompt != nil && *d.Prompt != "" {
		return *d.Prompt
	}
	return DefaultPrompt
}

// EffectiveSystem returns the directive system instruction or its default.
func (d *Directive) EffectiveSystem() string {
	if d.System != nil && *d.System != "" {
		return *d.System
	}
	return DefaultSystem
}

// EffectiveTemperature returns the directive temperature or its default.
func (d *Directive) EffectiveTemperature() float64 {
	if d.Temperature != nil {
		return *d.Temperature
	}
	return DefaultTemperature
}

// EffectiveMaxTokens returns the directive token budget or its default.
func (d *Directive) EffectiveMaxTokens() int {
	if d.MaxTokens != nil && *d.MaxTokens > 0 {
		return *d.MaxTokens
	}
	return DefaultMaxTokens
}

// FeedbackPayload is the machine-readable feedback emitted in-band on the
// chat stream and stored on the feedback message. It carries the raw
// directive values, not the defaulted ones, plus the feedback text itself.
type FeedbackPayload struct {
	Type         string          `json:"type"`
	Prompt       *string         `json:"prompt"`
	System       *string         `json:"system"`
	Temperature  *float64        `json:"temperature"`
	MaxTokens    *int            `json:"max_tokens"`
	Context      json.RawMessage `json:"context"`
	Confidence   *float64        `json:"confidence"`
	Suggestions  []string        `json:"suggestions"`
	FeedbackText string          `json:"feedbackText"`
}

// NewFeedbackPayload folds a directive and the generated feedback text into
// the wire payload.
func NewFeedbackPayload(d *Directive, feedbackText string) FeedbackPayload {
	suggestions := d.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return FeedbackPayload{
		Type:         "compiler_feedback",
		Prompt:       d.Prompt,
		System:       d.System,
		Temperature:  d.Temperature,
		MaxTokens:    d.MaxTokens,
		Context:      d.Context,
		Confidence:   d.Confidence,
		Suggestions:  suggestions,
		FeedbackText: feedbackText,
	}
}

// Compiler produces a scoring directive for an essay. The shipped adapter
// shells out to the legacy command-line tool, an in-process implementation
// can replace it without touching callers.
type Compiler interface {
	Compile(ctx context.Context, instruction string, essayText string, imageData string) (*Directive, error)
}
