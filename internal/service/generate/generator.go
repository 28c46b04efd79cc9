// Package generate defines the text generation backend used by the
// expansion pipeline.
package generate

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/service/backend"
)

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result is the raw output of one generation.
//
// Raw holds the decoded conversation followed by the continuation, so the
// final assistant turn of the request appears in it verbatim. InputTokens
// counts the prompt; TotalTokens counts prompt plus continuation as reported
// by the backend and may be inconsistent with InputTokens.
type Result struct {
	Raw         string
	InputTokens int
	TotalTokens int
}

// Options holds sampling parameters.
type Options struct {
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
}

// DefaultOptions returns the sampling settings of the expansion pipeline.
func DefaultOptions() Options {
	return Options{
		MaxNewTokens:      1024,
		Temperature:       0.8,
		TopP:              0.95,
		RepetitionPenalty: 1.05,
	}
}

// Generator produces a continuation for a conversation. Implementations wrap
// apperrors.ErrRateLimited, apperrors.ErrModelUnavailable or
// apperrors.ErrBackend on failure.
type Generator interface {
	Name() string
	// Model identifies the model, reported back to callers.
	Model() string
	Generate(ctx context.Context, messages []Message) (Result, error)
}

type instrumented struct {
	next   Generator
	logger zerolog.Logger
}

// Instrument wraps g with metrics and debug logging.
func Instrument(g Generator) Generator {
	return &instrumented{next: g, logger: logging.WithBackend("generator", g.Name())}
}

func (i *instrumented) Name() string  { return i.next.Name() }
func (i *instrumented) Model() string { return i.next.Model() }

func (i *instrumented) Generate(ctx context.Context, messages []Message) (Result, error) {
	start := time.Now()
	res, err := i.next.Generate(ctx, messages)
	backend.Observe("generator", i.next.Name(), start, err)
	if err != nil {
		i.logger.Warn().Err(err).Msg("Generation failed")
		return Result{}, err
	}
	i.logger.Debug().
		Int("inputTokens", res.InputTokens).
		Int("totalTokens", res.TotalTokens).
		Dur("duration", time.Since(start)).
		Msg("Generation complete")
	return res, nil
}
