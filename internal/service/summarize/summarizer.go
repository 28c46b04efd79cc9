// Package summarize turns transcripts into readable session notes by
// delegating to a chat model backend.
package summarize

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/service/backend"
)

// SystemPrompt frames every summarization request.
const SystemPrompt = "You are a helpful assistant that summarizes therapy session transcripts into well-structured notes."

// Default sampling settings.
const (
	DefaultTemperature = 0.5
	DefaultMaxTokens   = 800
)

// Summarizer summarizes text according to an instruction. Implementations
// wrap apperrors.ErrBackend (or a more specific sentinel) on failure.
type Summarizer interface {
	Name() string
	Summarize(ctx context.Context, instruction, text string) (string, error)
}

// Compose joins the instruction and the text into one user message.
func Compose(instruction, text string) string {
	return strings.TrimSpace(instruction) + "\n" + strings.TrimSpace(text)
}

// NoteInstruction expands a caller's prompt with the session context used
// by the text summarization endpoint.
func NoteInstruction(prompt, userType, noteType string) string {
	return fmt.Sprintf("%s\nThis session was conducted by a %s, and the note type is '%s'.\n"+
		"Below is the original transcript. Please summarize and format it for readability:",
		strings.TrimSpace(prompt), userType, noteType)
}

var whitespace = regexp.MustCompile(`\s+`)

// CollapseWhitespace replaces every whitespace run with a single space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

type instrumented struct {
	next   Summarizer
	logger zerolog.Logger
}

// Instrument wraps s with metrics and debug logging.
func Instrument(s Summarizer) Summarizer {
	return &instrumented{next: s, logger: logging.WithBackend("summarizer", s.Name())}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Summarize(ctx context.Context, instruction, text string) (string, error) {
	start := time.Now()
	out, err := i.next.Summarize(ctx, instruction, text)
	backend.Observe("summarizer", i.next.Name(), start, err)
	if err != nil {
		i.logger.Warn().Err(err).Msg("Summarization failed")
		return "", err
	}
	i.logger.Debug().
		Int("inputLen", len(text)).
		Int("outputLen", len(out)).
		Dur("duration", time.Since(start)).
		Msg("Summarization complete")
	return out, nil
}
