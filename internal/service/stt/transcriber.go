// Package stt defines the interface for speech-to-text backends.
package stt

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/service/backend"
)

// Tier selects the speed/accuracy trade-off of a transcription.
type Tier string

const (
	// TierFast serves the live endpoint (smaller model).
	TierFast Tier = "fast"
	// TierAccurate serves the recorded endpoint (larger model).
	TierAccurate Tier = "accurate"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierFast || t == TierAccurate
}

// Transcriber turns canonical WAV bytes into text. Implementations wrap
// apperrors.ErrModelUnavailable or apperrors.ErrTranscriptionFailed on
// failure and honour ctx cancellation.
type Transcriber interface {
	// Name identifies the backend in logs and metrics.
	Name() string

	// Transcribe returns the transcript for audio at the given tier.
	Transcribe(ctx context.Context, audio []byte, tier Tier) (string, error)
}

// Router dispatches each tier to its own backend.
type Router struct {
	Fast     Transcriber
	Accurate Transcriber
}

// Name returns the routed backend names.
func (r *Router) Name() string {
	if r.Fast == r.Accurate {
		return r.Fast.Name()
	}
	return r.Fast.Name() + "|" + r.Accurate.Name()
}

// Transcribe forwards to the backend configured for tier.
func (r *Router) Transcribe(ctx context.Context, audio []byte, tier Tier) (string, error) {
	switch tier {
	case TierFast:
		return r.Fast.Transcribe(ctx, audio, tier)
	case TierAccurate:
		return r.Accurate.Transcribe(ctx, audio, tier)
	default:
		return "", fmt.Errorf("unknown transcription tier %q", tier)
	}
}

// instrumented records latency and failures for every call.
type instrumented struct {
	next   Transcriber
	logger zerolog.Logger
}

// Instrument wraps t with metrics and debug logging.
func Instrument(t Transcriber) Transcriber {
	return &instrumented{
		next:   t,
		logger: logging.WithBackend("stt", t.Name()),
	}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Transcribe(ctx context.Context, audio []byte, tier Tier) (string, error) {
	start := time.Now()
	text, err := i.next.Transcribe(ctx, audio, tier)
	backend.Observe("stt", i.next.Name(), start, err)
	if err != nil {
		i.logger.Warn().Err(err).Str("tier", string(tier)).Msg("Transcription failed")
		return "", err
	}
	i.logger.Debug().
		Str("tier", string(tier)).
		Int("audioBytes", len(audio)).
		Int("transcriptLen", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Transcription complete")
	return text, nil
}
