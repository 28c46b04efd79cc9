// Package mock provides a deterministic transcriber for testing without a
// speech backend. The same audio always yields the same transcript.
package mock

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"
	"time"

	"clinical-notes-service/internal/service/stt"
)

// DefaultUtterances provides sample session transcripts for simulation.
var DefaultUtterances = []string{
	"We talked about how the week went at school and what felt hardest during lunch.",
	"The student described feeling nervous before tests and we practiced a breathing exercise.",
	"We reviewed the check-in plan with the counselor and agreed on a signal for taking a break.",
	"The student shared that things at home have been calmer and sleep has improved.",
	"We discussed who to talk to on campus when feelings get overwhelming.",
}

// Adapter implements stt.Transcriber with canned responses.
type Adapter struct {
	// Delay simulates model latency. Cancellation interrupts it.
	Delay time.Duration
	// Err, when set, is returned instead of a transcript.
	Err error

	calls atomic.Int64
}

var _ stt.Transcriber = (*Adapter)(nil)

// New creates a new mock transcriber.
func New() *Adapter {
	return &Adapter{}
}

// Name returns the backend name.
func (a *Adapter) Name() string { return "mock" }

// Calls returns how many times Transcribe was invoked.
func (a *Adapter) Calls() int64 { return a.calls.Load() }

// Transcribe picks an utterance from the audio digest.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, _ stt.Tier) (string, error) {
	a.calls.Add(1)

	if a.Delay > 0 {
		timer := time.NewTimer(a.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if a.Err != nil {
		return "", a.Err
	}

	sum := sha256.Sum256(audio)
	idx := binary.BigEndian.Uint64(sum[:8]) % uint64(len(DefaultUtterances))
	return DefaultUtterances[idx], nil
}
