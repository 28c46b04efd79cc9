// Package lifecycle tracks the processing state of a single request.
package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State represents the lifecycle state of a request.
type State int

const (
	// StateReceived - Request accepted, nothing processed yet.
	StateReceived State = iota
	// StateNormalized - Upload converted to canonical audio.
	StateNormalized
	// StateHashed - Canonical audio fingerprinted.
	StateHashed
	// StateCacheHit - Transcript served without calling a transcriber.
	StateCacheHit
	// StateTranscribing - Transcript being produced by a transcriber.
	StateTranscribing
	// StateSummarizing - Summarizer or generator running.
	StateSummarizing
	// StateDone - Result returned. Terminal.
	StateDone
	// StateFailed - Request abandoned with an error. Terminal.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateReceived:
		return "RECEIVED"
	case StateNormalized:
		return "NORMALIZED"
	case StateHashed:
		return "HASHED"
	case StateCacheHit:
		return "CACHE_HIT"
	case StateTranscribing:
		return "TRANSCRIBING"
	case StateSummarizing:
		return "SUMMARIZING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true for DONE and FAILED.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// ErrTerminal is returned when a finished request is advanced.
var ErrTerminal = errors.New("request already finished")

// TransitionError reports a forbidden transition.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// transitions lists the forward edges. FAILED is reachable from every
// non-terminal state and is handled by Fail.
var transitions = map[State][]State{
	StateReceived:     {StateNormalized, StateSummarizing},
	StateNormalized:   {StateHashed},
	StateHashed:       {StateCacheHit, StateTranscribing},
	StateCacheHit:     {StateSummarizing},
	StateTranscribing: {StateSummarizing},
	StateSummarizing:  {StateDone},
}

// Request is the state machine for one request. Safe for concurrent use.
//
//	RECEIVED → NORMALIZED → HASHED → CACHE_HIT ────┐
//	   │                       └──→ TRANSCRIBING ──┴→ SUMMARIZING → DONE
//	   └────────────────────────────────────────────→ SUMMARIZING
//
// Text-only requests go straight from RECEIVED to SUMMARIZING.
type Request struct {
	mu        sync.RWMutex
	requestId string
	state     State
	started   time.Time
	history   []State
}

// New creates a request lifecycle in RECEIVED state.
func New(requestId string) *Request {
	return &Request{
		requestId: requestId,
		state:     StateReceived,
		started:   time.Now(),
		history:   []State{StateReceived},
	}
}

// RequestId returns the request ID.
func (r *Request) RequestId() string {
	return r.requestId
}

// State returns the current state.
func (r *Request) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// History returns every state visited, in order.
func (r *Request) History() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]State(nil), r.history...)
}

// Elapsed returns the time since the request was received.
func (r *Request) Elapsed() time.Duration {
	return time.Since(r.started)
}

// Advance moves to the next state if the transition is allowed.
func (r *Request) Advance(to State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state.IsTerminal() {
		return ErrTerminal
	}
	for _, next := range transitions[r.state] {
		if next == to {
			r.state = to
			r.history = append(r.history, to)
			return nil
		}
	}
	return &TransitionError{From: r.state, To: to}
}

// Fail moves to FAILED and returns the state the request failed in.
// Returns false if the request had already finished.
func (r *Request) Fail() (State, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.IsTerminal() {
		return r.state, false
	}
	from := r.state
	r.state = StateFailed
	r.history = append(r.history, StateFailed)
	return from, true
}
