package generate

import (
	"context"
	"strings"
	"sync/atomic"
)

// DefaultMockCompletion is returned by Mock when no completion is set.
const DefaultMockCompletion = "School-based counselors meet with students to talk through " +
	"stress, friendships and classroom worries. These conversations are confidential, " +
	"with limits: staff must act when someone may be at risk of harm."

// Mock is a deterministic generator for tests and local runs. Token counts
// are whitespace word counts.
type Mock struct {
	// Completion is appended after the conversation.
	Completion string
	// TotalTokens, when non-zero, overrides the reported total.
	TotalTokens int
	// Err, when set, is returned instead of a result.
	Err error

	calls        atomic.Int64
	lastMessages atomic.Value
}

// NewMock creates a mock generator.
func NewMock() *Mock { return &Mock{Completion: DefaultMockCompletion} }

// Name returns the backend name.
func (m *Mock) Name() string { return "mock" }

// Model returns the mock model id.
func (m *Mock) Model() string { return "mock-llama-3" }

// Calls returns how many times Generate was invoked.
func (m *Mock) Calls() int64 { return m.calls.Load() }

// LastMessages returns the conversation of the most recent call.
func (m *Mock) LastMessages() []Message {
	v, _ := m.lastMessages.Load().([]Message)
	return v
}

// Generate echoes the conversation contents followed by the completion.
func (m *Mock) Generate(ctx context.Context, messages []Message) (Result, error) {
	m.calls.Add(1)
	m.lastMessages.Store(append([]Message(nil), messages...))

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if m.Err != nil {
		return Result{}, m.Err
	}

	prompt := StripSpecialTokens(RenderLlama3(messages))
	input := len(strings.Fields(prompt))
	total := input + len(strings.Fields(m.Completion))
	if m.TotalTokens != 0 {
		total = m.TotalTokens
	}
	return Result{
		Raw:         prompt + m.Completion,
		InputTokens: input,
		TotalTokens: total,
	}, nil
}
