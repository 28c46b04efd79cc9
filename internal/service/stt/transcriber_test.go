package stt_test

import (
	"context"
	"errors"
	"testing"

	"clinical-notes-service/internal/service/stt"
	"clinical-notes-service/internal/service/stt/mock"
)

type fixed struct {
	name string
	text string
}

func (f fixed) Name() string { return f.name }

func (f fixed) Transcribe(context.Context, []byte, stt.Tier) (string, error) {
	return f.text, nil
}

func TestRouter_DispatchesByTier(t *testing.T) {
	r := &stt.Router{
		Fast:     fixed{name: "whisper", text: "fast"},
		Accurate: fixed{name: "google", text: "accurate"},
	}

	tests := []struct {
		tier stt.Tier
		want string
	}{
		{stt.TierFast, "fast"},
		{stt.TierAccurate, "accurate"},
	}
	for _, tt := range tests {
		got, err := r.Transcribe(context.Background(), nil, tt.tier)
		if err != nil || got != tt.want {
			t.Errorf("tier %s: got %q, %v; want %q", tt.tier, got, err, tt.want)
		}
	}

	if _, err := r.Transcribe(context.Background(), nil, "medium"); err == nil {
		t.Error("expected error for unknown tier")
	}
	if r.Name() != "whisper|google" {
		t.Errorf("unexpected name %q", r.Name())
	}
}

func TestTier_Valid(t *testing.T) {
	if !stt.TierFast.Valid() || !stt.TierAccurate.Valid() {
		t.Error("known tiers should be valid")
	}
	if stt.Tier("turbo").Valid() {
		t.Error("unknown tier should be invalid")
	}
}

func TestInstrument_PassesThrough(t *testing.T) {
	m := mock.New()
	boom := errors.New("boom")

	tr := stt.Instrument(m)
	if tr.Name() != "mock" {
		t.Errorf("unexpected name %q", tr.Name())
	}
	if _, err := tr.Transcribe(context.Background(), []byte("a"), stt.TierFast); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	m.Err = boom
	if _, err := tr.Transcribe(context.Background(), []byte("a"), stt.TierFast); !errors.Is(err, boom) {
		t.Errorf("expected wrapped backend error, got %v", err)
	}
	if m.Calls() != 2 {
		t.Errorf("expected 2 calls, got %d", m.Calls())
	}
}
