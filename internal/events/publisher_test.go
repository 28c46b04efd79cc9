package events

import (
	"context"
	"testing"

	"clinical-notes-service/internal/models"
)

func TestNew_DisabledMode(t *testing.T) {
	tests := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"disabled", &Config{Enabled: false, Brokers: []string{"localhost:9092"}}},
		{"no brokers", &Config{Enabled: true, Brokers: []string{}}},
		{"empty brokers", &Config{Enabled: true, Brokers: nil}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.cfg)
			if p == nil {
				t.Fatal("expected non-nil publisher")
			}
			if p.Enabled() {
				t.Error("expected publisher to be disabled")
			}
			if p.writerNotes != nil || p.writerExpansions != nil {
				t.Error("expected nil writers when disabled")
			}
		})
	}
}

func TestNew_TopicDefaults(t *testing.T) {
	p := New(&Config{Principal: "svc"})
	if p.topicNotes != DefaultTopicNotes {
		t.Errorf("expected %s, got %s", DefaultTopicNotes, p.topicNotes)
	}
	if p.topicExpansions != DefaultTopicExpansions {
		t.Errorf("expected %s, got %s", DefaultTopicExpansions, p.topicExpansions)
	}

	p = New(&Config{TopicNotes: "n", TopicExpansions: "e"})
	if p.topicNotes != "n" || p.topicExpansions != "e" {
		t.Errorf("configured topics ignored: %s %s", p.topicNotes, p.topicExpansions)
	}
}

func TestNew_Enabled(t *testing.T) {
	p := New(&Config{Enabled: true, Brokers: []string{"localhost:9092"}, Principal: "svc"})
	defer p.Close()

	if !p.Enabled() {
		t.Fatal("expected publisher to be enabled")
	}
	if p.writerNotes.Topic != DefaultTopicNotes || p.writerExpansions.Topic != DefaultTopicExpansions {
		t.Errorf("unexpected writer topics %s %s", p.writerNotes.Topic, p.writerExpansions.Topic)
	}
}

func TestPublisher_PublishNote_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.PublishNote(context.Background(), models.NoteGenerated{
		RequestID: "req-1",
		UserType:  "Therapist",
		NoteType:  "Session Note",
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_PublishExpansion_Disabled(t *testing.T) {
	p := New(&Config{Enabled: false})

	err := p.PublishExpansion(context.Background(), models.ExpansionGenerated{
		RequestID:    "req-2",
		Audience:     "parent",
		Tone:         "supportive",
		PromptTokens: 10,
	})
	if err != nil {
		t.Errorf("expected no error when disabled, got %v", err)
	}
}

func TestPublisher_Close_NoWriters(t *testing.T) {
	if err := New(&Config{Enabled: false}).Close(); err != nil {
		t.Errorf("expected no error closing disabled publisher, got %v", err)
	}
	if err := (&Publisher{}).Close(); err != nil {
		t.Errorf("expected no error closing publisher with nil writers, got %v", err)
	}
}
