package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"clinical-notes-service/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Cache:      config.CacheConfig{Capacity: 8},
		STT:        config.STTConfig{FastProvider: "mock", AccurateProvider: "mock"},
		Summarizer: config.SummarizerConfig{Backend: "extractive"},
		Generator:  config.GeneratorConfig{Backend: "mock"},
		Audio:      config.AudioConfig{Normalizer: "wav", MaxUploadBytes: 1 << 20},
		Retry:      config.RetryConfig{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}
}

func TestNew_MockStack(t *testing.T) {
	a, err := New(context.Background(), testConfig())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown()

	if a.Notes == nil || a.Expander == nil || a.Cache == nil || a.Publisher == nil {
		t.Fatal("application not fully wired")
	}
	if a.Publisher.Enabled() {
		t.Error("kafka should be disabled")
	}
	if a.Expander.Model() != "mock-llama-3" {
		t.Errorf("unexpected model %s", a.Expander.Model())
	}
	if len(a.Probes) != 0 {
		t.Errorf("mock stack should have no probes, got %d", len(a.Probes))
	}
	if err := a.Start(); err != nil {
		t.Errorf("Start() error: %v", err)
	}
}

func TestNew_ProbesForRealBackends(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Addr: mr.Addr(), KeyPrefix: "test", TTL: time.Minute}
	cfg.Generator = config.GeneratorConfig{Backend: "ollama", BaseURL: "http://127.0.0.1:1"}
	cfg.Audio.Normalizer = "ffmpeg"
	cfg.Audio.FFmpegBinary = "ffmpeg"

	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer a.Shutdown()

	names := map[string]bool{}
	for _, p := range a.Probes {
		names[p.Name] = true
	}
	for _, want := range []string{"redis", "ollama", "ffmpeg"} {
		if !names[want] {
			t.Errorf("missing probe %s", want)
		}
	}

	for _, p := range a.Probes {
		if p.Name == "redis" {
			if err := p.Check(context.Background()); err != nil {
				t.Errorf("redis probe failed: %v", err)
			}
		}
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"zero capacity", func(c *config.Config) { c.Cache.Capacity = 0 }},
		{"unknown stt", func(c *config.Config) { c.STT.AccurateProvider = "deepgram" }},
		{"unknown summarizer", func(c *config.Config) { c.Summarizer.Backend = "bart" }},
		{"openai without key", func(c *config.Config) { c.Summarizer.Backend = "openai" }},
		{"unknown generator", func(c *config.Config) { c.Generator.Backend = "vllm" }},
		{"unreachable redis", func(c *config.Config) {
			c.Redis = config.RedisConfig{Enabled: true, Addr: "127.0.0.1:1"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			if _, err := New(context.Background(), cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNew_ErrorClosesOpenedClients(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig()
	cfg.Redis = config.RedisConfig{Enabled: true, Addr: mr.Addr(), KeyPrefix: "test", TTL: time.Minute}
	cfg.Generator.Backend = "vllm"

	a, err := New(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for unknown generator")
	}
	if a != nil {
		t.Error("expected nil application on error")
	}

	deadline := time.Now().Add(2 * time.Second)
	for mr.CurrentConnectionCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if n := mr.CurrentConnectionCount(); n != 0 {
		t.Errorf("redis client left %d connections open", n)
	}
}

func TestClose_NilApplication(t *testing.T) {
	var a *Application
	if err := a.close(); err != nil {
		t.Errorf("close on nil application: %v", err)
	}
}
