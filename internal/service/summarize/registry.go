package summarize

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Config holds summarizer backend configuration.
type Config struct {
	Backend     string // openai, anthropic, gemini, extractive
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
}

func (c Config) withDefaults(baseURL, model string) Config {
	if c.BaseURL == "" {
		c.BaseURL = baseURL
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	if c.Model == "" {
		c.Model = model
	}
	if c.Temperature <= 0 {
		c.Temperature = DefaultTemperature
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = DefaultMaxTokens
	}
	if c.Timeout <= 0 {
		c.Timeout = 2 * time.Minute
	}
	return c
}

// New creates the configured summarizer, instrumented with metrics.
func New(ctx context.Context, cfg Config) (Summarizer, error) {
	var s Summarizer
	switch strings.ToLower(cfg.Backend) {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("summarizer openai: OPENAI_API_KEY is required")
		}
		s = NewOpenAI(cfg)
	case "anthropic", "claude":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("summarizer anthropic: ANTHROPIC_API_KEY is required")
		}
		s = NewAnthropic(cfg)
	case "gemini":
		g, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s = g
	case "extractive", "":
		s = NewExtractive(0)
	default:
		return nil, fmt.Errorf("unknown summarizer backend %q", cfg.Backend)
	}
	return Instrument(s), nil
}
