package summarize

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/service/backend"
)

const anthropicVersion = "2023-06-01"

// Anthropic calls the Messages API.
type Anthropic struct {
	cfg    Config
	client *http.Client
}

// NewAnthropic creates an Anthropic messages summarizer.
func NewAnthropic(cfg Config) *Anthropic {
	cfg = cfg.withDefaults("https://api.anthropic.com", "claude-3-sonnet-20240229")
	return &Anthropic{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name returns the backend name.
func (a *Anthropic) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float32       `json:"temperature"`
	System      string        `json:"system"`
	Messages    []chatMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Summarize sends the composed user message with the system prompt.
func (a *Anthropic) Summarize(ctx context.Context, instruction, text string) (string, error) {
	req := anthropicRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		System:      SystemPrompt,
		Messages:    []chatMessage{{Role: "user", Content: Compose(instruction, text)}},
	}
	header := http.Header{
		"X-Api-Key":         []string{a.cfg.APIKey},
		"Anthropic-Version": []string{anthropicVersion},
	}

	var resp anthropicResponse
	if err := backend.PostJSON(ctx, a.client, a.cfg.BaseURL+"/v1/messages", header, req, &resp); err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var b strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" || c.Type == "" {
			b.WriteString(c.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic: %w: empty content", apperrors.ErrBackend)
	}
	return strings.TrimSpace(b.String()), nil
}
