package summarize

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/service/backend"
)

// OpenAI calls the chat completions API.
type OpenAI struct {
	cfg    Config
	client *http.Client
}

// NewOpenAI creates an OpenAI chat summarizer.
func NewOpenAI(cfg Config) *OpenAI {
	cfg = cfg.withDefaults("https://api.openai.com", "gpt-4")
	return &OpenAI{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name returns the backend name.
func (o *OpenAI) Name() string { return "openai" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Summarize sends the system prompt and the composed user message.
func (o *OpenAI) Summarize(ctx context.Context, instruction, text string) (string, error) {
	req := openAIRequest{
		Model: o.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: SystemPrompt},
			{Role: "user", Content: Compose(instruction, text)},
		},
		Temperature: o.cfg.Temperature,
		MaxTokens:   o.cfg.MaxTokens,
	}
	header := http.Header{"Authorization": []string{"Bearer " + o.cfg.APIKey}}

	var resp openAIResponse
	if err := backend.PostJSON(ctx, o.client, o.cfg.BaseURL+"/v1/chat/completions", header, req, &resp); err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w: no choices in response", apperrors.ErrBackend)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
