package summarize

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/service/backend"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	cfg    Config
	client *genai.Client
}

// NewGemini creates a Gemini summarizer.
func NewGemini(ctx context.Context, cfg Config) (*Gemini, error) {
	cfg = cfg.withDefaults("", "gemini-2.0-flash")

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Gemini{cfg: cfg, client: client}, nil
}

// Name returns the backend name.
func (g *Gemini) Name() string { return "gemini" }

// Summarize generates content with the system prompt as system instruction.
func (g *Gemini) Summarize(ctx context.Context, instruction, text string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(Compose(instruction, text)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemPrompt, genai.RoleUser),
		Temperature:       genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens:   int32(g.cfg.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("gemini: %w", classifyGenAI(ctx, err))
	}
	out := strings.TrimSpace(resp.Text())
	if out == "" {
		return "", fmt.Errorf("gemini: %w: empty response", apperrors.ErrBackend)
	}
	return out, nil
}

func classifyGenAI(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return backend.ClassifyStatus(apiErr.Code, []byte(apiErr.Message))
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return backend.ClassifyStatus(apiErrPtr.Code, []byte(apiErrPtr.Message))
	}
	return backend.ClassifyTransport(err)
}
