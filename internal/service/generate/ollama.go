package generate

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"clinical-notes-service/internal/service/backend"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1:8b-instruct-q8_0"
	defaultTimeout     = 5 * time.Minute
)

// OllamaConfig holds configuration for the Ollama backend.
type OllamaConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
	Options Options
}

// Ollama renders the Llama 3 template itself and calls /api/generate in raw
// mode so the priming assistant turn is continued rather than answered.
type Ollama struct {
	cfg    OllamaConfig
	client *http.Client
}

// NewOllama creates an Ollama generator.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = defaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Options == (Options{}) {
		cfg.Options = DefaultOptions()
	}
	return &Ollama{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name returns the backend name.
func (o *Ollama) Name() string { return "ollama" }

// Model returns the configured model tag.
func (o *Ollama) Model() string { return o.cfg.Model }

type ollamaOptions struct {
	NumPredict    int     `json:"num_predict"`
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Raw     bool          `json:"raw"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaGenerateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// Generate runs one non-streaming completion.
func (o *Ollama) Generate(ctx context.Context, messages []Message) (Result, error) {
	prompt := RenderLlama3(messages)
	req := ollamaGenerateRequest{
		Model:  o.cfg.Model,
		Prompt: prompt,
		Raw:    true,
		Stream: false,
		Options: ollamaOptions{
			NumPredict:    o.cfg.Options.MaxNewTokens,
			Temperature:   o.cfg.Options.Temperature,
			TopP:          o.cfg.Options.TopP,
			RepeatPenalty: o.cfg.Options.RepetitionPenalty,
		},
	}

	var resp ollamaGenerateResponse
	if err := backend.PostJSON(ctx, o.client, o.cfg.BaseURL+"/api/generate", nil, req, &resp); err != nil {
		return Result{}, fmt.Errorf("ollama generate: %w", err)
	}

	return Result{
		Raw:         StripSpecialTokens(prompt) + resp.Response,
		InputTokens: resp.PromptEvalCount,
		TotalTokens: resp.PromptEvalCount + resp.EvalCount,
	}, nil
}

// Ping checks that the Ollama server is reachable.
func (o *Ollama) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.cfg.BaseURL+"/api/tags", http.NoBody)
	if err != nil {
		return err
	}
	return backend.Do(o.client, req, nil)
}
