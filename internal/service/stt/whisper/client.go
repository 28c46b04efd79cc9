// Package whisper provides a transcriber backed by a Whisper inference
// sidecar exposing the OpenAI-compatible /v1/audio/transcriptions endpoint
// (faster-whisper-server, whisper.cpp server, LocalAI).
package whisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/service/backend"
	"clinical-notes-service/internal/service/stt"
)

// Config holds Whisper sidecar configuration.
type Config struct {
	BaseURL       string
	FastModel     string // model for the live endpoint
	AccurateModel string // model for the recorded endpoint
	Language      string
	Timeout       time.Duration
}

// DefaultConfig returns the models used by the live and recorded endpoints.
func DefaultConfig() Config {
	return Config{
		BaseURL:       "http://localhost:9000",
		FastModel:     "base",
		AccurateModel: "large-v3",
		Language:      "en",
		Timeout:       10 * time.Minute,
	}
}

// Client implements stt.Transcriber over HTTP.
type Client struct {
	cfg    Config
	client *http.Client
}

var _ stt.Transcriber = (*Client)(nil)

// New creates a Whisper sidecar client.
func New(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.FastModel == "" {
		cfg.FastModel = def.FastModel
	}
	if cfg.AccurateModel == "" {
		cfg.AccurateModel = def.AccurateModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name returns the backend name.
func (c *Client) Name() string { return "whisper" }

// Model returns the model used for tier.
func (c *Client) Model(tier stt.Tier) string {
	if tier == stt.TierAccurate {
		return c.cfg.AccurateModel
	}
	return c.cfg.FastModel
}

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the WAV as multipart form data.
func (c *Client) Transcribe(ctx context.Context, audio []byte, tier stt.Tier) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"model":           c.Model(tier),
		"response_format": "json",
		"temperature":     "0",
	}
	if c.cfg.Language != "" {
		fields["language"] = c.cfg.Language
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return "", fmt.Errorf("whisper: write field: %w", err)
		}
	}
	part, err := w.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("whisper: write audio: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("whisper: close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var out transcriptionResponse
	if err := backend.Do(c.client, req, &out); err != nil {
		// A 4xx other than 429 means the sidecar rejected this audio.
		var se *backend.StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 && se.StatusCode != http.StatusTooManyRequests {
			return "", fmt.Errorf("%w: %w", apperrors.ErrTranscriptionFailed, err)
		}
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}
