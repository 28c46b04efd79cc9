package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "clinical-notes-service/internal/errors"
)

var conversation = []Message{
	{Role: RoleSystem, Content: "Be helpful."},
	{Role: RoleUser, Content: "Brief: recess"},
	{Role: RoleAssistant, Content: "Understood. Here is the expanded educational text:"},
}

func TestRenderLlama3(t *testing.T) {
	got := RenderLlama3(conversation[:1])
	want := "<|begin_of_text|><|start_header_id|>system<|end_header_id|>\n\nBe helpful.<|eot_id|>" +
		"<|start_header_id|>assistant<|end_header_id|>\n\n"
	if got != want {
		t.Errorf("RenderLlama3() =\n%q\nwant\n%q", got, want)
	}
}

func TestStripSpecialTokens(t *testing.T) {
	got := StripSpecialTokens(RenderLlama3(conversation))
	if strings.Contains(got, "<|") || strings.Contains(got, "assistant") {
		t.Errorf("template residue left in %q", got)
	}
	want := "Be helpful.Brief: recessUnderstood. Here is the expanded educational text:"
	if got != want {
		t.Errorf("StripSpecialTokens() = %q, want %q", got, want)
	}
}

func TestOllama_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaGenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
			return
		}
		if !req.Raw || req.Stream {
			t.Errorf("expected raw non-streaming request, got %+v", req)
		}
		if req.Options.NumPredict != 1024 || req.Options.Temperature != 0.8 ||
			req.Options.TopP != 0.95 || req.Options.RepeatPenalty != 1.05 {
			t.Errorf("unexpected options %+v", req.Options)
		}
		if !strings.HasSuffix(req.Prompt, "<|start_header_id|>assistant<|end_header_id|>\n\n") {
			t.Errorf("prompt does not open an assistant turn: %q", req.Prompt)
		}
		w.Write([]byte(`{"model":"m","response":" Counselors help.","done":true,"prompt_eval_count":42,"eval_count":7}`))
	}))
	defer srv.Close()

	g := NewOllama(OllamaConfig{BaseURL: srv.URL + "/"})
	res, err := g.Generate(context.Background(), conversation)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if res.InputTokens != 42 || res.TotalTokens != 49 {
		t.Errorf("unexpected token counts %+v", res)
	}
	if !strings.HasSuffix(res.Raw, "expanded educational text: Counselors help.") {
		t.Errorf("unexpected raw %q", res.Raw)
	}
}

func TestOllama_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusTooManyRequests, apperrors.ErrRateLimited},
		{http.StatusServiceUnavailable, apperrors.ErrModelUnavailable},
		{http.StatusInternalServerError, apperrors.ErrBackend},
		{http.StatusNotFound, apperrors.ErrBackend},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error":"nope"}`, tt.status)
		}))
		_, err := NewOllama(OllamaConfig{BaseURL: srv.URL}).Generate(context.Background(), conversation)
		srv.Close()
		if !errors.Is(err, tt.want) {
			t.Errorf("status %d: expected %v, got %v", tt.status, tt.want, err)
		}
	}
}

func TestMock(t *testing.T) {
	m := NewMock()
	res, err := m.Generate(context.Background(), conversation)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(res.Raw, DefaultMockCompletion) {
		t.Errorf("completion missing from raw %q", res.Raw)
	}
	if res.TotalTokens <= res.InputTokens {
		t.Errorf("expected total > input, got %+v", res)
	}
	if m.Calls() != 1 || len(m.LastMessages()) != 3 {
		t.Errorf("calls=%d messages=%d", m.Calls(), len(m.LastMessages()))
	}

	m.TotalTokens = 1
	res, _ = m.Generate(context.Background(), conversation)
	if res.TotalTokens != 1 {
		t.Errorf("override ignored: %+v", res)
	}

	m.Err = apperrors.ErrRateLimited
	if _, err := m.Generate(context.Background(), conversation); !errors.Is(err, apperrors.ErrRateLimited) {
		t.Errorf("expected configured error, got %v", err)
	}
}
