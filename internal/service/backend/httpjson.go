// Package backend holds the plumbing shared by the model backend clients:
// JSON over HTTP, status classification into collaborator sentinels, and
// per-call metrics.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/observability/metrics"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 2048

// StatusError is a non-2xx response from a model backend.
type StatusError struct {
	StatusCode int
	Body       string
	sentinel   error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%v: HTTP %d: %s", e.sentinel, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return e.sentinel }

// ClassifyStatus maps an HTTP status to a collaborator error. Returns nil for
// 2xx. 429 is rate limiting, 503 and 504 mean the model is unavailable, other
// 5xx are transient backend errors and the rest are permanent.
func ClassifyStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	e := &StatusError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	switch {
	case status == http.StatusTooManyRequests:
		e.sentinel = apperrors.ErrRateLimited
		return e
	case status == http.StatusServiceUnavailable || status == http.StatusGatewayTimeout:
		e.sentinel = apperrors.ErrModelUnavailable
		return e
	case status >= 500:
		e.sentinel = apperrors.ErrBackend
		return apperrors.Transient(e)
	default:
		e.sentinel = apperrors.ErrBackend
		return e
	}
}

// ClassifyTransport maps a client.Do error. Context errors pass through
// unchanged; connection failures mean the model is unavailable.
func ClassifyTransport(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", apperrors.ErrModelUnavailable, err)
	}
	return apperrors.Transient(fmt.Errorf("%w: %v", apperrors.ErrBackend, err))
}

// PostJSON sends in as JSON to url and decodes a 2xx response into out.
func PostJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	return Do(client, req, out)
}

// Do sends req and decodes a 2xx JSON response into out.
func Do(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return ClassifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ClassifyStatus(resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", apperrors.ErrBackend, err)
	}
	return nil
}

// Observe records the latency and outcome of one backend call.
func Observe(kind, name string, start time.Time, err error) {
	code := ""
	if err != nil {
		code = string(apperrors.Collaborator(err, name).Code)
		if errors.Is(err, context.Canceled) {
			code = string(apperrors.CodeCancelled)
		}
	}
	metrics.DefaultMetrics.RecordCollaboratorCall(kind, name, code, time.Since(start).Seconds())
}
