// Package audio prepares uploaded recordings for transcription: it writes
// uploads into a private per-request workspace and normalizes them to a
// canonical WAV so that identical recordings fingerprint identically.
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "clinical-notes-service/internal/errors"
)

// Limits defines guardrails for uploaded audio.
type Limits struct {
	MaxUploadBytes int64 // Max accepted upload size
}

// DefaultLimits returns sensible default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxUploadBytes: 100 * 1024 * 1024, // 100MB (~50 minutes of 16kHz 16-bit mono)
	}
}

// ErrUploadTooLarge is returned when an upload exceeds Limits.MaxUploadBytes.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// Workspace is a private scratch directory for one request. Close removes it
// and everything inside.
type Workspace struct {
	dir string
}

// NewWorkspace creates a uniquely named directory under baseDir. An empty
// baseDir uses the system temp directory.
func NewWorkspace(baseDir, requestId string) (*Workspace, error) {
	dir, err := os.MkdirTemp(baseDir, "note-"+sanitize(requestId)+"-")
	if err != nil {
		return nil, apperrors.Internal(err, "failed to create request workspace")
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// Path returns the path of name inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.dir, filepath.Base(name))
}

// WriteUpload copies r into the workspace as name, refusing uploads larger
// than limit bytes. Returns the written path and byte count.
func (w *Workspace) WriteUpload(name string, r io.Reader, limit int64) (string, int64, error) {
	path := w.Path(name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", 0, apperrors.Internal(err, "failed to create upload file")
	}
	defer f.Close()

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return "", n, apperrors.Internal(err, "failed to write upload")
	}
	if limit > 0 && n > limit {
		return "", n, apperrors.ClientInput(apperrors.CodeInvalidInput,
			fmt.Sprintf("%s: max %d bytes", ErrUploadTooLarge, limit))
	}
	if err := f.Close(); err != nil {
		return "", n, apperrors.Internal(err, "failed to flush upload")
	}
	return path, n, nil
}

// Close removes the workspace. Safe to call more than once.
func (w *Workspace) Close() error {
	if w == nil || w.dir == "" {
		return nil
	}
	err := os.RemoveAll(w.dir)
	w.dir = ""
	return err
}

// FormatHint derives a lowercase format hint from an upload file name.
func FormatHint(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}

func sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
		if b.Len() >= 36 {
			break
		}
	}
	return b.String()
}
