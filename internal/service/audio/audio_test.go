package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "clinical-notes-service/internal/errors"
)

// testWAV builds a minimal 16-bit mono PCM WAV file.
func testWAV(sampleRate uint32, samples int) []byte {
	dataLen := uint32(samples * 2)
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, sampleRate)
	binary.Write(&buf, binary.LittleEndian, sampleRate*2)
	binary.Write(&buf, binary.LittleEndian, uint16(2))
	binary.Write(&buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, dataLen)
	buf.Write(make([]byte, dataLen))
	return buf.Bytes()
}

func TestWorkspace_LifecycleAndCleanup(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "req-123")
	if err != nil {
		t.Fatalf("NewWorkspace() error: %v", err)
	}
	if !strings.Contains(filepath.Base(ws.Dir()), "req-123") {
		t.Errorf("workspace name should carry request id, got %s", ws.Dir())
	}

	path, n, err := ws.WriteUpload("../../escape.wav", bytes.NewReader([]byte("abc")), 0)
	if err != nil {
		t.Fatalf("WriteUpload() error: %v", err)
	}
	if n != 3 || filepath.Dir(path) != ws.Dir() {
		t.Errorf("upload written to %s (%d bytes), want inside %s", path, n, ws.Dir())
	}

	dir := ws.Dir()
	if err := ws.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("workspace still exists after Close: %v", err)
	}
	if err := ws.Close(); err != nil {
		t.Errorf("second Close() should be a no-op, got %v", err)
	}
}

func TestWorkspace_DistinctPerRequest(t *testing.T) {
	base := t.TempDir()
	a, err := NewWorkspace(base, "same")
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	b, err := NewWorkspace(base, "same")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if a.Dir() == b.Dir() {
		t.Error("two requests must not share a workspace")
	}
}

func TestWorkspace_UploadTooLarge(t *testing.T) {
	ws, err := NewWorkspace(t.TempDir(), "big")
	if err != nil {
		t.Fatal(err)
	}
	defer ws.Close()

	_, _, err = ws.WriteUpload("a.wav", bytes.NewReader(make([]byte, 11)), 10)
	if !apperrors.IsKind(err, apperrors.KindClientInput) {
		t.Errorf("expected client input error, got %v", err)
	}
}

func TestFormatHint(t *testing.T) {
	tests := map[string]string{
		"session.WAV":    "wav",
		"note.m4a":       "m4a",
		"archive.tar.gz": "gz",
		"noext":          "",
	}
	for in, want := range tests {
		if got := FormatHint(in); got != want {
			t.Errorf("FormatHint(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWAVNormalizer(t *testing.T) {
	valid := testWAV(16000, 160)

	tests := []struct {
		name    string
		data    []byte
		hint    string
		wantErr error
	}{
		{name: "valid wav", data: valid, hint: "wav"},
		{name: "mp3 rejected", data: valid, hint: "mp3", wantErr: apperrors.ErrUnsupportedFormat},
		{name: "garbage", data: bytes.Repeat([]byte("x"), 64), hint: "wav", wantErr: apperrors.ErrCorruptInput},
		{name: "truncated", data: valid[:20], hint: "wav", wantErr: apperrors.ErrCorruptInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			src := filepath.Join(dir, "in")
			dst := filepath.Join(dir, "out.wav")
			if err := os.WriteFile(src, tt.data, 0o600); err != nil {
				t.Fatal(err)
			}

			err := NewWAVNormalizer().Normalize(context.Background(), src, dst, tt.hint)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			out, _ := os.ReadFile(dst)
			if !bytes.Equal(out, tt.data) {
				t.Error("normalized output differs from valid input")
			}
		})
	}
}

func TestFFmpegNormalizer_RejectsUnknownFormatWithoutSpawning(t *testing.T) {
	n := NewFFmpegNormalizer(FFmpegConfig{Binary: "ffmpeg-binary-that-does-not-exist"})
	err := n.Normalize(context.Background(), "in.xyz", "out.wav", "xyz")
	if !errors.Is(err, apperrors.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFFmpegNormalizer_MissingBinaryIsInternal(t *testing.T) {
	n := NewFFmpegNormalizer(FFmpegConfig{Binary: "ffmpeg-binary-that-does-not-exist"})
	err := n.Normalize(context.Background(), "in.wav", "out.wav", "wav")
	if !apperrors.IsKind(err, apperrors.KindInternal) {
		t.Errorf("expected internal error, got %v", err)
	}
}

func TestClassifyFFmpegError(t *testing.T) {
	cause := errors.New("exit status 1")
	tests := []struct {
		stderr string
		want   error
	}{
		{"in.m4a: Invalid data found when processing input", apperrors.ErrCorruptInput},
		{"Unknown format 'foo'", apperrors.ErrUnsupportedFormat},
		{"Output file does not contain any stream", apperrors.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		if err := classifyFFmpegError(tt.stderr, cause); !errors.Is(err, tt.want) {
			t.Errorf("classify(%q) = %v, want %v", tt.stderr, err, tt.want)
		}
	}

	if err := classifyFFmpegError("segfault", cause); !apperrors.IsKind(err, apperrors.KindInternal) {
		t.Errorf("unrecognised failure should be internal, got %v", err)
	}
}
