package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "clinical-notes-service/internal/errors"
)

// Normalizer converts an uploaded recording at src into the canonical
// encoding at dst. Failures wrap apperrors.ErrUnsupportedFormat or
// apperrors.ErrCorruptInput when the input is at fault.
type Normalizer interface {
	Name() string
	Normalize(ctx context.Context, src, dst, formatHint string) error
}

// SupportedFormats lists the upload extensions accepted by the ffmpeg
// normalizer.
var SupportedFormats = map[string]bool{
	"wav":  true,
	"mp3":  true,
	"m4a":  true,
	"mp4":  true,
	"aac":  true,
	"ogg":  true,
	"oga":  true,
	"opus": true,
	"webm": true,
	"flac": true,
}

// FFmpegConfig holds ffmpeg normalizer configuration.
type FFmpegConfig struct {
	Binary      string        // ffmpeg executable, default "ffmpeg"
	SampleRate  int           // output sample rate, default 16000
	GracePeriod time.Duration // SIGTERM to SIGKILL delay on cancellation
}

// FFmpegNormalizer decodes any supported format to 16-bit mono PCM WAV.
type FFmpegNormalizer struct {
	cfg FFmpegConfig
}

// NewFFmpegNormalizer creates an ffmpeg-backed normalizer.
func NewFFmpegNormalizer(cfg FFmpegConfig) *FFmpegNormalizer {
	if cfg.Binary == "" {
		cfg.Binary = "ffmpeg"
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 2 * time.Second
	}
	return &FFmpegNormalizer{cfg: cfg}
}

// Name returns the normalizer name.
func (n *FFmpegNormalizer) Name() string { return "ffmpeg" }

// Normalize runs ffmpeg on src and writes a WAV file to dst. Metadata is
// stripped so that re-encodes of the same audio produce the same bytes.
func (n *FFmpegNormalizer) Normalize(ctx context.Context, src, dst, formatHint string) error {
	if !SupportedFormats[formatHint] {
		return fmt.Errorf("%w: %q", apperrors.ErrUnsupportedFormat, formatHint)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", src,
		"-map_metadata", "-1", "-fflags", "+bitexact", "-flags:a", "+bitexact",
		"-vn", "-ac", "1", "-ar", strconv.Itoa(n.cfg.SampleRate),
		"-c:a", "pcm_s16le", "-f", "wav",
		dst,
	}

	cmd := exec.CommandContext(ctx, n.cfg.Binary, args...) //nolint:gosec // args are built here, src/dst live in the request workspace
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = n.cfg.GracePeriod

	start := time.Now()
	err := cmd.Run()
	if err == nil {
		log.Debug().
			Dur("duration", time.Since(start)).
			Str("format", formatHint).
			Msg("Audio normalized")
		return nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, exec.ErrNotFound) {
		return apperrors.Internal(err, "ffmpeg is not installed")
	}
	return classifyFFmpegError(stderr.String(), err)
}

func classifyFFmpegError(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if len(msg) > 512 {
		msg = msg[:512]
	}
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "invalid data found"),
		strings.Contains(lower, "could not find codec parameters"),
		strings.Contains(lower, "end of file"),
		strings.Contains(lower, "error while decoding"):
		return fmt.Errorf("%w: %s", apperrors.ErrCorruptInput, msg)
	case strings.Contains(lower, "unknown format"),
		strings.Contains(lower, "not supported"),
		strings.Contains(lower, "no such filter"),
		strings.Contains(lower, "does not contain any stream"):
		return fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, msg)
	}
	return apperrors.Internal(err, "audio normalization failed: "+msg)
}

// WAVNormalizer accepts WAV uploads only and copies them unchanged after
// validating the RIFF header. It serves deployments without ffmpeg and tests.
type WAVNormalizer struct{}

// NewWAVNormalizer creates a pass-through WAV normalizer.
func NewWAVNormalizer() *WAVNormalizer { return &WAVNormalizer{} }

// Name returns the normalizer name.
func (WAVNormalizer) Name() string { return "wav" }

// WAV header is 44 bytes for standard PCM files
const wavHeaderSize = 44

// Normalize validates src as WAV and copies it to dst.
func (WAVNormalizer) Normalize(ctx context.Context, src, dst, formatHint string) error {
	if formatHint != "wav" {
		return fmt.Errorf("%w: %q (only wav without ffmpeg)", apperrors.ErrUnsupportedFormat, formatHint)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return apperrors.Internal(err, "failed to open upload")
	}
	defer in.Close()

	header := make([]byte, wavHeaderSize)
	if _, err := io.ReadFull(in, header); err != nil {
		return fmt.Errorf("%w: short WAV header", apperrors.ErrCorruptInput)
	}
	if err := validateWAVHeader(header); err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return apperrors.Internal(err, "failed to create normalized file")
	}
	defer out.Close()

	if _, err := out.Write(header); err != nil {
		return apperrors.Internal(err, "failed to write normalized file")
	}
	if _, err := io.Copy(out, in); err != nil {
		return apperrors.Internal(err, "failed to write normalized file")
	}
	return out.Close()
}

// validateWAVHeader checks the RIFF/WAVE magic and the PCM format fields.
func validateWAVHeader(h []byte) error {
	if string(h[0:4]) != "RIFF" || string(h[8:12]) != "WAVE" {
		return fmt.Errorf("%w: not a RIFF/WAVE file", apperrors.ErrCorruptInput)
	}
	if string(h[12:16]) != "fmt " {
		return fmt.Errorf("%w: missing fmt chunk", apperrors.ErrCorruptInput)
	}
	channels := int(h[22]) | int(h[23])<<8
	sampleRate := int(h[24]) | int(h[25])<<8 | int(h[26])<<16 | int(h[27])<<24
	if channels == 0 || sampleRate == 0 {
		return fmt.Errorf("%w: channels=%d sampleRate=%d", apperrors.ErrCorruptInput, channels, sampleRate)
	}
	return nil
}
