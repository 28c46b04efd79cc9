package notes

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/models"
	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/observability/metrics"
	"clinical-notes-service/internal/resilience"
	"clinical-notes-service/internal/service/audio"
	"clinical-notes-service/internal/service/cache"
	"clinical-notes-service/internal/service/fingerprint"
	"clinical-notes-service/internal/service/lifecycle"
	"clinical-notes-service/internal/service/stt"
	"clinical-notes-service/internal/service/summarize"
)

const canonicalName = "canonical.wav"

// EventPublisher receives note metadata.
type EventPublisher interface {
	PublishNote(ctx context.Context, event models.NoteGenerated) error
}

// Config holds orchestrator settings.
type Config struct {
	// WorkspaceDir is the parent of per-request workspaces. Empty means the
	// system temp directory.
	WorkspaceDir string
	Limits       audio.Limits
	Retry        resilience.RetryConfig
}

// Dependencies are the collaborators of the orchestrator. Publisher may be
// nil.
type Dependencies struct {
	Cache       *cache.Cache
	Normalizer  audio.Normalizer
	Transcriber stt.Transcriber
	Summarizer  summarize.Summarizer
	Publisher   EventPublisher
}

// NoteRequest is one audio note request.
type NoteRequest struct {
	RequestID string
	UserType  string
	NoteType  string
	Prompt    string
	Tier      stt.Tier
	FileName  string
	Audio     io.Reader
}

// NoteResult is the outcome of a transcription request.
type NoteResult struct {
	OriginalTranscript string
	FormattedText      string
	PromptUsed         string
	UserType           string
	NoteType           string
	Fingerprint        fingerprint.Fingerprint
	Source             cache.Source
}

// TextRequest is one free text summarization request.
type TextRequest struct {
	RequestID string
	UserType  string
	NoteType  string
	Prompt    string
	Text      string
}

// TextResult is the outcome of a text summarization request.
type TextResult struct {
	FormattedText string
	PromptUsed    string
	UserType      string
	NoteType      string
}

// Service runs the transcription and text summarization pipelines.
type Service struct {
	cfg  Config
	deps Dependencies
}

// NewService creates the orchestrator.
func NewService(cfg Config, deps Dependencies) *Service {
	if cfg.Limits.MaxUploadBytes <= 0 {
		cfg.Limits = audio.DefaultLimits()
	}
	return &Service{cfg: cfg, deps: deps}
}

// Transcribe normalizes the upload, transcribes it through the cache and
// summarizes the transcript with the caller's prompt. The request workspace
// is removed on every exit path.
func (s *Service) Transcribe(ctx context.Context, req NoteRequest) (*NoteResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := validateNote(req); err != nil {
		metrics.DefaultMetrics.RecordRequestFailed("transcribe", lifecycle.StateReceived.String())
		return nil, err
	}

	lc := lifecycle.New(req.RequestID)
	logger := logging.WithRequest(req.RequestID, "transcribe-"+string(req.Tier))

	res, err := s.transcribe(ctx, req, lc, &logger)
	if err != nil {
		s.fail(lc, "transcribe", err, logger)
		return nil, err
	}

	logger.Info().
		Str("userType", req.UserType).
		Str("noteType", req.NoteType).
		Str("source", res.Source.String()).
		Dur("duration", lc.Elapsed()).
		Msg("Note generated from audio")

	s.publish(ctx, models.NoteGenerated{
		EventType:   models.EventNoteGenerated,
		RequestID:   req.RequestID,
		Timestamp:   time.Now().UnixMilli(),
		UserType:    req.UserType,
		NoteType:    req.NoteType,
		Tier:        string(req.Tier),
		Fingerprint: res.Fingerprint.String(),
		CacheSource: res.Source.String(),
		Summarizer:  s.deps.Summarizer.Name(),
		DurationMs:  lc.Elapsed().Milliseconds(),
	}, logger)
	return res, nil
}

func (s *Service) transcribe(ctx context.Context, req NoteRequest, lc *lifecycle.Request, logger *zerolog.Logger) (*NoteResult, error) {
	ws, err := audio.NewWorkspace(s.cfg.WorkspaceDir, req.RequestID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove request workspace")
		}
	}()

	hint := audio.FormatHint(req.FileName)
	uploadName := "upload"
	if hint != "" {
		uploadName += "." + hint
	}
	src, n, err := ws.WriteUpload(uploadName, req.Audio, s.cfg.Limits.MaxUploadBytes)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, apperrors.ClientInput(apperrors.CodeEmptyAudio, "audio_file is empty")
	}
	metrics.DefaultMetrics.RecordAudioReceived(n)

	dst := ws.Path(canonicalName)
	if err := s.deps.Normalizer.Normalize(ctx, src, dst, hint); err != nil {
		return nil, classify(err, s.deps.Normalizer.Name())
	}
	if err := lc.Advance(lifecycle.StateNormalized); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}

	canonical, fp, err := hashFile(dst)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to read normalized audio")
	}
	*logger = logging.WithFingerprint(*logger, fp.String())
	if err := lc.Advance(lifecycle.StateHashed); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}

	transcript, source, err := s.deps.Cache.GetOrCompute(ctx, fp, func(ctx context.Context) (string, error) {
		return resilience.Retry(ctx, s.cfg.Retry, "transcribe", func(ctx context.Context) (string, error) {
			return s.deps.Transcriber.Transcribe(ctx, canonical, req.Tier)
		})
	})
	if err != nil {
		return nil, classify(err, s.deps.Transcriber.Name())
	}
	next := lifecycle.StateTranscribing
	if source.Hit() {
		next = lifecycle.StateCacheHit
	}
	if err := lc.Advance(next); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}

	if err := lc.Advance(lifecycle.StateSummarizing); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}
	summary, err := s.summarize(ctx, req.Prompt, transcript)
	if err != nil {
		return nil, err
	}
	if err := lc.Advance(lifecycle.StateDone); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}

	return &NoteResult{
		OriginalTranscript: transcript,
		FormattedText:      summary,
		PromptUsed:         req.Prompt,
		UserType:           req.UserType,
		NoteType:           req.NoteType,
		Fingerprint:        fp,
		Source:             source,
	}, nil
}

// SummarizeText formats long_text into a note. The returned text has its
// whitespace collapsed to single spaces.
func (s *Service) SummarizeText(ctx context.Context, req TextRequest) (*TextResult, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := validateText(req); err != nil {
		metrics.DefaultMetrics.RecordRequestFailed("summarize-text", lifecycle.StateReceived.String())
		return nil, err
	}

	lc := lifecycle.New(req.RequestID)
	logger := logging.WithRequest(req.RequestID, "summarize-text")

	if err := lc.Advance(lifecycle.StateSummarizing); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}
	instruction := summarize.NoteInstruction(req.Prompt, req.UserType, req.NoteType)
	summary, err := s.summarize(ctx, instruction, req.Text)
	if err != nil {
		s.fail(lc, "summarize-text", err, logger)
		return nil, err
	}
	if err := lc.Advance(lifecycle.StateDone); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}

	logger.Info().
		Str("userType", req.UserType).
		Str("noteType", req.NoteType).
		Dur("duration", lc.Elapsed()).
		Msg("Note generated from text")

	s.publish(ctx, models.NoteGenerated{
		EventType:  models.EventNoteGenerated,
		RequestID:  req.RequestID,
		Timestamp:  time.Now().UnixMilli(),
		UserType:   req.UserType,
		NoteType:   req.NoteType,
		Summarizer: s.deps.Summarizer.Name(),
		DurationMs: lc.Elapsed().Milliseconds(),
	}, logger)

	return &TextResult{
		FormattedText: summarize.CollapseWhitespace(summary),
		PromptUsed:    req.Prompt,
		UserType:      req.UserType,
		NoteType:      req.NoteType,
	}, nil
}

func (s *Service) summarize(ctx context.Context, instruction, text string) (string, error) {
	summary, err := resilience.Retry(ctx, s.cfg.Retry, "summarize", func(ctx context.Context) (string, error) {
		return s.deps.Summarizer.Summarize(ctx, instruction, text)
	})
	if err != nil {
		return "", classify(err, s.deps.Summarizer.Name())
	}
	return summary, nil
}

func (s *Service) fail(lc *lifecycle.Request, pipeline string, err error, logger zerolog.Logger) {
	from, ok := lc.Fail()
	if ok {
		metrics.DefaultMetrics.RecordRequestFailed(pipeline, from.String())
	}
	logger.Warn().Err(err).Str("state", from.String()).Msg("Request failed")
}

func (s *Service) publish(ctx context.Context, event models.NoteGenerated, logger zerolog.Logger) {
	if s.deps.Publisher == nil {
		return
	}
	if err := s.deps.Publisher.PublishNote(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn().Err(err).Msg("Failed to publish note event")
	}
}

// classify converts a collaborator failure to an *AppError.
func classify(err error, backend string) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return apperrors.Cancelled(err)
	}
	return apperrors.Collaborator(err, backend)
}

// hashFile reads path once, returning its content and fingerprint.
func hashFile(path string) ([]byte, fingerprint.Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fingerprint.Fingerprint{}, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if info, err := f.Stat(); err == nil {
		buf.Grow(int(info.Size()))
	}
	fp, err := fingerprint.FromReader(io.TeeReader(f, &buf))
	if err != nil {
		return nil, fingerprint.Fingerprint{}, err
	}
	return buf.Bytes(), fp, nil
}

func validateNote(req NoteRequest) error {
	if err := ValidateNoteType(req.UserType, req.NoteType); err != nil {
		return err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return apperrors.ClientInput(apperrors.CodeEmptyPrompt, "prompt cannot be empty")
	}
	if !req.Tier.Valid() {
		return apperrors.ClientInput(apperrors.CodeInvalidInput, "unknown transcription tier")
	}
	if req.Audio == nil {
		return apperrors.ClientInput(apperrors.CodeEmptyAudio, "audio_file is required")
	}
	return nil
}

func validateText(req TextRequest) error {
	if err := ValidateNoteType(req.UserType, req.NoteType); err != nil {
		return err
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return apperrors.ClientInput(apperrors.CodeEmptyPrompt, "prompt cannot be empty")
	}
	if strings.TrimSpace(req.Text) == "" {
		return apperrors.ClientInput(apperrors.CodeInvalidInput, "long_text cannot be empty")
	}
	return nil
}
