package expand

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/models"
	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/observability/metrics"
	"clinical-notes-service/internal/resilience"
	"clinical-notes-service/internal/service/generate"
	"clinical-notes-service/internal/service/lifecycle"
)

const minBriefLength = 3

// EventPublisher receives expansion metadata.
type EventPublisher interface {
	PublishExpansion(ctx context.Context, event models.ExpansionGenerated) error
}

// Service runs the expansion pipeline.
type Service struct {
	generator generate.Generator
	publisher EventPublisher
	retry     resilience.RetryConfig
}

// NewService creates an expansion service. publisher may be nil.
func NewService(g generate.Generator, publisher EventPublisher, retry resilience.RetryConfig) *Service {
	return &Service{generator: g, publisher: publisher, retry: retry}
}

// Model returns the id of the model backing the generator.
func (s *Service) Model() string { return s.generator.Model() }

// Expand validates req, generates an expansion and post-processes it.
// Validation failures are reported before the generator is called.
func (s *Service) Expand(ctx context.Context, req Request) (*Outcome, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if err := validate(req); err != nil {
		metrics.DefaultMetrics.RecordRequestFailed("expand", lifecycle.StateReceived.String())
		return nil, err
	}

	lc := lifecycle.New(req.RequestID)
	logger := logging.WithRequest(req.RequestID, "expand")

	outcome, err := s.run(ctx, req, lc)
	if err != nil {
		if from, ok := lc.Fail(); ok {
			metrics.DefaultMetrics.RecordRequestFailed("expand", from.String())
		}
		logger.Warn().Err(err).Str("state", lc.State().String()).Msg("Expansion failed")
		return nil, err
	}

	logger.Info().
		Str("audience", req.Audience).
		Str("tone", req.Tone).
		Int("promptTokens", outcome.PromptTokens).
		Int("completionTokens", outcome.CompletionTokens).
		Dur("duration", lc.Elapsed()).
		Msg("Expansion complete")

	s.publish(ctx, req, outcome, lc.Elapsed())
	return outcome, nil
}

func (s *Service) run(ctx context.Context, req Request, lc *lifecycle.Request) (*Outcome, error) {
	if err := lc.Advance(lifecycle.StateSummarizing); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}

	messages := BuildMessages(req)
	res, err := resilience.Retry(ctx, s.retry, "generate", func(ctx context.Context) (generate.Result, error) {
		return s.generator.Generate(ctx, messages)
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.Cancelled(err)
		}
		return nil, apperrors.Collaborator(err, s.generator.Name())
	}

	outcome := PostProcess(res.Raw, res.InputTokens, res.TotalTokens)
	outcome.Model = s.generator.Model()
	metrics.DefaultMetrics.RecordTokens(outcome.PromptTokens, outcome.CompletionTokens)

	if err := lc.Advance(lifecycle.StateDone); err != nil {
		return nil, apperrors.Internal(err, "invalid request state")
	}
	return &outcome, nil
}

func (s *Service) publish(ctx context.Context, req Request, o *Outcome, elapsed time.Duration) {
	if s.publisher == nil {
		return
	}
	event := models.ExpansionGenerated{
		EventType:        models.EventExpansionGenerated,
		RequestID:        req.RequestID,
		Timestamp:        time.Now().UnixMilli(),
		Audience:         req.Audience,
		Tone:             req.Tone,
		Model:            o.Model,
		PromptTokens:     o.PromptTokens,
		CompletionTokens: o.CompletionTokens,
		PIIRemoved:       o.Safety.PIIRemoved,
		DurationMs:       elapsed.Milliseconds(),
	}
	if err := s.publisher.PublishExpansion(context.WithoutCancel(ctx), event); err != nil {
		logger := logging.WithRequest(req.RequestID, "expand")
		logger.Warn().Err(err).Msg("Failed to publish expansion event")
	}
}

func validate(req Request) error {
	brief := strings.TrimSpace(req.Brief)
	if brief == "" {
		return apperrors.ClientInput(apperrors.CodeEmptyBrief, "brief cannot be empty")
	}
	if len([]rune(brief)) < minBriefLength {
		return apperrors.ClientInput(apperrors.CodeInvalidInput, "brief must be at least 3 characters")
	}
	if !slices.Contains(Audiences, req.Audience) {
		return apperrors.ClientInput(apperrors.CodeInvalidInput, "Invalid audience").
			WithDetail("allowed", Audiences)
	}
	if !slices.Contains(Tones, req.Tone) {
		return apperrors.ClientInput(apperrors.CodeInvalidInput, "Invalid tone").
			WithDetail("allowed", Tones)
	}
	return nil
}
