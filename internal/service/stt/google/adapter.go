// Package google provides a Google Cloud Speech-to-Text transcriber.
package google

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	apperrors "clinical-notes-service/internal/errors"
	"clinical-notes-service/internal/service/stt"
)

// Config holds Google STT configuration.
type Config struct {
	LanguageCode  string // BCP-47 language code, e.g. "en-US"
	SampleRateHz  int32  // Audio sample rate in Hz
	AudioEncoding string // LINEAR16, FLAC, ...
	FastModel     string // Recognition model for the fast tier
	AccurateModel string // Recognition model for the accurate tier
	Punctuation   bool   // Automatic punctuation
}

// DefaultConfig returns default configuration matching the normalizer output.
func DefaultConfig() Config {
	return Config{
		LanguageCode:  "en-US",
		SampleRateHz:  16000,
		AudioEncoding: "LINEAR16",
		FastModel:     "latest_short",
		AccurateModel: "latest_long",
		Punctuation:   true,
	}
}

// parseAudioEncoding converts string to speechpb.RecognitionConfig_AudioEncoding.
func parseAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch encoding {
	case "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_LINEAR16
	}
}

// recognizer is the subset of the Speech API used here.
type recognizer interface {
	recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)
	recognizeLong(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)
	close() error
}

type clientRecognizer struct {
	client *speech.Client
}

func (c *clientRecognizer) recognize(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
	return c.client.Recognize(ctx, req)
}

func (c *clientRecognizer) recognizeLong(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
	op, err := c.client.LongRunningRecognize(ctx, req)
	if err != nil {
		return nil, err
	}
	return op.Wait(ctx)
}

func (c *clientRecognizer) close() error {
	return c.client.Close()
}

// Adapter implements stt.Transcriber using Google Cloud Speech-to-Text.
// The fast tier uses synchronous recognition; the accurate tier uses a
// long-running operation so that full session recordings fit.
type Adapter struct {
	api    recognizer
	config Config
}

var _ stt.Transcriber = (*Adapter)(nil)

// New creates a new Google STT transcriber.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Adapter, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Adapter{api: &clientRecognizer{client: c}, config: cfg}, nil
}

// Name returns the backend name.
func (a *Adapter) Name() string { return "google" }

// Transcribe sends the audio for recognition and joins the top alternative of
// every result.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, tier stt.Tier) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", apperrors.ErrTranscriptionFailed)
	}

	cfg := a.recognitionConfig(tier)
	content := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
	}

	var results []*speechpb.SpeechRecognitionResult
	if tier == stt.TierAccurate {
		resp, err := a.api.recognizeLong(ctx, &speechpb.LongRunningRecognizeRequest{Config: cfg, Audio: content})
		if err != nil {
			return "", classify(ctx, err)
		}
		results = resp.GetResults()
	} else {
		resp, err := a.api.recognize(ctx, &speechpb.RecognizeRequest{Config: cfg, Audio: content})
		if err != nil {
			return "", classify(ctx, err)
		}
		results = resp.GetResults()
	}

	return joinResults(results), nil
}

// Close releases the underlying client.
func (a *Adapter) Close() error {
	return a.api.close()
}

func (a *Adapter) recognitionConfig(tier stt.Tier) *speechpb.RecognitionConfig {
	model := a.config.FastModel
	if tier == stt.TierAccurate {
		model = a.config.AccurateModel
	}
	return &speechpb.RecognitionConfig{
		Encoding:                   parseAudioEncoding(a.config.AudioEncoding),
		SampleRateHertz:            a.config.SampleRateHz,
		LanguageCode:               a.config.LanguageCode,
		AudioChannelCount:          1,
		Model:                      model,
		EnableAutomaticPunctuation: a.config.Punctuation,
	}
}

func joinResults(results []*speechpb.SpeechRecognitionResult) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if text := strings.TrimSpace(alts[0].GetTranscript()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// classify maps gRPC status codes to collaborator sentinels.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", apperrors.ErrRateLimited, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", apperrors.ErrModelUnavailable, st.Message())
	case codes.InvalidArgument, codes.OutOfRange:
		return fmt.Errorf("%w: %s", apperrors.ErrTranscriptionFailed, st.Message())
	case codes.Internal, codes.Aborted:
		return apperrors.Transient(fmt.Errorf("%w: %s", apperrors.ErrBackend, st.Message()))
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrBackend, st.Message())
	}
}
