// Package app wires configuration, collaborators and orchestrators into a
// running service.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"clinical-notes-service/internal/config"
	"clinical-notes-service/internal/events"
	"clinical-notes-service/internal/observability"
	"clinical-notes-service/internal/observability/logging"
	"clinical-notes-service/internal/resilience"
	"clinical-notes-service/internal/schema"
	"clinical-notes-service/internal/service/audio"
	"clinical-notes-service/internal/service/cache"
	"clinical-notes-service/internal/service/expand"
	"clinical-notes-service/internal/service/generate"
	"clinical-notes-service/internal/service/notes"
	"clinical-notes-service/internal/service/stt"
	"clinical-notes-service/internal/service/stt/google"
	"clinical-notes-service/internal/service/stt/mock"
	"clinical-notes-service/internal/service/stt/whisper"
	"clinical-notes-service/internal/service/summarize"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config

	Notes     *notes.Service
	Expander  *expand.Service
	Validator *schema.Validator
	Cache     *cache.Cache
	Publisher *events.Publisher
	Probes    []observability.Probe

	closers []func() error
}

// New builds every collaborator named in cfg. On error, anything already
// opened is closed.
func New(ctx context.Context, cfg *config.Config) (_ *Application, err error) {
	logging.Init(logging.Config{
		Level:      cfg.Observability.LogLevel,
		Format:     cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a := &Application{
		Cfg:       cfg,
		Logger:    logging.WithComponent("application"),
		Validator: schema.New(),
	}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	var store cache.Store
	if cfg.Redis.Enabled {
		rs, err := cache.DialRedis(ctx, cache.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
			TTL:       cfg.Redis.TTL,
			PoolSize:  cfg.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, rs.Close)
		a.Probes = append(a.Probes, observability.Probe{Name: "redis", Check: rs.Ping})
		store = rs
	}

	a.Cache, err = cache.New(cache.Config{
		Capacity:     cfg.Cache.Capacity,
		Store:        store,
		StoreTimeout: cfg.Cache.StoreTimeout,
	})
	if err != nil {
		return nil, err
	}

	normalizer := a.newNormalizer()

	transcriber, err := a.newTranscriber(ctx)
	if err != nil {
		return nil, err
	}

	summarizer, err := summarize.New(ctx, summarize.Config{
		Backend:     cfg.Summarizer.Backend,
		Model:       cfg.Summarizer.Model,
		APIKey:      cfg.Summarizer.APIKey,
		BaseURL:     cfg.Summarizer.BaseURL,
		Temperature: float32(cfg.Summarizer.Temperature),
		MaxTokens:   cfg.Summarizer.MaxTokens,
		Timeout:     cfg.Summarizer.Timeout,
	})
	if err != nil {
		return nil, err
	}

	generator, err := a.newGenerator()
	if err != nil {
		return nil, err
	}

	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicNotes:      cfg.Kafka.TopicNotes,
		TopicExpansions: cfg.Kafka.TopicExpansions,
		Principal:       cfg.Kafka.Principal,
	})
	a.closers = append(a.closers, a.Publisher.Close)

	retry := resilience.RetryConfig{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		BaseDelay:    cfg.Retry.BaseDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		JitterFactor: resilience.DefaultJitterFactor,
	}

	a.Notes = notes.NewService(notes.Config{
		WorkspaceDir: cfg.Audio.WorkspaceDir,
		Limits:       audio.Limits{MaxUploadBytes: cfg.Audio.MaxUploadBytes},
		Retry:        retry,
	}, notes.Dependencies{
		Cache:       a.Cache,
		Normalizer:  normalizer,
		Transcriber: transcriber,
		Summarizer:  summarizer,
		Publisher:   a.Publisher,
	})
	a.Expander = expand.NewService(generator, a.Publisher, retry)

	a.Logger.Info().
		Str("normalizer", normalizer.Name()).
		Str("transcriber", transcriber.Name()).
		Str("summarizer", summarizer.Name()).
		Str("generator", generator.Name()).
		Str("model", generator.Model()).
		Bool("redis", store != nil).
		Bool("kafka", a.Publisher.Enabled()).
		Msg("Clinical notes service application created")
	return a, nil
}

func (a *Application) newNormalizer() audio.Normalizer {
	if strings.EqualFold(a.Cfg.Audio.Normalizer, "wav") {
		return audio.NewWAVNormalizer()
	}
	n := audio.NewFFmpegNormalizer(audio.FFmpegConfig{
		Binary:     a.Cfg.Audio.FFmpegBinary,
		SampleRate: a.Cfg.Audio.SampleRate,
	})
	binary := a.Cfg.Audio.FFmpegBinary
	a.Probes = append(a.Probes, observability.Probe{Name: "ffmpeg", Check: func(context.Context) error {
		_, err := exec.LookPath(binary)
		return err
	}})
	return n
}

// newTranscriber builds one backend per distinct provider and routes the
// tiers to them.
func (a *Application) newTranscriber(ctx context.Context) (stt.Transcriber, error) {
	cfg := a.Cfg.STT
	built := make(map[string]stt.Transcriber)
	get := func(provider string) (stt.Transcriber, error) {
		provider = strings.ToLower(provider)
		if t, ok := built[provider]; ok {
			return t, nil
		}
		var t stt.Transcriber
		switch provider {
		case "mock", "":
			t = mock.New()
		case "whisper":
			t = whisper.New(whisper.Config{
				BaseURL:       cfg.WhisperURL,
				FastModel:     cfg.WhisperFastModel,
				AccurateModel: cfg.WhisperAccurateModel,
				Language:      strings.SplitN(cfg.LanguageCode, "-", 2)[0],
				Timeout:       cfg.Timeout,
			})
		case "google":
			g, err := google.New(ctx, google.Config{
				LanguageCode:  cfg.LanguageCode,
				SampleRateHz:  int32(cfg.SampleRateHz),
				AudioEncoding: "LINEAR16",
				FastModel:     cfg.GoogleFastModel,
				AccurateModel: cfg.GoogleAccurateModel,
				Punctuation:   true,
			})
			if err != nil {
				return nil, fmt.Errorf("google speech client: %w", err)
			}
			a.closers = append(a.closers, g.Close)
			t = g
		default:
			return nil, fmt.Errorf("unknown STT provider %q", provider)
		}
		t = stt.Instrument(t)
		built[provider] = t
		return t, nil
	}

	fast, err := get(cfg.FastProvider)
	if err != nil {
		return nil, err
	}
	accurate, err := get(cfg.AccurateProvider)
	if err != nil {
		return nil, err
	}
	return &stt.Router{Fast: fast, Accurate: accurate}, nil
}

func (a *Application) newGenerator() (generate.Generator, error) {
	cfg := a.Cfg.Generator
	switch strings.ToLower(cfg.Backend) {
	case "mock", "":
		return generate.Instrument(generate.NewMock()), nil
	case "ollama":
		o := generate.NewOllama(generate.OllamaConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
			Options: generate.Options{
				MaxNewTokens:      cfg.MaxNewTokens,
				Temperature:       cfg.Temperature,
				TopP:              cfg.TopP,
				RepetitionPenalty: cfg.RepetitionPenalty,
			},
		})
		a.Probes = append(a.Probes, observability.Probe{Name: "ollama", Check: o.Ping})
		return generate.Instrument(o), nil
	default:
		return nil, fmt.Errorf("unknown generator backend %q", cfg.Backend)
	}
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Int("cacheCapacity", a.Cfg.Cache.Capacity).
		Msg("Clinical notes service starting")
	return nil
}

// Shutdown closes backend clients and the event publisher.
func (a *Application) Shutdown() error {
	stats := a.Cache.Stats()
	a.Logger.Info().
		Int("cacheEntries", stats.Entries).
		Int64("cacheHits", stats.Hits).
		Int64("cacheMisses", stats.Misses).
		Int64("coalesced", stats.Coalesced).
		Msg("Clinical notes service shutting down")
	return a.close()
}

func (a *Application) close() error {
	if a == nil {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
