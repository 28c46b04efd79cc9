// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service configuration.
type Config struct {
	Service       ServiceConfig
	Cache         CacheConfig
	Redis         RedisConfig
	STT           STTConfig
	Summarizer    SummarizerConfig
	Generator     GeneratorConfig
	Audio         AudioConfig
	Kafka         KafkaConfig
	Retry         RetryConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds listener and identity settings.
type ServiceConfig struct {
	Principal       string
	HTTPPort        string
	GRPCPort        string
	ShutdownTimeout time.Duration
	CORSOrigins     []string
}

// CacheConfig holds in-memory transcript cache settings.
type CacheConfig struct {
	Capacity     int
	StoreTimeout time.Duration
}

// RedisConfig holds the second-level transcript store settings.
type RedisConfig struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
	PoolSize  int
}

// STTConfig selects and configures the transcription backends.
type STTConfig struct {
	FastProvider         string // mock, whisper, google
	AccurateProvider     string
	LanguageCode         string
	SampleRateHz         int
	WhisperURL           string
	WhisperFastModel     string
	WhisperAccurateModel string
	GoogleFastModel      string
	GoogleAccurateModel  string
	Timeout              time.Duration
}

// SummarizerConfig configures the summarization backend.
type SummarizerConfig struct {
	Backend     string // extractive, openai, anthropic, gemini
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// GeneratorConfig configures the expansion generator.
type GeneratorConfig struct {
	Backend           string // mock, ollama
	BaseURL           string
	Model             string
	Timeout           time.Duration
	MaxNewTokens      int
	Temperature       float64
	TopP              float64
	RepetitionPenalty float64
}

// AudioConfig configures upload handling and normalization.
type AudioConfig struct {
	Normalizer     string // ffmpeg, wav
	FFmpegBinary   string
	SampleRate     int
	MaxUploadBytes int64
	WorkspaceDir   string
}

// KafkaConfig holds event publisher settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicNotes      string
	TopicExpansions string
	Principal       string
}

// RetryConfig bounds collaborator retries.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsPort string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set win.
func Load() *Config {
	_ = godotenv.Load()

	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-clinical-notes")
	summarizerBackend := strings.ToLower(envOrDefault("SUMMARIZER_BACKEND", "extractive"))

	return &Config{
		Service: ServiceConfig{
			Principal:       principal,
			HTTPPort:        envOrDefault("HTTP_PORT", "8000"),
			GRPCPort:        envOrDefault("GRPC_PORT", "50051"),
			ShutdownTimeout: envOrDefaultDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			CORSOrigins:     envOrDefaultList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Cache: CacheConfig{
			Capacity:     envOrDefaultInt("CACHE_CAPACITY", 256),
			StoreTimeout: envOrDefaultDuration("CACHE_STORE_TIMEOUT", 500*time.Millisecond),
		},
		Redis: RedisConfig{
			Enabled:   envOrDefaultBool("REDIS_ENABLED", false),
			Addr:      envOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        envOrDefaultInt("REDIS_DB", 0),
			KeyPrefix: envOrDefault("REDIS_KEY_PREFIX", "clinical-notes:transcript"),
			TTL:       envOrDefaultDuration("REDIS_TTL", 24*time.Hour),
			PoolSize:  envOrDefaultInt("REDIS_POOL_SIZE", 10),
		},
		STT: STTConfig{
			FastProvider:         envOrDefault("STT_FAST_PROVIDER", "mock"),
			AccurateProvider:     envOrDefault("STT_ACCURATE_PROVIDER", "mock"),
			LanguageCode:         envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:         envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			WhisperURL:           envOrDefault("WHISPER_URL", "http://localhost:9000"),
			WhisperFastModel:     envOrDefault("WHISPER_FAST_MODEL", "base"),
			WhisperAccurateModel: envOrDefault("WHISPER_ACCURATE_MODEL", "large-v3"),
			GoogleFastModel:      envOrDefault("GOOGLE_STT_FAST_MODEL", "latest_short"),
			GoogleAccurateModel:  envOrDefault("GOOGLE_STT_ACCURATE_MODEL", "latest_long"),
			Timeout:              envOrDefaultDuration("STT_TIMEOUT", 5*time.Minute),
		},
		Summarizer: SummarizerConfig{
			Backend:     summarizerBackend,
			Model:       os.Getenv("SUMMARIZER_MODEL"),
			APIKey:      envOrDefault("SUMMARIZER_API_KEY", apiKeyFor(summarizerBackend)),
			BaseURL:     os.Getenv("SUMMARIZER_BASE_URL"),
			Temperature: envOrDefaultFloat("SUMMARIZER_TEMPERATURE", 0.5),
			MaxTokens:   envOrDefaultInt("SUMMARIZER_MAX_TOKENS", 800),
			Timeout:     envOrDefaultDuration("SUMMARIZER_TIMEOUT", 2*time.Minute),
		},
		Generator: GeneratorConfig{
			Backend:           envOrDefault("GENERATOR_BACKEND", "mock"),
			BaseURL:           envOrDefault("OLLAMA_URL", "http://localhost:11434"),
			Model:             envOrDefault("GENERATOR_MODEL", "llama3.1:8b-instruct-q8_0"),
			Timeout:           envOrDefaultDuration("GENERATOR_TIMEOUT", 5*time.Minute),
			MaxNewTokens:      envOrDefaultInt("GENERATOR_MAX_NEW_TOKENS", 1024),
			Temperature:       envOrDefaultFloat("GENERATOR_TEMPERATURE", 0.8),
			TopP:              envOrDefaultFloat("GENERATOR_TOP_P", 0.95),
			RepetitionPenalty: envOrDefaultFloat("GENERATOR_REPETITION_PENALTY", 1.05),
		},
		Audio: AudioConfig{
			Normalizer:     envOrDefault("AUDIO_NORMALIZER", "ffmpeg"),
			FFmpegBinary:   envOrDefault("FFMPEG_BINARY", "ffmpeg"),
			SampleRate:     envOrDefaultInt("AUDIO_SAMPLE_RATE", 16000),
			MaxUploadBytes: envOrDefaultInt64("AUDIO_MAX_UPLOAD_BYTES", 100*1024*1024),
			WorkspaceDir:   os.Getenv("AUDIO_WORKSPACE_DIR"),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envOrDefaultList("KAFKA_BROKERS", nil),
			TopicNotes:      envOrDefault("KAFKA_TOPIC_NOTES", "clinical.notes.generated"),
			TopicExpansions: envOrDefault("KAFKA_TOPIC_EXPANSIONS", "clinical.expansions.generated"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Retry: RetryConfig{
			MaxAttempts: envOrDefaultInt("RETRY_MAX_ATTEMPTS", 3),
			BaseDelay:   envOrDefaultDuration("RETRY_BASE_DELAY", 500*time.Millisecond),
			MaxDelay:    envOrDefaultDuration("RETRY_MAX_DELAY", 10*time.Second),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
	}
}

// apiKeyFor returns the provider's conventional API key variable.
func apiKeyFor(backend string) string {
	switch backend {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "anthropic", "claude":
		return os.Getenv("ANTHROPIC_API_KEY")
	case "gemini":
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envOrDefaultList splits a comma separated value, dropping empty items.
func envOrDefaultList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
