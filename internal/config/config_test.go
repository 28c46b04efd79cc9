package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, v := range []string{
		"SERVICE_PRINCIPAL", "HTTP_PORT", "GRPC_PORT", "LOG_LEVEL", "CACHE_CAPACITY",
		"STT_FAST_PROVIDER", "STT_ACCURATE_PROVIDER", "WHISPER_FAST_MODEL", "WHISPER_ACCURATE_MODEL",
		"SUMMARIZER_BACKEND", "GENERATOR_BACKEND", "GENERATOR_MAX_NEW_TOKENS", "AUDIO_MAX_UPLOAD_BYTES",
		"KAFKA_ENABLED", "KAFKA_BROKERS", "REDIS_ENABLED", "REDIS_TTL", "CORS_ALLOWED_ORIGINS",
	} {
		t.Setenv(v, "")
	}

	cfg := Load()

	if cfg.Service.Principal != "svc-clinical-notes" {
		t.Errorf("expected default principal 'svc-clinical-notes', got %s", cfg.Service.Principal)
	}
	if cfg.Service.HTTPPort != "8000" || cfg.Service.GRPCPort != "50051" {
		t.Errorf("unexpected default ports %s/%s", cfg.Service.HTTPPort, cfg.Service.GRPCPort)
	}
	if !reflect.DeepEqual(cfg.Service.CORSOrigins, []string{"*"}) {
		t.Errorf("expected CORS '*', got %v", cfg.Service.CORSOrigins)
	}
	if cfg.Cache.Capacity != 256 {
		t.Errorf("expected cache capacity 256, got %d", cfg.Cache.Capacity)
	}
	if cfg.STT.FastProvider != "mock" || cfg.STT.AccurateProvider != "mock" {
		t.Errorf("expected mock STT providers, got %s/%s", cfg.STT.FastProvider, cfg.STT.AccurateProvider)
	}
	if cfg.STT.WhisperFastModel != "base" || cfg.STT.WhisperAccurateModel != "large-v3" {
		t.Errorf("unexpected whisper models %s/%s", cfg.STT.WhisperFastModel, cfg.STT.WhisperAccurateModel)
	}
	if cfg.Summarizer.Backend != "extractive" {
		t.Errorf("expected extractive summarizer, got %s", cfg.Summarizer.Backend)
	}
	if cfg.Generator.Backend != "mock" || cfg.Generator.MaxNewTokens != 1024 {
		t.Errorf("unexpected generator defaults %+v", cfg.Generator)
	}
	if cfg.Audio.MaxUploadBytes != 100*1024*1024 {
		t.Errorf("expected 100MB upload limit, got %d", cfg.Audio.MaxUploadBytes)
	}
	if cfg.Kafka.Enabled || cfg.Kafka.Brokers != nil {
		t.Errorf("expected Kafka disabled, got %+v", cfg.Kafka)
	}
	if cfg.Redis.Enabled || cfg.Redis.TTL != 24*time.Hour {
		t.Errorf("unexpected redis defaults %+v", cfg.Redis)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "custom-principal")
	t.Setenv("HTTP_PORT", "9999")
	t.Setenv("CACHE_CAPACITY", "32")
	t.Setenv("STT_ACCURATE_PROVIDER", "google")
	t.Setenv("SUMMARIZER_BACKEND", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-env")
	t.Setenv("SUMMARIZER_API_KEY", "")
	t.Setenv("GENERATOR_TEMPERATURE", "0.3")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("REDIS_TTL", "1h")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := Load()

	if cfg.Service.Principal != "custom-principal" || cfg.Service.HTTPPort != "9999" {
		t.Errorf("unexpected service config %+v", cfg.Service)
	}
	if cfg.Cache.Capacity != 32 {
		t.Errorf("expected capacity 32, got %d", cfg.Cache.Capacity)
	}
	if cfg.STT.AccurateProvider != "google" {
		t.Errorf("expected google accurate provider, got %s", cfg.STT.AccurateProvider)
	}
	if cfg.Summarizer.Backend != "openai" || cfg.Summarizer.APIKey != "sk-env" {
		t.Errorf("expected openai with env key, got %s/%q", cfg.Summarizer.Backend, cfg.Summarizer.APIKey)
	}
	if cfg.Generator.Temperature != 0.3 {
		t.Errorf("expected temperature 0.3, got %v", cfg.Generator.Temperature)
	}
	if !cfg.Kafka.Enabled || !reflect.DeepEqual(cfg.Kafka.Brokers, []string{"kafka-1:9092", "kafka-2:9092"}) {
		t.Errorf("unexpected kafka config %+v", cfg.Kafka)
	}
	if cfg.Redis.TTL != time.Hour {
		t.Errorf("expected redis ttl 1h, got %v", cfg.Redis.TTL)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Observability.LogLevel)
	}
}

func TestLoad_InvalidValues_FallbackToDefaults(t *testing.T) {
	t.Setenv("CACHE_CAPACITY", "not-a-number")
	t.Setenv("GENERATOR_TOP_P", "high")
	t.Setenv("REDIS_ENABLED", "maybe")
	t.Setenv("RETRY_BASE_DELAY", "soon")
	t.Setenv("AUDIO_MAX_UPLOAD_BYTES", "lots")

	cfg := Load()

	if cfg.Cache.Capacity != 256 {
		t.Errorf("expected default capacity on invalid input, got %d", cfg.Cache.Capacity)
	}
	if cfg.Generator.TopP != 0.95 {
		t.Errorf("expected default top_p on invalid input, got %v", cfg.Generator.TopP)
	}
	if cfg.Redis.Enabled {
		t.Error("expected redis disabled on invalid input")
	}
	if cfg.Retry.BaseDelay != 500*time.Millisecond {
		t.Errorf("expected default base delay on invalid input, got %v", cfg.Retry.BaseDelay)
	}
	if cfg.Audio.MaxUploadBytes != 100*1024*1024 {
		t.Errorf("expected default upload limit on invalid input, got %d", cfg.Audio.MaxUploadBytes)
	}
}

func TestLoad_KafkaPrincipal_FallsBackToServicePrincipal(t *testing.T) {
	t.Setenv("SERVICE_PRINCIPAL", "my-service")
	t.Setenv("KAFKA_PRINCIPAL", "")

	cfg := Load()

	if cfg.Kafka.Principal != "my-service" {
		t.Errorf("expected Kafka principal to fall back to service principal, got %s", cfg.Kafka.Principal)
	}
}

func TestEnvOrDefaultBool(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		def      bool
		expected bool
	}{
		{"true string", "true", false, true},
		{"false string", "false", true, false},
		{"1", "1", false, true},
		{"0", "0", true, false},
		{"TRUE uppercase", "TRUE", false, true},
		{"invalid", "invalid", true, true},
		{"empty", "", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TEST_BOOL_VAR", tt.envValue)
			if got := envOrDefaultBool("TEST_BOOL_VAR", tt.def); got != tt.expected {
				t.Errorf("envOrDefaultBool(%s, %v) = %v, want %v", tt.envValue, tt.def, got, tt.expected)
			}
		})
	}
}

func TestEnvOrDefaultList(t *testing.T) {
	tests := []struct {
		value string
		want  []string
	}{
		{"", []string{"def"}},
		{"a,b", []string{"a", "b"}},
		{" a , ,b ", []string{"a", "b"}},
		{" , ", []string{"def"}},
	}
	for _, tt := range tests {
		t.Setenv("TEST_LIST_VAR", tt.value)
		if got := envOrDefaultList("TEST_LIST_VAR", []string{"def"}); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("envOrDefaultList(%q) = %v, want %v", tt.value, got, tt.want)
		}
	}
}
