// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "clinical_notes"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls *prometheus.CounterVec

	// Transcript cache metrics
	CacheHits      *prometheus.CounterVec
	CacheMisses    prometheus.Counter
	CacheCoalesced prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheEntries   prometheus.Gauge
	CacheStoreErrs *prometheus.CounterVec

	// Pipeline metrics
	RequestsFailed *prometheus.CounterVec
	AudioBytes     prometheus.Counter

	// Collaborator metrics
	CollaboratorLatency *prometheus.HistogramVec
	CollaboratorErrors  *prometheus.CounterVec

	// Generation metrics
	PromptTokens     prometheus.Counter
	CompletionTokens prometheus.Counter

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"route"}),

		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "Total number of gRPC calls by method and code",
		}, []string{"method", "code"}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_cache_hits_total",
			Help:      "Transcript cache hits by tier (memory, store)",
		}, []string{"tier"}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_cache_misses_total",
			Help:      "Transcript cache misses that required transcription",
		}),
		CacheCoalesced: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_cache_coalesced_total",
			Help:      "Requests that joined an in-flight transcription",
		}),
		CacheEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_cache_evictions_total",
			Help:      "Transcript cache entries evicted by the LRU bound",
		}),
		CacheEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transcript_cache_entries",
			Help:      "Current number of in-memory transcript cache entries",
		}),
		CacheStoreErrs: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_store_errors_total",
			Help:      "Second-level transcript store errors by operation",
		}, []string{"op"}),

		RequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_failed_total",
			Help:      "Failed pipeline requests by pipeline and failed state",
		}, []string{"pipeline", "state"}),
		AudioBytes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total uploaded audio bytes",
		}),

		CollaboratorLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "collaborator_latency_seconds",
			Help:      "Model backend latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"kind", "backend"}),
		CollaboratorErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "Model backend errors by kind, backend and error code",
		}, []string{"kind", "backend", "code"}),

		PromptTokens: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_prompt_tokens_total",
			Help:      "Prompt tokens sent to the generation backend",
		}),
		CompletionTokens: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_completion_tokens_total",
			Help:      "Completion tokens returned by the generation backend",
		}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(durationSeconds)
}

// RecordGRPCCall records a completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}

// RecordCacheHit records a transcript served from the given cache tier.
func (m *Metrics) RecordCacheHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a transcript that had to be computed.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordCoalesced records a caller that joined an in-flight computation.
func (m *Metrics) RecordCoalesced() {
	m.CacheCoalesced.Inc()
}

// RecordEviction records an LRU eviction.
func (m *Metrics) RecordEviction() {
	m.CacheEvictions.Inc()
}

// SetCacheEntries sets the in-memory cache size gauge.
func (m *Metrics) SetCacheEntries(n int) {
	m.CacheEntries.Set(float64(n))
}

// RecordStoreError records a second-level store failure.
func (m *Metrics) RecordStoreError(op string) {
	m.CacheStoreErrs.WithLabelValues(op).Inc()
}

// RecordRequestFailed records a pipeline request ending in FAILED.
func (m *Metrics) RecordRequestFailed(pipeline, state string) {
	m.RequestsFailed.WithLabelValues(pipeline, state).Inc()
}

// RecordAudioReceived records uploaded audio bytes.
func (m *Metrics) RecordAudioReceived(bytes int64) {
	m.AudioBytes.Add(float64(bytes))
}

// RecordCollaboratorCall records the latency of a model backend call and,
// when code is non-empty, an error.
func (m *Metrics) RecordCollaboratorCall(kind, backend, code string, latencySeconds float64) {
	m.CollaboratorLatency.WithLabelValues(kind, backend).Observe(latencySeconds)
	if code != "" {
		m.CollaboratorErrors.WithLabelValues(kind, backend, code).Inc()
	}
}

// RecordTokens records generation token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.PromptTokens.Add(float64(prompt))
	m.CompletionTokens.Add(float64(completion))
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
