// Package events publishes note and expansion metadata to Kafka.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"

	"clinical-notes-service/internal/models"
	"clinical-notes-service/internal/observability/metrics"
)

// Default topics.
const (
	DefaultTopicNotes      = "clinical.notes.generated"
	DefaultTopicExpansions = "clinical.expansions.generated"
)

// Publisher writes events to one topic per pipeline. When Kafka is disabled
// events are only logged.
type Publisher struct {
	writerNotes      *kafka.Writer
	writerExpansions *kafka.Writer
	principal        string
	topicNotes       string
	topicExpansions  string
	enabled          bool
	metrics          *metrics.Metrics
}

// Config holds Kafka publisher configuration.
type Config struct {
	Brokers         []string
	TopicNotes      string
	TopicExpansions string
	Principal       string
	Enabled         bool
}

// New creates a publisher. A nil config, Enabled=false or an empty broker
// list yields a log-only publisher.
func New(cfg *Config) *Publisher {
	m := metrics.DefaultMetrics

	if cfg == nil {
		log.Info().Msg("Kafka disabled (nil config), using log-only mode")
		return &Publisher{
			topicNotes:      DefaultTopicNotes,
			topicExpansions: DefaultTopicExpansions,
			metrics:         m,
		}
	}

	p := &Publisher{
		principal:       cfg.Principal,
		topicNotes:      cfg.TopicNotes,
		topicExpansions: cfg.TopicExpansions,
		metrics:         m,
	}
	if p.topicNotes == "" {
		p.topicNotes = DefaultTopicNotes
	}
	if p.topicExpansions == "" {
		p.topicExpansions = DefaultTopicExpansions
	}

	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		log.Info().Msg("Kafka disabled, using log-only mode")
		return p
	}

	// Longer dial timeout for DNS resolution in Kubernetes.
	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{Dial: dialer.DialFunc}

	p.writerNotes = newWriter(cfg.Brokers, p.topicNotes, transport)
	p.writerExpansions = newWriter(cfg.Brokers, p.topicExpansions, transport)
	p.enabled = true

	log.Info().
		Strs("brokers", cfg.Brokers).
		Str("topicNotes", p.topicNotes).
		Str("topicExpansions", p.topicExpansions).
		Str("principal", cfg.Principal).
		Msg("Kafka publisher initialized")

	return p
}

func newWriter(brokers []string, topic string, transport *kafka.Transport) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
		Transport:    transport,
	}
}

// Enabled reports whether events are written to Kafka.
func (p *Publisher) Enabled() bool { return p.enabled }

// PublishNote publishes a NoteGenerated event keyed by request id.
func (p *Publisher) PublishNote(ctx context.Context, event models.NoteGenerated) error {
	if event.EventType == "" {
		event.EventType = models.EventNoteGenerated
	}
	return p.publish(ctx, p.writerNotes, p.topicNotes, event.EventType, event.RequestID, event)
}

// PublishExpansion publishes an ExpansionGenerated event keyed by request id.
func (p *Publisher) PublishExpansion(ctx context.Context, event models.ExpansionGenerated) error {
	if event.EventType == "" {
		event.EventType = models.EventExpansionGenerated
	}
	return p.publish(ctx, p.writerExpansions, p.topicExpansions, event.EventType, event.RequestID, event)
}

func (p *Publisher) publish(ctx context.Context, writer *kafka.Writer, topic, eventType, key string, event any) error {
	start := time.Now()

	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("Failed to marshal event")
		return err
	}

	log.Debug().
		Str("principal", p.principal).
		Str("topic", topic).
		Str("key", key).
		RawJSON("payload", payload).
		Msg("Publishing event")

	if !p.enabled || writer == nil {
		p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventType)},
			{Key: "principal", Value: []byte(p.principal)},
		},
	}

	if err := writer.WriteMessages(ctx, msg); err != nil {
		log.Error().
			Err(err).
			Str("topic", topic).
			Str("key", key).
			Msg("Failed to write to Kafka")
		p.metrics.RecordKafkaPublish(topic, eventType, err, time.Since(start).Seconds())
		return err
	}

	p.metrics.RecordKafkaPublish(topic, eventType, nil, time.Since(start).Seconds())
	return nil
}

// Close closes both Kafka writers.
func (p *Publisher) Close() error {
	var err error
	if p.writerNotes != nil {
		if e := p.writerNotes.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing notes writer")
			err = e
		}
	}
	if p.writerExpansions != nil {
		if e := p.writerExpansions.Close(); e != nil {
			log.Error().Err(e).Msg("Error closing expansions writer")
			err = e
		}
	}
	return err
}
