package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Publisher delivers domain events.
type Publisher interface {
	// Publish sends one event. Delivery failures are returned, not retried.
	Publish(ctx context.Context, event *domain.Event) error
	// Close flushes pending messages and releases resources.
	Close() error
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger zerolog.Logger
}

// NewKafkaPublisher creates a publisher backed by a kafka-go writer.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *KafkaPublisher {
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 10 * time.Millisecond
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: batchTimeout,
		RequiredAcks: kafka.RequireAll,
	}

	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(writer messageWriter, topic string, logger zerolog.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		topic:  topic,
		logger: logger.With().Str("component", "events").Str("topic", topic).Logger(),
	}
}

// Publish implements Publisher.
func (p *KafkaPublisher) Publish(ctx context.Context, event *domain.Event) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", event.Type, err)
	}

	msg := kafka.Message{
		Key:   []byte(event.EntityID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", event.Type).
			Str("entity_id", event.EntityID).
			Msg("failed to publish event")
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}

	p.logger.Debug().
		Str("event_type", event.Type).
		Str("entity_id", event.EntityID).
		Msg("published event")

	return nil
}

// Close implements Publisher.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, *domain.Event) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// NewPublisher returns a Kafka publisher when Kafka is enabled and a NoopPublisher otherwise.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger) Publisher {
	if !cfg.Enabled {
		logger.Info().Msg("kafka disabled, events will not be published")
		return NoopPublisher{}
	}
	return NewKafkaPublisher(cfg, logger)
}
