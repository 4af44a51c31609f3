package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/ncbi-query-service/internal/config"
	"github.com/helixir/ncbi-query-service/internal/domain"
)

// Handler is called for every decoded event. Returning an error stops the listener.
type Handler func(ctx context.Context, event *domain.Event) error

// messageReader is the subset of *kafka.Reader used by Listener.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Listener consumes events from the service topic.
type Listener struct {
	reader messageReader
	logger zerolog.Logger
}

// NewListener creates a listener on cfg.Topic. An empty groupID reads the
// topic without committing offsets, starting at the latest message.
func NewListener(cfg config.KafkaConfig, groupID string, logger zerolog.Logger) *Listener {
	readerCfg := kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	}
	if groupID == "" {
		readerCfg.StartOffset = kafka.LastOffset
	}

	return newListener(kafka.NewReader(readerCfg), logger)
}

func newListener(reader messageReader, logger zerolog.Logger) *Listener {
	return &Listener{
		reader: reader,
		logger: logger.With().Str("component", "events_listener").Logger(),
	}
}

// Run reads messages until ctx is cancelled or handler fails.
// Messages that do not decode as events are logged and skipped.
func (l *Listener) Run(ctx context.Context, handler Handler) error {
	l.logger.Info().Msg("starting events listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("events listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		var event domain.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.logger.Warn().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("skipping undecodable event")
			continue
		}

		if err := handler(ctx, &event); err != nil {
			return err
		}
	}
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	return l.reader.Close()
}
