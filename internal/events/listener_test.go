package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/ncbi-query-service/internal/domain"
)

// fakeReader returns queued messages and then blocks until the context ends.
type fakeReader struct {
	messages []kafka.Message
	closed   bool
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		return msg, nil
	}
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func encodeEvent(t *testing.T, event *domain.Event) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(event.EntityID), Value: value}
}

func TestListener_Run(t *testing.T) {
	first := newTestEvent(t)
	second, err := domain.NewEvent(domain.EventTypeQueryExecuted, "query-1", domain.QueryExecutedPayload{ResultCount: 3})
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		encodeEvent(t, first),
		{Value: []byte("not json")},
		encodeEvent(t, second),
	}}
	listener := newListener(reader, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received []*domain.Event
	err = listener.Run(ctx, func(_ context.Context, event *domain.Event) error {
		received = append(received, event)
		if len(received) == 2 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, received, 2)
	assert.Equal(t, domain.EventTypePaperRetrieved, received[0].Type)
	assert.Equal(t, "query-1", received[1].EntityID)
	assert.Equal(t, domain.EventTypeQueryExecuted, received[1].Type)
}

func TestListener_HandlerError(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{encodeEvent(t, newTestEvent(t))}}
	listener := newListener(reader, zerolog.Nop())
	handlerErr := errors.New("stop")

	err := listener.Run(context.Background(), func(context.Context, *domain.Event) error {
		return handlerErr
	})
	assert.ErrorIs(t, err, handlerErr)
}

func TestListener_Close(t *testing.T) {
	reader := &fakeReader{}
	listener := newListener(reader, zerolog.Nop())

	require.NoError(t, listener.Close())
	assert.True(t, reader.closed)
}
