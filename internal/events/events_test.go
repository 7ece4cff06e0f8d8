package events

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error { return nil }

func TestNewPublisherWithoutBrokersIsNoop(t *testing.T) {
	p := NewClient(nil).NewPublisher("audit")
	assert.IsType(t, Noop{}, p)
	assert.NoError(t, p.Publish(context.Background(), "k", map[string]string{"a": "b"}))
}

func TestKafkaPublisherWritesJSON(t *testing.T) {
	w := &recordingWriter{}
	p := &KafkaPublisher{writer: w}

	require.NoError(t, p.Publish(context.Background(), "order-1", map[string]any{"action": "create"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "order-1", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"action":"create"}`, string(w.msgs[0].Value))
	assert.False(t, w.msgs[0].Time.IsZero())
}

func TestKafkaPublisherWrapsWriteErrors(t *testing.T) {
	boom := errors.New("broker down")
	p := &KafkaPublisher{writer: &recordingWriter{err: boom}}
	assert.ErrorIs(t, p.Publish(context.Background(), "k", 1), boom)
}
