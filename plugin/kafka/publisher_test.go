package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/feedbacksense/ai/feedback"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewPublisher_Validation(t *testing.T) {
	_, err := NewPublisher(nil, "topic")
	require.Error(t, err)

	_, err = NewPublisher([]string{"localhost:9092"}, "")
	require.Error(t, err)

	p, err := NewPublisher([]string{"localhost:9092"}, "feedback.analyzed")
	require.NoError(t, err)
	assert.Equal(t, "feedback.analyzed", p.Topic())
	require.NoError(t, p.Close())
}

func TestNewPublisher_FlushesEachMessage(t *testing.T) {
	p, err := NewPublisher([]string{"localhost:9092"}, "feedback.analyzed")
	require.NoError(t, err)
	defer p.Close()

	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, 1, w.BatchSize)
	assert.LessOrEqual(t, w.BatchTimeout, 10*time.Millisecond)
}

func TestPublish(t *testing.T) {
	w := &fakeWriter{}
	p := &Publisher{writer: w, topic: "feedback.analyzed"}

	analysis := feedback.Classify("I love the new website")
	require.NoError(t, p.Publish(context.Background(), "classifier", analysis))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, feedback.RouteRecognition, string(msg.Key))

	var event AnalyzedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &event))
	assert.Equal(t, EventTypeAnalyzed, event.EventType)
	assert.Equal(t, "classifier", event.Source)
	assert.Equal(t, analysis, event.Analysis)
	_, err := uuid.Parse(event.EventID)
	require.NoError(t, err)
	assert.False(t, event.OccurredAt.IsZero())

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, event.EventID, string(msg.Headers[1].Value))

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublish_WriteError(t *testing.T) {
	p := &Publisher{writer: &fakeWriter{err: errors.New("broker down")}, topic: "t"}

	err := p.Publish(context.Background(), "pipeline", feedback.Fallback("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to t")
	assert.Contains(t, err.Error(), "broker down")
}
