// Package kafka publishes completed feedback analyses to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/hrygo/feedbacksense/ai/feedback"
)

// EventTypeAnalyzed is the type of events published for completed analyses.
const EventTypeAnalyzed = "feedback.analyzed"

// AnalyzedEvent is the message value written for each analysis.
type AnalyzedEvent struct {
	EventID    string             `json:"event_id"`
	EventType  string             `json:"event_type"`
	OccurredAt time.Time          `json:"occurred_at"`
	Source     string             `json:"source"`
	Analysis   *feedback.Analysis `json:"analysis"`
}

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes AnalyzedEvents keyed by route, so that every team's
// feedback lands on a stable partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

// NewPublisher creates a publisher for the given brokers and topic.
func NewPublisher(brokers []string, topic string) (*Publisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			WriteTimeout:           10 * time.Second,

			// Publish sends one message per call and waits for it.
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
		},
		topic: topic,
	}, nil
}

// Publish writes one event for the analysis.
func (p *Publisher) Publish(ctx context.Context, source string, analysis *feedback.Analysis) error {
	event := AnalyzedEvent{
		EventID:    uuid.NewString(),
		EventType:  EventTypeAnalyzed,
		OccurredAt: time.Now().UTC(),
		Source:     source,
		Analysis:   analysis,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal analyzed event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(analysis.Route),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTypeAnalyzed)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

// Topic returns the topic events are written to.
func (p *Publisher) Topic() string {
	return p.topic
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}
