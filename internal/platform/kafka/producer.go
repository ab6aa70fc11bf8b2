// Package kafka publishes important emails to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/phrazzld/mailtriage/internal/events"
)

// Header names set on every message.
const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
	HeaderRunID     = "run-id"
)

// MessageWriter is the subset of *kafka.Writer the producer uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes triage events keyed by item key, so a redelivered event
// lands on the same partition and consumers can drop duplicates.
type Producer struct {
	writer MessageWriter
	logger *slog.Logger
}

var _ events.EventHandler = (*Producer)(nil)

// NewWriter returns a synchronous writer that waits for all in-sync replicas.
func NewWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		BatchTimeout: 10 * time.Millisecond,
	}
}

// NewProducer returns a producer writing through w.
func NewProducer(w MessageWriter, logger *slog.Logger) *Producer {
	return &Producer{
		writer: w,
		logger: logger.With("component", "kafka_sink"),
	}
}

// Name implements events.EventHandler.
func (p *Producer) Name() string { return "kafka" }

// HandleEvent publishes important events.
func (p *Producer) HandleEvent(ctx context.Context, event *events.TriageEvent) error {
	if !event.Important() {
		return nil
	}

	msg, err := Message(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Key, err)
	}

	p.logger.DebugContext(ctx, "published event",
		"item_key", event.Key,
		"event_id", event.ID)
	return nil
}

// Close flushes and closes the writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// Message encodes event as a Kafka message.
func Message(event *events.TriageEvent) (kafka.Message, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event %s: %w", event.Key, err)
	}
	return kafka.Message{
		Key:   []byte(event.Key),
		Value: value,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderEventID, Value: []byte(event.ID.String())},
			{Key: HeaderRunID, Value: []byte(event.RunID.String())},
		},
		Time: event.CreatedAt,
	}, nil
}
