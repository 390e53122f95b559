// Package kafkabus publishes switch transitions to a Kafka topic.
package kafkabus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/sweeney/switch-sensor/internal/events"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "switch-events"

// writer is the subset of *kafka.Writer used by Publisher.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string
	Format  events.Format
	Timeout time.Duration
}

// Publisher writes one message per transition, keyed by switch name so that
// all transitions of a switch land on the same partition in order.
type Publisher struct {
	w       writer
	format  events.Format
	timeout time.Duration
}

// NewPublisher creates a synchronous Kafka writer for cfg.Topic.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}
	return newPublisher(w, cfg), nil
}

func newPublisher(w writer, cfg Config) *Publisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{w: w, format: cfg.Format, timeout: timeout}
}

// Publish writes the transition. It blocks for at most the configured timeout.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	payload, err := events.Encode(event, p.format)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(event.Switch),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-id", Value: []byte(event.ID.String())},
			{Key: "content-type", Value: []byte(contentType(p.format))},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.w.Close()
}

func contentType(f events.Format) string {
	if f == events.FormatCBOR {
		return "application/cbor"
	}
	return "application/json"
}
