package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Message wraps a Kafka message with the fields services need.
type Message struct {
	Topic     string
	Partition int
	Key       []byte
	Value     []byte
	Offset    int64
	Headers   []kafka.Header
}

// HandlerFunc processes a single Kafka message.
// Return nil to commit the offset. An error means the message could not be
// handled yet; the consumer hands the same message back after a backoff.
type HandlerFunc func(ctx context.Context, msg Message) error

// Consumer reads messages from a Kafka topic.
type Consumer interface {
	Subscribe(ctx context.Context, handler HandlerFunc) error
	Close() error
}

type consumer struct {
	reader  *kafka.Reader
	backoff time.Duration
	logger  *slog.Logger
}

// ConsumerOption configures a consumer.
type ConsumerOption func(*consumer)

// WithRedeliveryBackoff sets the pause before a failed message is handled
// again.
func WithRedeliveryBackoff(d time.Duration) ConsumerOption {
	return func(c *consumer) { c.backoff = d }
}

// NewConsumer creates a Kafka consumer for the given topic and consumer group.
func NewConsumer(brokers []string, topic, groupID string, logger *slog.Logger, opts ...ConsumerOption) Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10 MB
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0, // manual commit only
		StartOffset:    kafka.FirstOffset,
	})
	c := &consumer{reader: r, backoff: 2 * time.Second, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe reads messages in a loop until ctx is cancelled.
// Offsets are committed only after the handler returns nil (at-least-once
// delivery). A failing message blocks its partition until it succeeds.
func (c *consumer) Subscribe(ctx context.Context, handler HandlerFunc) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // normal shutdown
			}
			return fmt.Errorf("kafka fetch: %w", err)
		}

		msg := Message{
			Topic:     m.Topic,
			Partition: m.Partition,
			Key:       m.Key,
			Value:     m.Value,
			Offset:    m.Offset,
			Headers:   m.Headers,
		}
		if !c.handle(ctx, handler, msg) {
			return nil
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Error("failed to commit kafka offset",
				slog.String("topic", m.Topic),
				slog.Int64("offset", m.Offset),
				slog.String("error", err.Error()),
			)
		}
	}
}

// handle runs handler until it succeeds. It returns false when ctx ended
// first.
func (c *consumer) handle(ctx context.Context, handler HandlerFunc, msg Message) bool {
	msgCtx := extractTrace(ctx, msg.Headers)
	for {
		err := handler(msgCtx, msg)
		if err == nil {
			return true
		}
		c.logger.Error("message handler failed, redelivering",
			slog.String("topic", msg.Topic),
			slog.Int64("offset", msg.Offset),
			slog.Duration("backoff", c.backoff),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff):
		}
	}
}

func (c *consumer) Close() error {
	return c.reader.Close()
}
