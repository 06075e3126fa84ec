package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer publishes messages to a Kafka topic.
type Producer interface {
	Publish(ctx context.Context, topic, key string, value []byte, headers ...kafka.Header) error
	Close() error
}

type producer struct {
	writer *kafka.Writer
}

// ProducerOption configures the underlying writer.
type ProducerOption func(*kafka.Writer)

// WithProducerLogger reports writer errors through logger.
func WithProducerLogger(logger *slog.Logger) ProducerOption {
	return func(w *kafka.Writer) {
		w.ErrorLogger = kafka.LoggerFunc(func(msg string, args ...any) {
			logger.Error("kafka writer: " + fmt.Sprintf(msg, args...))
		})
	}
}

// NewProducer creates a producer for brokers. Messages are routed by key,
// so every message about one draft lands on the same partition.
func NewProducer(brokers []string, opts ...ProducerOption) Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		// Publish is synchronous and called inside a request; don't hold a
		// lone message for the default one-second batch.
		BatchTimeout:           10 * time.Millisecond,
		WriteTimeout:           10 * time.Second,
		ReadTimeout:            10 * time.Second,
		AllowAutoTopicCreation: true,
	}
	for _, opt := range opts {
		opt(w)
	}
	return &producer{writer: w}
}

// Publish writes one message and waits for the acknowledgement. The active
// trace context travels in the headers.
func (p *producer) Publish(ctx context.Context, topic, key string, value []byte, headers ...kafka.Header) error {
	msg := kafka.Message{
		Topic:   topic,
		Key:     []byte(key),
		Value:   value,
		Headers: append(injectTrace(ctx), headers...),
		Time:    time.Now(),
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	return nil
}

func (p *producer) Close() error {
	return p.writer.Close()
}
