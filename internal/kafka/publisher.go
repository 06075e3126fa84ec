package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	segkafka "github.com/segmentio/kafka-go"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// DraftPublisher queues confirmed drafts for the worker service.
type DraftPublisher struct {
	producer Producer
	topic    string
}

// NewDraftPublisher publishes to TopicConfirmed through producer.
func NewDraftPublisher(producer Producer) *DraftPublisher {
	return &DraftPublisher{producer: producer, topic: TopicConfirmed}
}

// PublishConfirmed sends the draft's identifiers keyed by draft id.
func (p *DraftPublisher) PublishConfirmed(ctx context.Context, d *domain.TaskDraft) error {
	payload, err := json.Marshal(ConfirmedMessage{DraftID: d.ID, UserID: d.UserID, QueuedAt: d.UpdatedAt})
	if err != nil {
		return fmt.Errorf("marshal confirmed message: %w", err)
	}
	return p.producer.Publish(ctx, p.topic, d.ID, payload)
}

// DeadLetter copies msg to TopicDLQ with the reason it was given up on.
func DeadLetter(ctx context.Context, producer Producer, msg Message, reason error) error {
	return producer.Publish(ctx, TopicDLQ, string(msg.Key), msg.Value,
		segkafka.Header{Key: HeaderDLQReason, Value: []byte(reason.Error())},
		segkafka.Header{Key: HeaderDLQSource, Value: []byte(fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset))},
		segkafka.Header{Key: "x-dlq-at", Value: []byte(time.Now().UTC().Format(time.RFC3339))},
	)
}
