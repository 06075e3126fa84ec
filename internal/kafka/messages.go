package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Topics.
const (
	TopicConfirmed = "drafts.confirmed"
	TopicDLQ       = "drafts.dlq"
)

// Header keys added to dead-lettered messages.
const (
	HeaderDLQReason = "x-dlq-reason"
	HeaderDLQSource = "x-dlq-source"
)

// ConfirmedMessage tells the worker a draft is queued for execution. It
// carries identifiers only; the worker reads the draft from the store.
type ConfirmedMessage struct {
	DraftID  string    `json:"draft_id"`
	UserID   string    `json:"user_id"`
	QueuedAt time.Time `json:"queued_at"`
}

// DecodeConfirmed parses and checks a confirmed-draft message.
func DecodeConfirmed(b []byte) (ConfirmedMessage, error) {
	var m ConfirmedMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return ConfirmedMessage{}, fmt.Errorf("decode confirmed message: %w", err)
	}
	if m.DraftID == "" {
		return ConfirmedMessage{}, errors.New("decode confirmed message: missing draft_id")
	}
	return m, nil
}
