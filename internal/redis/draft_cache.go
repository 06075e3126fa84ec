package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// DefaultDraftTTL bounds how long a snapshot survives without being rewritten.
const DefaultDraftTTL = 24 * time.Hour

func draftKey(id string) string { return keyPrefix + "draft:" + id }

// DraftCache keeps the latest snapshot of each draft so polling clients do
// not hit the database. The database stays authoritative.
type DraftCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewDraftCache returns a cache whose entries expire after ttl. A zero ttl
// uses DefaultDraftTTL.
func NewDraftCache(client *redis.Client, ttl time.Duration) *DraftCache {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftCache{client: client, ttl: ttl}
}

func (c *DraftCache) SetDraft(ctx context.Context, d *domain.TaskDraft) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft %s: %w", d.ID, err)
	}
	if err := c.client.Set(ctx, draftKey(d.ID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set draft %s: %w", d.ID, err)
	}
	return nil
}

// GetDraft returns nil, nil on a miss.
func (c *DraftCache) GetDraft(ctx context.Context, id string) (*domain.TaskDraft, error) {
	data, err := c.client.Get(ctx, draftKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get draft %s: %w", id, err)
	}
	var d domain.TaskDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft %s: %w", id, err)
	}
	return &d, nil
}

// Delete drops a snapshot. Missing keys are not an error.
func (c *DraftCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, draftKey(id)).Err(); err != nil {
		return fmt.Errorf("redis del draft %s: %w", id, err)
	}
	return nil
}
