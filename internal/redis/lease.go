package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// renewScript extends the lease only if owner still holds it.
var renewScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("pexpire", KEYS[1], ARGV[2])
	end
	return 0
`)

// releaseScript deletes the lease only if owner still holds it.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	end
	return 0
`)

// Lease is a single-holder lock with expiry, used for leader election
// between replicas.
type Lease struct {
	client *redis.Client
	key    string
	owner  string
	ttl    time.Duration
}

// NewLease returns a lease on name held under owner's identity.
func NewLease(client *redis.Client, name, owner string, ttl time.Duration) *Lease {
	return &Lease{client: client, key: keyPrefix + "lease:" + name, owner: owner, ttl: ttl}
}

// Owner returns the identity this lease is taken under.
func (l *Lease) Owner() string { return l.owner }

// AcquireOrRenew takes the lease when it is free and extends it when this
// owner already holds it. It reports whether the caller holds the lease.
func (l *Lease) AcquireOrRenew(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("lease %s setnx: %w", l.key, err)
	}
	if ok {
		return true, nil
	}

	result, err := renewScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("lease %s renew: %w", l.key, err)
	}
	return result == 1, nil
}

// Release gives the lease up if this owner holds it.
func (l *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("lease %s release: %w", l.key, err)
	}
	return nil
}
