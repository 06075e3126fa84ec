package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// allowScript trims the window, then records the event only if the key is
// under its limit. Scores are microseconds so they stay exact as Lua numbers.
//
//	KEYS[1] window key
//	ARGV    now, window, limit, member, ttl(ms)
var allowScript = redis.NewScript(`
	local now = tonumber(ARGV[1])
	redis.call("zremrangebyscore", KEYS[1], "-inf", now - tonumber(ARGV[2]))
	if redis.call("zcard", KEYS[1]) >= tonumber(ARGV[3]) then
		return 0
	end
	redis.call("zadd", KEYS[1], now, ARGV[4])
	redis.call("pexpire", KEYS[1], ARGV[5])
	return 1
`)

// RateLimiter is a per-key sliding-window limiter. Only accepted events
// count against the window, so a rejected caller is not locked out longer.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimiter allows at most limit events per window for each key.
func NewRateLimiter(client *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{client: client, limit: limit, window: window}
}

// Limit returns the number of events allowed per window.
func (r *RateLimiter) Limit() int { return r.limit }

// Allow records one event for key and reports whether it is within the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string) (bool, error) {
	now := time.Now().UnixMicro()
	ok, err := allowScript.Run(ctx, r.client, []string{keyPrefix + "ratelimit:" + key},
		now,
		r.window.Microseconds(),
		r.limit,
		uuid.NewString(),
		(2 * r.window).Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit %q: %w", key, err)
	}
	return ok == 1, nil
}
