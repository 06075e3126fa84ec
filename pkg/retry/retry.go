// Package retry runs an operation again after transient failures with a
// quadratic backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Config controls retry behaviour.
type Config struct {
	// MaxAttempts is the total number of calls including the first attempt.
	// Zero or less means one attempt.
	MaxAttempts int
	// BaseDelay is the backoff unit. The wait after attempt n is BaseDelay·n².
	BaseDelay time.Duration
	// MaxDelay caps a single wait. Zero means no cap.
	MaxDelay time.Duration
	// Retryable reports whether err is worth another attempt. A nil
	// Retryable retries every error.
	Retryable func(err error) bool
	// OnRetry is called after a failed attempt that will be retried, before
	// the wait. attempt is 1-indexed.
	OnRetry func(attempt int, err error)
}

// Delay returns the wait after the given failed attempt.
//
// With BaseDelay=500ms and no cap:
//
//	attempt 1 → 500ms
//	attempt 2 → 2s
//	attempt 3 → 4.5s
func (c Config) Delay(attempt int) time.Duration {
	d := c.BaseDelay * time.Duration(attempt*attempt)
	if c.MaxDelay > 0 && d > c.MaxDelay {
		return c.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, returns a non-retryable error, or
// MaxAttempts calls were made. An attempt that fails once ctx is done is
// final. fn receives the 1-indexed attempt number. The last error is
// returned as is; a cancelled wait is wrapped with the attempt it followed.
func Do(ctx context.Context, cfg Config, fn func(attempt int) error) error {
	attempts := max(cfg.MaxAttempts, 1)

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(attempt); err == nil {
			return nil
		}
		if attempt == attempts || ctx.Err() != nil || (cfg.Retryable != nil && !cfg.Retryable(err)) {
			return err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}

		timer := time.NewTimer(cfg.Delay(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, ctx.Err())
		}
	}
}
