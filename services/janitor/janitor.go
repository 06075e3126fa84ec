// Package janitor periodically fails drafts that were never confirmed or got
// stuck mid-flight. Replicas elect a single leader through a Redis lease so
// each sweep runs once.
package janitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/NooberThanYall/fixo-crm/pkg/telemetry"
)

// DefaultSchedule runs a sweep every minute.
const DefaultSchedule = "@every 1m"

// Tick results, also used as the runs_total label.
const (
	ResultExpired  = "expired"
	ResultIdle     = "idle"
	ResultFollower = "follower"
	ResultError    = "error"
)

// Sweeper expires stale drafts.
type Sweeper interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
}

// Leader is a renewable exclusive lease.
type Leader interface {
	AcquireOrRenew(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Janitor runs the sweeper on a cron schedule while it holds the lease.
type Janitor struct {
	sweeper  Sweeper
	leader   Leader
	schedule string
	now      func() time.Time
	logger   *slog.Logger

	leading bool
}

// Option configures a Janitor.
type Option func(*Janitor)

// WithLeader makes sweeps conditional on holding l. Without a leader the
// janitor assumes it is the only instance.
func WithLeader(l Leader) Option            { return func(j *Janitor) { j.leader = l } }
func WithSchedule(spec string) Option       { return func(j *Janitor) { j.schedule = spec } }
func WithClock(now func() time.Time) Option { return func(j *Janitor) { j.now = now } }
func WithLogger(l *slog.Logger) Option      { return func(j *Janitor) { j.logger = l } }

// New returns a Janitor sweeping through s.
func New(s Sweeper, opts ...Option) *Janitor {
	j := &Janitor{
		sweeper:  s,
		schedule: DefaultSchedule,
		now:      func() time.Time { return time.Now().UTC() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run sweeps once immediately and then on every scheduled tick. Blocks
// until ctx is cancelled, then waits for a running sweep and gives up the
// lease.
func (j *Janitor) Run(ctx context.Context) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(j.schedule, func() { j.Tick(ctx) }); err != nil {
		return fmt.Errorf("parse schedule %q: %w", j.schedule, err)
	}

	j.Tick(ctx)
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	if j.leader != nil && j.leading {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := j.leader.Release(releaseCtx); err != nil {
			j.logger.Warn("lease release failed", slog.String("error", err.Error()))
		}
	}
	telemetry.JanitorIsLeader.Set(0)
	return nil
}

// Tick runs one sweep if this instance leads and reports what happened.
func (j *Janitor) Tick(ctx context.Context) string {
	result := j.tick(ctx)
	telemetry.JanitorRuns.WithLabelValues(result).Inc()
	return result
}

func (j *Janitor) tick(ctx context.Context) string {
	if !j.lead(ctx) {
		return ResultFollower
	}

	n, err := j.sweeper.ExpireStale(ctx, j.now())
	if err != nil {
		j.logger.Error("expire stale drafts", slog.String("error", err.Error()), slog.Int("expired", n))
		return ResultError
	}
	if n == 0 {
		return ResultIdle
	}
	j.logger.Info("expired stale drafts", slog.Int("expired", n))
	return ResultExpired
}

// lead acquires or renews the lease and logs leadership changes.
func (j *Janitor) lead(ctx context.Context) bool {
	if j.leader == nil {
		j.setLeading(true)
		return true
	}
	ok, err := j.leader.AcquireOrRenew(ctx)
	if err != nil {
		j.logger.Error("janitor lease", slog.String("error", err.Error()))
		ok = false
	}
	j.setLeading(ok)
	return ok
}

func (j *Janitor) setLeading(ok bool) {
	if ok != j.leading {
		if ok {
			j.logger.Info("acquired janitor leadership")
		} else {
			j.logger.Info("lost janitor leadership")
		}
	}
	j.leading = ok
	if ok {
		telemetry.JanitorIsLeader.Set(1)
	} else {
		telemetry.JanitorIsLeader.Set(0)
	}
}
