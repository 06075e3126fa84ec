package janitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/memstore"
	"github.com/NooberThanYall/fixo-crm/internal/pipeline"
	redisstore "github.com/NooberThanYall/fixo-crm/internal/redis"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeSweeper struct {
	mu    sync.Mutex
	calls []time.Time
	n     int
	err   error
}

func (s *fakeSweeper) ExpireStale(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, now)
	return s.n, s.err
}

func (s *fakeSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeLeader struct {
	ok       bool
	err      error
	released bool
}

func (l *fakeLeader) AcquireOrRenew(context.Context) (bool, error) { return l.ok, l.err }
func (l *fakeLeader) Release(context.Context) error {
	l.released = true
	return nil
}

func TestTick_Results(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		sweeper *fakeSweeper
		leader  Leader
		want    string
		swept   int
	}{
		{"sole instance expires", &fakeSweeper{n: 3}, nil, ResultExpired, 1},
		{"nothing stale", &fakeSweeper{}, nil, ResultIdle, 1},
		{"sweep error", &fakeSweeper{err: errors.New("db down")}, nil, ResultError, 1},
		{"leader sweeps", &fakeSweeper{n: 1}, &fakeLeader{ok: true}, ResultExpired, 1},
		{"follower skips", &fakeSweeper{n: 1}, &fakeLeader{ok: false}, ResultFollower, 0},
		{"lease error skips", &fakeSweeper{n: 1}, &fakeLeader{err: errors.New("redis down")}, ResultFollower, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := []Option{WithLogger(discardLogger), WithClock(func() time.Time { return now })}
			if tt.leader != nil {
				opts = append(opts, WithLeader(tt.leader))
			}
			j := New(tt.sweeper, opts...)

			assert.Equal(t, tt.want, j.Tick(context.Background()))
			require.Equal(t, tt.swept, tt.sweeper.count())
			if tt.swept > 0 {
				assert.Equal(t, now, tt.sweeper.calls[0])
			}
		})
	}
}

func TestTick_OneLeaderAcrossReplicas(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redisstore.NewClient(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })

	a, b := &fakeSweeper{}, &fakeSweeper{}
	ja := New(a, WithLogger(discardLogger), WithLeader(redisstore.NewLease(client, "janitor", "a", 30*time.Second)))
	jb := New(b, WithLogger(discardLogger), WithLeader(redisstore.NewLease(client, "janitor", "b", 30*time.Second)))
	ctx := context.Background()

	assert.Equal(t, ResultIdle, ja.Tick(ctx))
	assert.Equal(t, ResultFollower, jb.Tick(ctx))
	assert.Equal(t, ResultIdle, ja.Tick(ctx), "holder renews")

	mr.FastForward(31 * time.Second)
	assert.Equal(t, ResultIdle, jb.Tick(ctx), "lease expired, b takes over")
	assert.Equal(t, ResultFollower, ja.Tick(ctx))

	assert.Equal(t, 2, a.count())
	assert.Equal(t, 1, b.count())
}

func TestRun_SweepsImmediatelyAndReleases(t *testing.T) {
	sweeper := &fakeSweeper{}
	leader := &fakeLeader{ok: true}
	j := New(sweeper, WithLogger(discardLogger), WithLeader(leader), WithSchedule("@every 1h"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	require.Eventually(t, func() bool { return sweeper.count() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.True(t, leader.released)
}

func TestRun_BadSchedule(t *testing.T) {
	j := New(&fakeSweeper{}, WithLogger(discardLogger), WithSchedule("every now and then"))
	assert.Error(t, j.Run(context.Background()))
}

func TestTick_ExpiresUnconfirmedPreview(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memstore.New()
	_, err := store.Create(ctx, "u1", domain.Fields{"name": "Widget", "price": 80.0})
	require.NoError(t, err)

	gen := generatorFunc(func(context.Context, string) (string, error) {
		return `{"entity":"product","action":"delete","queries":{"name":"Widget"}}`, nil
	})
	svc := pipeline.New(store, store, memstore.NewDrafts(), gen,
		pipeline.WithLogger(discardLogger),
		pipeline.WithClock(func() time.Time { return created }),
		pipeline.WithPreviewTTL(time.Hour),
	)
	d, err := svc.SubmitPrompt(ctx, "u1", "delete the widget")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPreview, d.Status)

	now := created.Add(30 * time.Minute)
	j := New(svc, WithLogger(discardLogger), WithClock(func() time.Time { return now }))
	assert.Equal(t, ResultIdle, j.Tick(ctx), "preview still fresh")

	now = created.Add(2 * time.Hour)
	assert.Equal(t, ResultExpired, j.Tick(ctx))

	got, err := svc.GetDraft(ctx, "u1", d.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.Equal(t, domain.FailureExpired, got.FailureKind)

	_, err = svc.ConfirmDraft(ctx, "u1", d.ID, domain.ConfirmSync)
	var transition *domain.InvalidTransitionError
	assert.ErrorAs(t, err, &transition, "an expired draft cannot be confirmed")
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) { return f(ctx, prompt) }
