// Package worker executes drafts the gateway queued for asynchronous
// confirmation.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/kafka"
	"github.com/NooberThanYall/fixo-crm/pkg/retry"
	"github.com/NooberThanYall/fixo-crm/pkg/telemetry"
)

// Runner executes one queued draft.
type Runner interface {
	ExecuteQueued(ctx context.Context, draftID string) (*domain.TaskDraft, error)
}

// Outcomes recorded per message.
const (
	OutcomeDone      = "done"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
	OutcomeMalformed = "malformed"
	OutcomeRetry     = "retry"
)

// Worker consumes confirmed drafts from Kafka and executes them.
type Worker struct {
	consumer   kafka.Consumer
	producer   kafka.Producer
	runner     Runner
	workerID   string
	maxRetries int
	timeout    time.Duration
	baseDelay  time.Duration
	logger     *slog.Logger

	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// Option configures a Worker.
type Option func(*Worker)

func WithRetries(n int) Option             { return func(w *Worker) { w.maxRetries = n } }
func WithTimeout(d time.Duration) Option   { return func(w *Worker) { w.timeout = d } }
func WithLogger(l *slog.Logger) Option     { return func(w *Worker) { w.logger = l } }
func WithBaseDelay(d time.Duration) Option { return func(w *Worker) { w.baseDelay = d } }

// NewWorker constructs a Worker with the given dependencies and options.
func NewWorker(workerID string, consumer kafka.Consumer, producer kafka.Producer, runner Runner, opts ...Option) *Worker {
	w := &Worker{
		workerID:   workerID,
		consumer:   consumer,
		producer:   producer,
		runner:     runner,
		maxRetries: 3,
		timeout:    time.Minute,
		baseDelay:  time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts consuming and processing messages. Blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Subscribe(ctx, w.processMessage)
}

// Wait blocks until all in-flight drafts finish. Call after Run returns.
func (w *Worker) Wait() { w.wg.Wait() }

// InFlight reports how many drafts are executing right now.
func (w *Worker) InFlight() int64 { return w.inFlight.Load() }

// processMessage is the Kafka HandlerFunc. It returns an error only when
// the draft store could not be reached, so the consumer redelivers the
// message; every other outcome commits the offset.
func (w *Worker) processMessage(consumerCtx context.Context, msg kafka.Message) error {
	confirmed, err := kafka.DecodeConfirmed(msg.Value)
	if err != nil {
		w.logger.Error("malformed confirmed message, dead-lettering",
			slog.String("error", err.Error()),
			slog.String("raw", string(msg.Value)),
		)
		w.deadLetter(consumerCtx, msg, err)
		telemetry.WorkerMessagesProcessed.WithLabelValues(OutcomeMalformed).Inc()
		return nil
	}

	ctx, span := otel.Tracer("worker").Start(consumerCtx, "worker.execute_draft")
	defer span.End()
	span.SetAttributes(
		attribute.String("draft.id", confirmed.DraftID),
		attribute.String("worker.id", w.workerID),
	)

	log := w.logger.With(
		slog.String("draft_id", confirmed.DraftID),
		slog.String("user_id", confirmed.UserID),
		slog.String("worker_id", w.workerID),
	)

	w.wg.Add(1)
	w.inFlight.Add(1)
	telemetry.WorkerInFlight.Inc()
	defer func() {
		telemetry.WorkerInFlight.Dec()
		w.inFlight.Add(-1)
		w.wg.Done()
	}()

	start := time.Now()
	var d *domain.TaskDraft
	runErr := retry.Do(ctx, retry.Config{
		MaxAttempts: w.maxRetries + 1,
		BaseDelay:   w.baseDelay,
		MaxDelay:    10 * w.baseDelay,
		Retryable:   func(err error) bool { return d == nil && !isSettled(err) },
		OnRetry: func(attempt int, retryErr error) {
			log.Warn("draft store unavailable, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", retryErr.Error()),
			)
		},
	}, func(int) error {
		// The execution timeout is independent of consumer shutdown so a
		// draft that started executing gets to finish.
		execCtx, cancel := context.WithTimeout(trace.ContextWithSpan(context.Background(), span), w.timeout)
		defer cancel()
		var err error
		d, err = w.runner.ExecuteQueued(execCtx, confirmed.DraftID)
		return err
	})
	durationMs := time.Since(start).Milliseconds()

	switch {
	case runErr == nil:
		log.Info("draft executed",
			slog.Int64("duration_ms", durationMs),
			slog.Int("affected", affected(d)),
		)
		telemetry.WorkerMessagesProcessed.WithLabelValues(OutcomeDone).Inc()
		return nil

	case isSettled(runErr):
		// Redelivery of a draft another attempt already took, or a draft
		// that no longer exists.
		log.Info("draft not queued, skipping", slog.String("error", runErr.Error()))
		telemetry.WorkerMessagesProcessed.WithLabelValues(OutcomeSkipped).Inc()
		return nil

	case d != nil && d.Status == domain.StatusFailed:
		log.Error("draft execution failed",
			slog.String("error", runErr.Error()),
			slog.String("failure_kind", d.FailureKind),
			slog.Int64("duration_ms", durationMs),
		)
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "draft execution failed")
		w.deadLetter(ctx, msg, runErr)
		telemetry.WorkerMessagesProcessed.WithLabelValues(OutcomeFailed).Inc()
		return nil

	default:
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "draft store unavailable")
		telemetry.WorkerMessagesProcessed.WithLabelValues(OutcomeRetry).Inc()
		return fmt.Errorf("execute draft %s: %w", confirmed.DraftID, runErr)
	}
}

func (w *Worker) deadLetter(ctx context.Context, msg kafka.Message, reason error) {
	if err := kafka.DeadLetter(ctx, w.producer, msg, reason); err != nil {
		w.logger.Error("failed to publish to DLQ",
			slog.Int64("offset", msg.Offset),
			slog.String("error", err.Error()),
		)
		return
	}
	telemetry.WorkerDLQTotal.Inc()
}

// isSettled reports whether err means the draft is no longer this
// worker's to execute.
func isSettled(err error) bool {
	var (
		transition *domain.InvalidTransitionError
		notFound   *domain.DraftNotFoundError
	)
	return errors.As(err, &transition) || errors.As(err, &notFound)
}

func affected(d *domain.TaskDraft) int {
	if d == nil || d.Result == nil {
		return 0
	}
	return d.Result.Affected
}
