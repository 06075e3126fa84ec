// Package pipeline runs the prompt → task → preview → execute lifecycle and
// persists every step on a TaskDraft.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/executor"
	"github.com/NooberThanYall/fixo-crm/internal/model"
	"github.com/NooberThanYall/fixo-crm/internal/parser"
	"github.com/NooberThanYall/fixo-crm/internal/preview"
	"github.com/NooberThanYall/fixo-crm/internal/prompt"
	"github.com/NooberThanYall/fixo-crm/pkg/retry"
	"github.com/NooberThanYall/fixo-crm/pkg/telemetry"
)

// DraftCache holds recent draft snapshots for polling.
type DraftCache interface {
	SetDraft(ctx context.Context, d *domain.TaskDraft) error
	// GetDraft returns nil, nil on a miss.
	GetDraft(ctx context.Context, id string) (*domain.TaskDraft, error)
}

// RateLimiter bounds prompt submissions per user.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Limit() int
}

// Publisher hands confirmed drafts to the worker service.
type Publisher interface {
	PublishConfirmed(ctx context.Context, d *domain.TaskDraft) error
}

// Service is stateless between calls: its fields are dependencies and
// settings only.
type Service struct {
	catalog   domain.FieldCatalog
	drafts    domain.DraftRepository
	generator model.Generator
	builder   *prompt.Builder
	previewer *preview.Engine
	executor  *executor.Executor

	cache     DraftCache
	limiter   RateLimiter
	publisher Publisher

	maxAttempts  int
	baseDelay    time.Duration
	maxPromptLen int
	previewTTL   time.Duration
	stuckTTL     time.Duration
	expireBatch  int
	now          func() time.Time
	newID        func() string
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

func WithMaxAttempts(n int) Option          { return func(s *Service) { s.maxAttempts = n } }
func WithBaseDelay(d time.Duration) Option  { return func(s *Service) { s.baseDelay = d } }
func WithMaxPromptLength(n int) Option      { return func(s *Service) { s.maxPromptLen = n } }
func WithPreviewTTL(d time.Duration) Option { return func(s *Service) { s.previewTTL = d } }
func WithStuckTTL(d time.Duration) Option   { return func(s *Service) { s.stuckTTL = d } }
func WithExpireBatch(n int) Option          { return func(s *Service) { s.expireBatch = n } }
func WithCache(c DraftCache) Option         { return func(s *Service) { s.cache = c } }
func WithRateLimiter(l RateLimiter) Option  { return func(s *Service) { s.limiter = l } }
func WithPublisher(p Publisher) Option      { return func(s *Service) { s.publisher = p } }
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithIDs(newID func() string) Option    { return func(s *Service) { s.newID = newID } }
func WithLogger(l *slog.Logger) Option      { return func(s *Service) { s.logger = l } }

// New wires the pipeline. The store is also the preview engine's finder and
// the executor's target.
func New(
	catalog domain.FieldCatalog,
	store domain.RecordStore,
	drafts domain.DraftRepository,
	generator model.Generator,
	opts ...Option,
) *Service {
	s := &Service{
		catalog:      catalog,
		drafts:       drafts,
		generator:    generator,
		builder:      prompt.NewBuilder(),
		previewer:    preview.NewEngine(store),
		executor:     executor.New(store),
		maxAttempts:  3,
		baseDelay:    500 * time.Millisecond,
		maxPromptLen: 2000,
		previewTTL:   24 * time.Hour,
		stuckTTL:     15 * time.Minute,
		expireBatch:  100,
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
		logger:       slog.Default(),
		tracer:       otel.Tracer("pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitPrompt creates a draft for text and drives it to preview. Model,
// parse and lookup failures are recorded on the returned draft, which is
// then failed; only invalid input and persistence failures are errors. A
// draft expired by the janitor while in flight is returned as stored.
func (s *Service) SubmitPrompt(ctx context.Context, userID, text string) (*domain.TaskDraft, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &domain.InvalidPromptError{Reason: "prompt is empty"}
	}
	if n := utf8.RuneCountInString(text); s.maxPromptLen > 0 && n > s.maxPromptLen {
		return nil, &domain.InvalidPromptError{Reason: fmt.Sprintf("prompt has %d characters, limit is %d", n, s.maxPromptLen)}
	}
	if s.limiter != nil {
		ok, err := s.limiter.Allow(ctx, userID)
		if err != nil {
			s.logger.Warn("rate limiter unavailable, allowing", slog.String("user_id", userID), slog.String("error", err.Error()))
		} else if !ok {
			telemetry.RateLimitedTotal.Inc()
			return nil, &domain.RateLimitExceededError{UserID: userID, Limit: s.limiter.Limit()}
		}
	}

	d := domain.NewDraft(s.newID(), userID, text, s.now())
	ctx, span := s.tracer.Start(ctx, "pipeline.submit", trace.WithAttributes(
		attribute.String("draft.id", d.ID),
		attribute.String("user.id", userID),
	))
	defer span.End()

	if err := s.drafts.Create(ctx, d); err != nil {
		return nil, fmt.Errorf("create draft: %w", err)
	}
	telemetry.DraftsSubmitted.Inc()

	out, err := s.drive(ctx, d, span)
	if isConflict(err) {
		return s.superseded(ctx, d.ID, err)
	}
	return out, err
}

// drive takes a created draft through translation and preview.
func (s *Service) drive(ctx context.Context, d *domain.TaskDraft, span trace.Span) (*domain.TaskDraft, error) {
	log := s.logger.With(slog.String("draft_id", d.ID), slog.String("user_id", d.UserID))

	if err := s.advance(ctx, d, domain.StatusParsing); err != nil {
		return nil, err
	}

	fields, err := s.catalog.Fields(ctx, d.UserID)
	if err != nil {
		return s.fail(ctx, d, fmt.Errorf("load field catalog: %w", err))
	}

	task, err := s.translate(ctx, d, s.builder.Build(fields, d.Prompt), log)
	if isConflict(err) {
		return nil, err
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "translation failed")
		return s.fail(ctx, d, err)
	}
	env := task.Envelope()
	d.Parsed = &env

	start := time.Now()
	pctx, pspan := s.tracer.Start(ctx, "pipeline.preview")
	res, err := s.previewer.Preview(pctx, d.UserID, task)
	pspan.End()
	telemetry.StageDurationSeconds.WithLabelValues("preview").Observe(time.Since(start).Seconds())
	if err != nil {
		return s.fail(ctx, d, err)
	}
	d.Preview = res

	if err := s.advance(ctx, d, domain.StatusPreview); err != nil {
		return nil, err
	}
	log.Info("draft ready for confirmation",
		slog.String("action", env.Action),
		slog.Int("matches", len(res.Preview)),
		slog.Int("attempts", d.Attempts),
	)
	return d, nil
}

// translate calls the model and parses its answer, retrying transient
// failures. Each failed attempt is persisted on the draft; a draft that
// moved on in the meantime stops the loop with InvalidTransitionError.
func (s *Service) translate(ctx context.Context, d *domain.TaskDraft, promptText string, log *slog.Logger) (domain.Task, error) {
	var task domain.Task
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: s.maxAttempts,
		BaseDelay:   s.baseDelay,
		Retryable:   domain.IsRetryable,
		OnRetry: func(attempt int, err error) {
			telemetry.ModelRetriesTotal.Inc()
			log.Warn("model attempt failed, retrying",
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
		},
	}, func(attempt int) error {
		d.Attempts = attempt
		d.UpdatedAt = s.now()

		start := time.Now()
		gctx, span := s.tracer.Start(ctx, "pipeline.generate", trace.WithAttributes(attribute.Int("attempt", attempt)))
		raw, err := s.generator.Generate(gctx, promptText)
		span.End()
		telemetry.StageDurationSeconds.WithLabelValues("generate").Observe(time.Since(start).Seconds())

		if err == nil {
			task, err = parser.Parse(raw)
		}
		if err != nil {
			d.Error = err.Error()
			if uerr := s.drafts.Update(ctx, d, d.Status); uerr != nil {
				if isConflict(uerr) {
					return uerr
				}
				log.Error("failed to persist attempt", slog.String("error", uerr.Error()))
			}
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	d.Error = ""
	return task, nil
}

// GetDraft returns the caller's draft, preferring the cache.
func (s *Service) GetDraft(ctx context.Context, userID, draftID string) (*domain.TaskDraft, error) {
	if s.cache != nil {
		d, err := s.cache.GetDraft(ctx, draftID)
		if err != nil {
			s.logger.Warn("draft cache read failed", slog.String("draft_id", draftID), slog.String("error", err.Error()))
		} else if d != nil {
			if d.UserID != userID {
				return nil, &domain.DraftNotFoundError{DraftID: draftID}
			}
			return d, nil
		}
	}
	d, err := s.load(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	s.remember(ctx, d)
	return d, nil
}

// ListDrafts returns the caller's most recent drafts.
func (s *Service) ListDrafts(ctx context.Context, userID string, limit int) ([]*domain.TaskDraft, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	drafts, err := s.drafts.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	return drafts, nil
}

// ConfirmDraft accepts a previewed draft. A draft can be confirmed once:
// the preview → confirmed move is a compare-and-set, so a second call gets
// InvalidTransitionError. Sync mode executes now; async mode queues the
// draft for the worker service.
func (s *Service) ConfirmDraft(ctx context.Context, userID, draftID string, mode domain.ConfirmMode) (*domain.TaskDraft, error) {
	if mode == "" {
		mode = domain.ConfirmSync
	}
	if mode != domain.ConfirmSync && mode != domain.ConfirmAsync {
		return nil, fmt.Errorf("unknown confirm mode %q", mode)
	}
	if mode == domain.ConfirmAsync && s.publisher == nil {
		return nil, fmt.Errorf("async confirmation is not enabled")
	}

	d, err := s.load(ctx, userID, draftID)
	if err != nil {
		return nil, err
	}
	if err := s.drafts.Transition(ctx, d.ID, domain.StatusPreview, domain.StatusConfirmed); err != nil {
		return nil, err
	}
	if err := d.Advance(domain.StatusConfirmed, s.now()); err != nil {
		return nil, err
	}
	telemetry.DraftsConfirmed.WithLabelValues(string(mode)).Inc()
	s.logger.Info("draft confirmed",
		slog.String("draft_id", d.ID),
		slog.String("user_id", userID),
		slog.String("mode", string(mode)),
	)

	if mode == domain.ConfirmSync {
		return s.execute(ctx, d)
	}

	if err := s.drafts.Transition(ctx, d.ID, domain.StatusConfirmed, domain.StatusQueued); err != nil {
		return nil, err
	}
	if err := d.Advance(domain.StatusQueued, s.now()); err != nil {
		return nil, err
	}
	s.remember(ctx, d)
	if err := s.publisher.PublishConfirmed(ctx, d); err != nil {
		perr := fmt.Errorf("queue draft: %w", err)
		if fd, ferr := s.fail(ctx, d, perr); ferr != nil {
			return fd, ferr
		}
		return d, perr
	}
	return d, nil
}

// ExecuteQueued runs a draft the gateway queued. A draft that is no longer
// queued, for instance a redelivered message, yields InvalidTransitionError
// and is left untouched.
func (s *Service) ExecuteQueued(ctx context.Context, draftID string) (*domain.TaskDraft, error) {
	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.Status != domain.StatusQueued {
		return d, &domain.InvalidTransitionError{DraftID: d.ID, From: d.Status, To: domain.StatusExecuting}
	}
	return s.execute(ctx, d)
}

// execute applies a confirmed or queued draft. Execution failures are
// recorded on the draft and also returned.
func (s *Service) execute(ctx context.Context, d *domain.TaskDraft) (*domain.TaskDraft, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(attribute.String("draft.id", d.ID)))
	defer span.End()

	if err := s.drafts.Transition(ctx, d.ID, d.Status, domain.StatusExecuting); err != nil {
		return nil, err
	}
	if err := d.Advance(domain.StatusExecuting, s.now()); err != nil {
		return nil, err
	}

	task, err := d.Task()
	if err != nil {
		return s.fail(ctx, d, err)
	}

	start := time.Now()
	res, execErr := s.executor.Execute(ctx, d.UserID, task, executor.WithPreviewedIDs(d.Preview.TargetIDs()))
	telemetry.StageDurationSeconds.WithLabelValues("execute").Observe(time.Since(start).Seconds())
	d.Result = res

	if execErr != nil {
		span.RecordError(execErr)
		span.SetStatus(codes.Error, "execution failed")
		kind := domain.FailureKindOf(execErr)
		if kind == domain.FailureInternal {
			kind = domain.FailureExecution
		}
		fd, err := s.failAs(ctx, d, execErr, kind)
		if err != nil {
			return fd, err
		}
		return fd, execErr
	}

	if err := s.recordDone(ctx, d); err != nil {
		span.RecordError(err)
		s.logger.Error("draft executed but its result was not recorded",
			slog.String("draft_id", d.ID),
			slog.String("action", string(res.Action)),
			slog.Int("affected", res.Affected),
			slog.Any("records", res.Records),
			slog.Any("skipped", res.Skipped),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	telemetry.RecordsAffected.WithLabelValues(string(res.Action)).Add(float64(res.Affected))
	telemetry.DraftsFinished.WithLabelValues(string(domain.StatusDone), "").Inc()
	s.logger.Info("draft executed",
		slog.String("draft_id", d.ID),
		slog.String("action", string(res.Action)),
		slog.Int("affected", res.Affected),
		slog.Int("skipped", len(res.Skipped)),
	)
	return d, nil
}

// ExpireStale fails drafts nobody confirmed within the preview TTL and
// drafts stuck mid-flight longer than the stuck TTL. Returns how many
// drafts were expired.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	type sweep struct {
		status domain.Status
		ttl    time.Duration
	}
	sweeps := []sweep{{domain.StatusPreview, s.previewTTL}}
	for _, st := range []domain.Status{domain.StatusPending, domain.StatusParsing, domain.StatusConfirmed, domain.StatusQueued, domain.StatusExecuting} {
		sweeps = append(sweeps, sweep{st, s.stuckTTL})
	}

	expired := 0
	for _, sw := range sweeps {
		if sw.ttl <= 0 {
			continue
		}
		stale, err := s.drafts.ListStale(ctx, sw.status, now.Add(-sw.ttl), s.expireBatch)
		if err != nil {
			return expired, fmt.Errorf("list stale %s drafts: %w", sw.status, err)
		}
		for _, d := range stale {
			if err := s.drafts.Transition(ctx, d.ID, sw.status, domain.StatusFailed); err != nil {
				// Moved on since it was listed.
				s.logger.Debug("skip expiring draft", slog.String("draft_id", d.ID), slog.String("error", err.Error()))
				continue
			}
			if err := d.Fail(&domain.ExpiredError{Status: sw.status}, now); err != nil {
				return expired, err
			}
			if err := s.drafts.Update(ctx, d, domain.StatusFailed); err != nil {
				return expired, fmt.Errorf("update expired draft %s: %w", d.ID, err)
			}
			s.remember(ctx, d)
			telemetry.DraftsExpired.WithLabelValues(string(sw.status)).Inc()
			expired++
		}
	}
	return expired, nil
}

func (s *Service) load(ctx context.Context, userID, draftID string) (*domain.TaskDraft, error) {
	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}
	if d.UserID != userID {
		return nil, &domain.DraftNotFoundError{DraftID: draftID}
	}
	return d, nil
}

// advance moves d to status to and persists it, provided the stored draft
// is still in the status d had.
func (s *Service) advance(ctx context.Context, d *domain.TaskDraft, to domain.Status) error {
	from := d.Status
	if err := d.Advance(to, s.now()); err != nil {
		return err
	}
	if err := s.drafts.Update(ctx, d, from); err != nil {
		return fmt.Errorf("persist draft %s as %s: %w", d.ID, to, err)
	}
	s.remember(ctx, d)
	return nil
}

// recordDone persists an executed draft. The mutation has already been
// applied, so store outages are retried; a draft the janitor failed in the
// meantime is not.
func (s *Service) recordDone(ctx context.Context, d *domain.TaskDraft) error {
	if err := d.Advance(domain.StatusDone, s.now()); err != nil {
		return err
	}
	err := retry.Do(ctx, retry.Config{
		MaxAttempts: s.maxAttempts,
		BaseDelay:   s.baseDelay,
		Retryable:   func(err error) bool { return !isConflict(err) },
	}, func(int) error {
		return s.drafts.Update(ctx, d, domain.StatusExecuting)
	})
	if err != nil {
		return fmt.Errorf("persist draft %s as %s: %w", d.ID, domain.StatusDone, err)
	}
	s.remember(ctx, d)
	return nil
}

// fail records err on the draft and persists it. The returned error is
// only set when persisting failed.
func (s *Service) fail(ctx context.Context, d *domain.TaskDraft, err error) (*domain.TaskDraft, error) {
	return s.failAs(ctx, d, err, "")
}

func (s *Service) failAs(ctx context.Context, d *domain.TaskDraft, err error, kind string) (*domain.TaskDraft, error) {
	from := d.Status
	if ferr := d.Fail(err, s.now()); ferr != nil {
		return nil, ferr
	}
	if kind != "" {
		d.FailureKind = kind
	}
	if uerr := s.drafts.Update(ctx, d, from); uerr != nil {
		return nil, fmt.Errorf("persist failed draft %s: %w", d.ID, uerr)
	}
	s.logger.Warn("draft failed",
		slog.String("draft_id", d.ID),
		slog.String("failure_kind", d.FailureKind),
		slog.Int("attempts", d.Attempts),
		slog.String("error", d.Error),
	)
	telemetry.DraftsFinished.WithLabelValues(string(domain.StatusFailed), d.FailureKind).Inc()
	s.remember(ctx, d)
	return d, nil
}

// superseded returns the stored draft after a write lost to a concurrent
// transition.
func (s *Service) superseded(ctx context.Context, draftID string, cause error) (*domain.TaskDraft, error) {
	s.logger.Warn("draft changed while in flight",
		slog.String("draft_id", draftID),
		slog.String("error", cause.Error()),
	)
	d, err := s.drafts.Get(ctx, draftID)
	if err != nil {
		return nil, errors.Join(cause, err)
	}
	s.remember(ctx, d)
	return d, nil
}

func isConflict(err error) bool {
	var invalid *domain.InvalidTransitionError
	return errors.As(err, &invalid)
}

func (s *Service) remember(ctx context.Context, d *domain.TaskDraft) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetDraft(ctx, d); err != nil {
		s.logger.Warn("draft cache write failed", slog.String("draft_id", d.ID), slog.String("error", err.Error()))
	}
}
