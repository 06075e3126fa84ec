// Package executor applies confirmed tasks to the record store.
package executor

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/i18n"
)

// Executor performs exactly one mutation attempt per target record. It does
// not retry and is not idempotent on its own.
type Executor struct {
	store domain.RecordStore
}

// New returns an Executor writing through store.
func New(store domain.RecordStore) *Executor {
	return &Executor{store: store}
}

type options struct {
	previewed []string
	limited   bool
}

// Option configures one Execute call.
type Option func(*options)

// WithPreviewedIDs limits update and delete to the records the confirmed
// preview showed. Previewed records that no longer match are skipped;
// records that started matching after the preview are left alone.
func WithPreviewedIDs(ids []string) Option {
	return func(o *options) {
		o.previewed = slices.Clone(ids)
		o.limited = true
	}
}

// Dispatch builds the task from env and executes it. Unsupported entities
// and actions fail before any storage access.
func (e *Executor) Dispatch(ctx context.Context, tenantID string, env domain.Envelope, opts ...Option) (*domain.ExecutionResult, error) {
	task, err := domain.NewTask(env)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, tenantID, task, opts...)
}

// Execute runs task in tenantID's scope. On a mid-way storage failure the
// partial result is returned alongside the error.
func (e *Executor) Execute(ctx context.Context, tenantID string, task domain.Task, opts ...Option) (*domain.ExecutionResult, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		res *domain.ExecutionResult
		err error
	)
	switch t := task.(type) {
	case domain.AddProduct:
		res, err = e.add(ctx, tenantID, t)
	case domain.UpdateProduct:
		res, err = e.mutate(ctx, tenantID, domain.ActionUpdate, t.Query, o, func(id string) (domain.Record, error) {
			return e.store.Update(ctx, tenantID, id, t.Data)
		})
	case domain.DeleteProduct:
		res, err = e.mutate(ctx, tenantID, domain.ActionDelete, t.Query, o, func(id string) (domain.Record, error) {
			return domain.Record{domain.FieldID: id}, e.store.Delete(ctx, tenantID, id)
		})
	case domain.GetProduct:
		res, err = e.get(ctx, tenantID, t)
	case nil:
		return nil, errors.New("execute: nil task")
	default:
		return nil, &domain.UnsupportedActionError{Entity: string(task.Entity()), Action: string(task.Action())}
	}
	if res != nil {
		res.Message = summary(ctx, res)
	}
	return res, err
}

func (e *Executor) add(ctx context.Context, tenantID string, t domain.AddProduct) (*domain.ExecutionResult, error) {
	rec, err := e.store.Create(ctx, tenantID, t.Data)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return &domain.ExecutionResult{Action: domain.ActionAdd, Records: []domain.Record{rec}, Affected: 1}, nil
}

func (e *Executor) get(ctx context.Context, tenantID string, t domain.GetProduct) (*domain.ExecutionResult, error) {
	found, err := e.store.FindByQuery(ctx, tenantID, t.Query)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	if found == nil {
		found = []domain.Record{}
	}
	return &domain.ExecutionResult{Action: domain.ActionGet, Records: found, Affected: len(found)}, nil
}

func (e *Executor) mutate(ctx context.Context, tenantID string, action domain.Action, q domain.ProductQuery, o options, apply func(id string) (domain.Record, error)) (*domain.ExecutionResult, error) {
	targets, skipped, err := e.resolve(ctx, tenantID, q, o)
	if err != nil {
		return nil, err
	}

	res := &domain.ExecutionResult{Action: action, Records: []domain.Record{}, Skipped: skipped}
	for _, id := range targets {
		rec, err := apply(id)
		var nf *domain.RecordNotFoundError
		switch {
		case errors.As(err, &nf):
			// Removed between resolution and write.
			res.Skipped = append(res.Skipped, id)
		case err != nil:
			return res, fmt.Errorf("%s product %s: %w", action, id, err)
		default:
			res.Records = append(res.Records, rec)
			res.Affected++
		}
	}
	return res, nil
}

// resolve re-reads the filter against current storage and, when the call is
// limited to previewed ids, intersects the two.
func (e *Executor) resolve(ctx context.Context, tenantID string, q domain.ProductQuery, o options) (targets, skipped []string, err error) {
	current, err := e.store.FindByQuery(ctx, tenantID, q)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve targets: %w", err)
	}
	if !o.limited {
		for _, r := range current {
			targets = append(targets, r.ID())
		}
		return targets, nil, nil
	}

	matching := make(map[string]bool, len(current))
	for _, r := range current {
		matching[r.ID()] = true
	}
	for _, id := range o.previewed {
		if matching[id] {
			targets = append(targets, id)
		} else {
			skipped = append(skipped, id)
		}
	}
	return targets, skipped, nil
}

func summary(ctx context.Context, res *domain.ExecutionResult) string {
	msg := i18n.Sprintf(ctx, i18n.MsgExecuted, i18n.ActionLabel(ctx, string(res.Action)), res.Affected)
	if len(res.Skipped) > 0 {
		msg += " " + i18n.Sprintf(ctx, i18n.MsgSkipped, len(res.Skipped))
	}
	return msg
}
