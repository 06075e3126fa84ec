// Package preview projects the effect of a task without writing anything.
package preview

import (
	"context"
	"fmt"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/i18n"
)

// Engine computes before/after pairs. It only holds a read-only finder, so
// a preview can never mutate the store.
type Engine struct {
	finder domain.RecordFinder
}

// NewEngine returns an Engine reading through finder.
func NewEngine(finder domain.RecordFinder) *Engine {
	return &Engine{finder: finder}
}

// Preview returns the projected effect of task in tenantID's scope. Zero
// matches is a result with a message, not an error. Lookup failures are
// returned as errors.
func (e *Engine) Preview(ctx context.Context, tenantID string, task domain.Task) (*domain.PreviewResult, error) {
	switch t := task.(type) {
	case domain.AddProduct:
		return &domain.PreviewResult{Preview: []domain.PreviewPair{
			{Before: nil, After: domain.Apply(domain.BlankProduct(), t.Data)},
		}}, nil

	case domain.UpdateProduct:
		return e.matches(ctx, tenantID, t.Query, func(r domain.Record) domain.Record {
			return domain.Apply(r, t.Data)
		})

	case domain.DeleteProduct:
		return e.matches(ctx, tenantID, t.Query, nil)

	case domain.GetProduct:
		return e.matches(ctx, tenantID, t.Query, nil)

	default:
		return &domain.PreviewResult{
			Preview: []domain.PreviewPair{},
			Message: i18n.Sprintf(ctx, i18n.MsgUnknownTask),
		}, nil
	}
}

func (e *Engine) matches(ctx context.Context, tenantID string, q domain.ProductQuery, project func(domain.Record) domain.Record) (*domain.PreviewResult, error) {
	found, err := e.finder.FindByQuery(ctx, tenantID, q)
	if err != nil {
		return nil, fmt.Errorf("preview lookup: %w", err)
	}
	res := &domain.PreviewResult{Preview: make([]domain.PreviewPair, 0, len(found))}
	if len(found) == 0 {
		res.Message = i18n.Sprintf(ctx, i18n.MsgNoMatch)
		return res, nil
	}
	for _, r := range found {
		pair := domain.PreviewPair{Before: r}
		if project != nil {
			pair.After = project(r)
		}
		res.Preview = append(res.Preview, pair)
	}
	return res, nil
}
