package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// Drafts is the draft repository. Drafts are kept as JSON so callers never
// share pointers with the repository.
type Drafts struct {
	mu     sync.Mutex
	drafts map[string][]byte
}

// NewDrafts returns an empty repository.
func NewDrafts() *Drafts {
	return &Drafts{drafts: make(map[string][]byte)}
}

func (r *Drafts) Create(_ context.Context, d *domain.TaskDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.drafts[d.ID]; ok {
		return fmt.Errorf("create draft %s: already exists", d.ID)
	}
	return r.put(d)
}

func (r *Drafts) Update(_ context.Context, d *domain.TaskDraft, from domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, err := r.get(d.ID)
	if err != nil {
		return err
	}
	if stored.Status != from {
		return &domain.InvalidTransitionError{DraftID: d.ID, From: stored.Status, To: d.Status}
	}
	return r.put(d)
}

// Transition is a compare-and-set on the stored status.
func (r *Drafts) Transition(_ context.Context, id string, from, to domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, err := r.get(id)
	if err != nil {
		return err
	}
	if d.Status != from {
		return &domain.InvalidTransitionError{DraftID: id, From: d.Status, To: to}
	}
	if err := d.Advance(to, time.Now().UTC()); err != nil {
		return err
	}
	return r.put(d)
}

func (r *Drafts) Get(_ context.Context, id string) (*domain.TaskDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

// ListByUser returns the user's drafts, newest first.
func (r *Drafts) ListByUser(_ context.Context, userID string, limit int) ([]*domain.TaskDraft, error) {
	return r.list(limit, func(d *domain.TaskDraft) bool { return d.UserID == userID })
}

// ListStale returns drafts in status last updated before cutoff, newest first.
func (r *Drafts) ListStale(_ context.Context, status domain.Status, cutoff time.Time, limit int) ([]*domain.TaskDraft, error) {
	return r.list(limit, func(d *domain.TaskDraft) bool {
		return d.Status == status && d.UpdatedAt.Before(cutoff)
	})
}

func (r *Drafts) list(limit int, keep func(*domain.TaskDraft) bool) ([]*domain.TaskDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.TaskDraft
	for id := range r.drafts {
		d, err := r.get(id)
		if err != nil {
			return nil, err
		}
		if keep(d) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *Drafts) get(id string) (*domain.TaskDraft, error) {
	raw, ok := r.drafts[id]
	if !ok {
		return nil, &domain.DraftNotFoundError{DraftID: id}
	}
	var d domain.TaskDraft
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("decode draft %s: %w", id, err)
	}
	return &d, nil
}

func (r *Drafts) put(d *domain.TaskDraft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft %s: %w", d.ID, err)
	}
	r.drafts[d.ID] = raw
	return nil
}
