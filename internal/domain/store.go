package domain

import (
	"context"
	"time"
)

// FieldCatalog supplies a tenant's custom product attributes.
type FieldCatalog interface {
	// Fields returns the tenant's custom attribute names in display order.
	// An unknown tenant has no custom fields.
	Fields(ctx context.Context, tenantID string) ([]string, error)
}

// RecordFinder is the read-only lookup the preview engine is limited to.
type RecordFinder interface {
	FindByQuery(ctx context.Context, tenantID string, q ProductQuery) ([]Record, error)
}

// RecordStore is the tenant-scoped product CRUD collaborator.
type RecordStore interface {
	RecordFinder
	Create(ctx context.Context, tenantID string, fields Fields) (Record, error)
	// Update overlays fields onto the record. Returns RecordNotFoundError
	// when id does not exist in the tenant's scope.
	Update(ctx context.Context, tenantID, id string, fields Fields) (Record, error)
	// Delete returns RecordNotFoundError when id does not exist in scope.
	Delete(ctx context.Context, tenantID, id string) error
	// Get returns nil, nil when the record does not exist.
	Get(ctx context.Context, tenantID, id string) (Record, error)
}

// DraftRepository persists task drafts.
type DraftRepository interface {
	Create(ctx context.Context, d *TaskDraft) error
	// Update writes every mutable column of d when the stored status is
	// still from, the status the caller last saw. Returns
	// InvalidTransitionError when it is not and DraftNotFoundError if the
	// draft does not exist.
	Update(ctx context.Context, d *TaskDraft, from Status) error
	// Transition atomically moves the draft from one status to another.
	// Returns InvalidTransitionError when the stored status is not from.
	Transition(ctx context.Context, id string, from, to Status) error
	Get(ctx context.Context, id string) (*TaskDraft, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*TaskDraft, error)
	// ListStale returns drafts in status whose last update is before cutoff.
	ListStale(ctx context.Context, status Status, cutoff time.Time, limit int) ([]*TaskDraft, error)
}
