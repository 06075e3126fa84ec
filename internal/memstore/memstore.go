// Package memstore is an in-process implementation of the record store,
// field catalog and draft repository. It backs store_driver=memory and the
// pipeline tests.
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

// Store is the product store and field catalog.
type Store struct {
	mu       sync.RWMutex
	fields   map[string][]string
	products map[string][]domain.Record
}

// New returns an empty store.
func New() *Store {
	return &Store{
		fields:   make(map[string][]string),
		products: make(map[string][]domain.Record),
	}
}

// SetFields replaces the tenant's custom field catalog.
func (s *Store) SetFields(tenantID string, fields []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[tenantID] = slices.Clone(fields)
}

// Fields implements domain.FieldCatalog.
func (s *Store) Fields(_ context.Context, tenantID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.fields[tenantID]), nil
}

// FindByQuery returns matching records in insertion order.
func (s *Store) FindByQuery(_ context.Context, tenantID string, q domain.ProductQuery) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Record
	for _, r := range s.products[tenantID] {
		if q.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

// Create stores fields as a new record with a fresh id.
func (s *Store) Create(_ context.Context, tenantID string, fields domain.Fields) (domain.Record, error) {
	rec := domain.Apply(domain.BlankProduct(), fields)
	rec[domain.FieldID] = uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[tenantID] = append(s.products[tenantID], rec)
	return rec.Clone(), nil
}

// Update overlays fields onto the record with id.
func (s *Store) Update(_ context.Context, tenantID, id string, fields domain.Fields) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.products[tenantID] {
		if r.ID() == id {
			next := domain.Apply(r, fields)
			s.products[tenantID][i] = next
			return next.Clone(), nil
		}
	}
	return nil, &domain.RecordNotFoundError{ID: id}
}

// Delete removes the record with id.
func (s *Store) Delete(_ context.Context, tenantID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := s.products[tenantID]
	for i, r := range recs {
		if r.ID() == id {
			s.products[tenantID] = slices.Delete(recs, i, i+1)
			return nil
		}
	}
	return &domain.RecordNotFoundError{ID: id}
}

// Get returns nil, nil when id is not in the tenant's scope.
func (s *Store) Get(_ context.Context, tenantID, id string) (domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.products[tenantID] {
		if r.ID() == id {
			return r.Clone(), nil
		}
	}
	return nil, nil
}
