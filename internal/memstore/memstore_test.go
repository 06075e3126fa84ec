package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/memstore"
)

func ptr[T any](v T) *T { return &v }

func TestStore_CRUD(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	rec, err := s.Create(ctx, "t1", domain.Fields{"name": "Widget", "price": 80.0, "customFields": map[string]any{"color": "blue"}})
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID())
	assert.Equal(t, "blue", rec["color"])
	assert.Nil(t, rec["stock"])

	found, err := s.FindByQuery(ctx, "t1", domain.ProductQuery{Name: ptr("widg")})
	require.NoError(t, err)
	require.Len(t, found, 1)

	updated, err := s.Update(ctx, "t1", rec.ID(), domain.Fields{"price": 100.0, "id": "hijack"})
	require.NoError(t, err)
	assert.Equal(t, 100.0, updated["price"])
	assert.Equal(t, rec.ID(), updated.ID())
	assert.Equal(t, "Widget", updated["name"])

	require.NoError(t, s.Delete(ctx, "t1", rec.ID()))
	got, err := s.Get(ctx, "t1", rec.ID())
	require.NoError(t, err)
	assert.Nil(t, got)

	var nf *domain.RecordNotFoundError
	require.ErrorAs(t, s.Delete(ctx, "t1", rec.ID()), &nf)
	_, err = s.Update(ctx, "t1", rec.ID(), domain.Fields{})
	require.ErrorAs(t, err, &nf)
}

func TestStore_TenantScope(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	rec, err := s.Create(ctx, "t1", domain.Fields{"name": "Widget"})
	require.NoError(t, err)

	found, err := s.FindByQuery(ctx, "t2", domain.ProductQuery{})
	require.NoError(t, err)
	assert.Empty(t, found)

	got, err := s.Get(ctx, "t2", rec.ID())
	require.NoError(t, err)
	assert.Nil(t, got)

	var nf *domain.RecordNotFoundError
	require.ErrorAs(t, s.Delete(ctx, "t2", rec.ID()), &nf)
}

func TestStore_Fields(t *testing.T) {
	s := memstore.New()
	s.SetFields("t1", []string{"color", "size"})

	fields, err := s.Fields(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "size"}, fields)

	fields, err = s.Fields(context.Background(), "unknown")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestDrafts_Transition(t *testing.T) {
	ctx := context.Background()
	r := memstore.NewDrafts()
	d := domain.NewDraft("d1", "u1", "x", time.Now().UTC())
	d.Status = domain.StatusPreview
	require.NoError(t, r.Create(ctx, d))

	require.NoError(t, r.Transition(ctx, "d1", domain.StatusPreview, domain.StatusConfirmed))

	err := r.Transition(ctx, "d1", domain.StatusPreview, domain.StatusConfirmed)
	var target *domain.InvalidTransitionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, domain.StatusConfirmed, target.From)

	var nf *domain.DraftNotFoundError
	require.ErrorAs(t, r.Transition(ctx, "missing", domain.StatusPreview, domain.StatusConfirmed), &nf)
}

func TestDrafts_UpdateReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := memstore.NewDrafts()
	d := domain.NewDraft("d1", "u1", "x", time.Now().UTC())
	require.NoError(t, r.Create(ctx, d))

	d.Attempts = 2
	got, err := r.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Zero(t, got.Attempts, "stored draft must not alias the caller's")

	require.NoError(t, r.Update(ctx, d, domain.StatusPending))
	got, err = r.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)

	var nf *domain.DraftNotFoundError
	require.ErrorAs(t, r.Update(ctx, domain.NewDraft("nope", "u1", "x", time.Now()), domain.StatusPending), &nf)
}

func TestDrafts_UpdateRequiresLastSeenStatus(t *testing.T) {
	ctx := context.Background()
	r := memstore.NewDrafts()
	d := domain.NewDraft("d1", "u1", "x", time.Now().UTC())
	require.NoError(t, r.Create(ctx, d))
	require.NoError(t, r.Transition(ctx, "d1", domain.StatusPending, domain.StatusFailed))

	require.NoError(t, d.Advance(domain.StatusParsing, time.Now().UTC()))
	err := r.Update(ctx, d, domain.StatusPending)
	var invalid *domain.InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, domain.StatusFailed, invalid.From)
	assert.Equal(t, domain.StatusParsing, invalid.To)

	got, err := r.Get(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status, "a terminal draft is never overwritten")
}

func TestDrafts_Lists(t *testing.T) {
	ctx := context.Background()
	r := memstore.NewDrafts()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		d := domain.NewDraft(id, "u1", "x", base.Add(time.Duration(i)*time.Minute))
		d.Status = domain.StatusPreview
		require.NoError(t, r.Create(ctx, d))
	}
	require.NoError(t, r.Create(ctx, domain.NewDraft("z", "u2", "x", base)))

	mine, err := r.ListByUser(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "c", mine[0].ID)
	assert.Equal(t, "b", mine[1].ID)

	stale, err := r.ListStale(ctx, domain.StatusPreview, base.Add(90*time.Second), 0)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, "b", stale[0].ID)
	assert.Equal(t, "a", stale[1].ID)
}
