package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

func TestStatus_IsTerminal(t *testing.T) {
	terminal := map[domain.Status]bool{domain.StatusDone: true, domain.StatusFailed: true}
	for _, s := range domain.Statuses {
		assert.Equal(t, terminal[s], s.IsTerminal(), string(s))
	}
}

func TestStatus_CanTransition(t *testing.T) {
	allowed := map[domain.Status][]domain.Status{
		domain.StatusPending:   {domain.StatusParsing, domain.StatusFailed},
		domain.StatusParsing:   {domain.StatusPreview, domain.StatusFailed},
		domain.StatusPreview:   {domain.StatusConfirmed, domain.StatusFailed},
		domain.StatusConfirmed: {domain.StatusQueued, domain.StatusExecuting, domain.StatusFailed},
		domain.StatusQueued:    {domain.StatusExecuting, domain.StatusFailed},
		domain.StatusExecuting: {domain.StatusDone, domain.StatusFailed},
	}
	for _, from := range domain.Statuses {
		for _, to := range domain.Statuses {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransition(to), "%s -> %s", from, to)
		}
	}
}

func TestDraft_Advance(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := domain.NewDraft("d1", "u1", "add a widget", now)
	assert.Equal(t, domain.StatusPending, d.Status)

	for _, s := range []domain.Status{domain.StatusParsing, domain.StatusPreview, domain.StatusConfirmed, domain.StatusExecuting} {
		require.NoError(t, d.Advance(s, now))
	}
	assert.Nil(t, d.ExecutedAt)

	later := now.Add(time.Minute)
	require.NoError(t, d.Advance(domain.StatusDone, later))
	require.NotNil(t, d.ExecutedAt)
	assert.Equal(t, later, *d.ExecutedAt)
	assert.Equal(t, later, d.UpdatedAt)
}

func TestDraft_Advance_Rejected(t *testing.T) {
	d := domain.NewDraft("d1", "u1", "x", time.Now())
	err := d.Advance(domain.StatusConfirmed, time.Now())

	var target *domain.InvalidTransitionError
	require.ErrorAs(t, err, &target)
	assert.Equal(t, domain.StatusPending, target.From)
	assert.Equal(t, domain.StatusConfirmed, target.To)
	assert.Equal(t, domain.StatusPending, d.Status, "status must not change on rejection")
}

func TestDraft_Fail(t *testing.T) {
	d := domain.NewDraft("d1", "u1", "x", time.Now())
	require.NoError(t, d.Fail(&domain.EmptyResponseError{Model: "m"}, time.Now()))
	assert.Equal(t, domain.StatusFailed, d.Status)
	assert.Equal(t, domain.FailureEmptyResponse, d.FailureKind)
	assert.NotEmpty(t, d.Error)

	// Failed is terminal.
	assert.Error(t, d.Fail(errors.New("again"), time.Now()))
	assert.Nil(t, d.ExecutedAt)
}

func TestDraft_Task(t *testing.T) {
	d := domain.NewDraft("d1", "u1", "x", time.Now())
	_, err := d.Task()
	require.Error(t, err)

	d.Parsed = &domain.Envelope{Entity: "product", Action: "get"}
	task, err := d.Task()
	require.NoError(t, err)
	assert.IsType(t, domain.GetProduct{}, task)
}

func TestPreviewResult_TargetIDs(t *testing.T) {
	p := &domain.PreviewResult{Preview: []domain.PreviewPair{
		{Before: domain.Record{"id": "a"}},
		{Before: nil, After: domain.Record{"name": "new"}},
		{Before: domain.Record{"id": "b"}},
	}}
	assert.Equal(t, []string{"a", "b"}, p.TargetIDs())

	var empty *domain.PreviewResult
	assert.Nil(t, empty.TargetIDs())
}
