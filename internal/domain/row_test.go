package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

func TestProductRow_RoundTrip(t *testing.T) {
	rec := domain.Record{
		"id": "p1", "name": "Shirt", "price": 9.5, "stock": 3.0,
		"description": nil, "color": "blue",
	}
	row, err := domain.RowFromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, "p1", row.ID)
	assert.Equal(t, "Shirt", *row.Name)
	assert.Equal(t, int64(3), *row.Stock)
	assert.Nil(t, row.Description)
	assert.Equal(t, map[string]any{"color": "blue"}, row.Custom)

	back := row.Record()
	assert.Equal(t, domain.Record{
		"id": "p1", "name": "Shirt", "price": 9.5, "stock": int64(3),
		"description": nil, "color": "blue",
	}, back)
}

func TestRowFromRecord_Rejects(t *testing.T) {
	for _, rec := range []domain.Record{
		{"name": 5},
		{"price": "cheap"},
		{"stock": 1.5},
	} {
		_, err := domain.RowFromRecord(rec)
		assert.Error(t, err, "%v", rec)
	}
}
