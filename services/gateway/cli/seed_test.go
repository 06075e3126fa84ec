package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/bootstrap"
	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

const seedYAML = `
tenants:
  - id: u1
    fields: [color, size]
    products:
      - name: Widget
        price: 80
        stock: 12
        color: red
      - name: Gadget
        price: 19.5
  - id: u2
    products:
      - name: Lamp
`

func memoryStores(t *testing.T) *bootstrap.Stores {
	t.Helper()
	stores, err := bootstrap.OpenStores(context.Background(), bootstrap.StoreConfig{Driver: bootstrap.DriverMemory},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return stores
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	stores := memoryStores(t)
	var out bytes.Buffer

	require.NoError(t, seed(ctx, stores, strings.NewReader(seedYAML), &out))

	assert.Contains(t, out.String(), "seeded u1: 2 field(s), 2 product(s)")
	fields, err := stores.Catalog.Fields(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"color", "size"}, fields)

	name := "Widget"
	found, err := stores.Records.FindByQuery(ctx, "u1", domain.ProductQuery{Name: &name})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "red", found[0]["color"])

	lamps, err := stores.Records.FindByQuery(ctx, "u2", domain.ProductQuery{})
	require.NoError(t, err)
	assert.Len(t, lamps, 1)
}

func TestSeed_Rejects(t *testing.T) {
	stores := memoryStores(t)
	assert.Error(t, seed(context.Background(), stores, strings.NewReader("tenants: [{fields: [a]}]"), io.Discard))
	assert.Error(t, seed(context.Background(), stores, strings.NewReader("tenants: : :"), io.Discard))
}
