package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewLogger_FiltersAndEncodesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn").With(slog.String("service", "gateway"))

	logger.Info("dropped")
	logger.Warn("kept", slog.String("draft_id", "d1"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, "gateway", rec["service"])
	assert.Equal(t, "d1", rec["draft_id"])
}

func TestBuildLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixo.log")
	BuildLogger("info", "worker", path).Info("hello")
	assert.FileExists(t, path)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestOpenStores_Memory(t *testing.T) {
	ctx := context.Background()
	stores, err := OpenStores(ctx, StoreConfig{Driver: DriverMemory}, discard())
	require.NoError(t, err)
	defer stores.Close()
	exerciseStores(t, stores)
}

func TestOpenStores_SQLite(t *testing.T) {
	ctx := context.Background()
	stores, err := OpenStores(ctx, StoreConfig{Driver: DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "fixo.db")}, discard())
	require.NoError(t, err)
	defer stores.Close()
	exerciseStores(t, stores)
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), StoreConfig{Driver: "mongo"}, discard())
	assert.ErrorContains(t, err, `unknown store driver "mongo"`)
}

func exerciseStores(t *testing.T, stores *Stores) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, stores.Ping(ctx))
	require.NoError(t, stores.SetFields(ctx, "u1", []string{"color"}))
	fields, err := stores.Catalog.Fields(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"color"}, fields)

	rec, err := stores.Records.Create(ctx, "u1", domain.Fields{"name": "Widget"})
	require.NoError(t, err)
	got, err := stores.Records.Get(ctx, "u1", rec.ID())
	require.NoError(t, err)
	assert.Equal(t, "Widget", got["name"])
}
