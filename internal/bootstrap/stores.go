package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/memstore"
	"github.com/NooberThanYall/fixo-crm/internal/postgres"
	"github.com/NooberThanYall/fixo-crm/internal/sqlite"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects and locates the storage backend.
type StoreConfig struct {
	Driver      string
	PostgresDSN string
	SQLitePath  string
}

// Stores bundles the storage collaborators of one backend.
type Stores struct {
	Catalog domain.FieldCatalog
	Records domain.RecordStore
	Drafts  domain.DraftRepository

	// SetFields replaces a tenant's field catalog.
	SetFields func(ctx context.Context, tenantID string, fields []string) error
	// Ping reports whether the backend is reachable.
	Ping func(ctx context.Context) error
	// Close releases the backend.
	Close func()
}

// OpenStores connects to the configured backend. Postgres must already be
// migrated; SQLite creates its schema on open.
func OpenStores(ctx context.Context, cfg StoreConfig, logger *slog.Logger) (*Stores, error) {
	switch cfg.Driver {
	case DriverMemory:
		logger.Warn("using in-memory store; data is lost on exit and not shared between services")
		products := memstore.New()
		return &Stores{
			Catalog: products,
			Records: products,
			Drafts:  memstore.NewDrafts(),
			SetFields: func(_ context.Context, tenantID string, fields []string) error {
				products.SetFields(tenantID, fields)
				return nil
			},
			Ping:  func(context.Context) error { return nil },
			Close: func() {},
		}, nil

	case DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %w", err)
		}
		products := db.Products()
		return &Stores{
			Catalog:   products,
			Records:   products,
			Drafts:    db.Drafts(),
			SetFields: products.SetFields,
			Ping:      db.Ping,
			Close:     func() { _ = db.Close() },
		}, nil

	case DriverPostgres:
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		pool, err := postgres.NewPool(initCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		products := postgres.NewProductStore(pool)
		return &Stores{
			Catalog:   products,
			Records:   products,
			Drafts:    postgres.NewDraftRepository(pool),
			SetFields: products.SetFields,
			Ping:      pool.Ping,
			Close:     pool.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q (want %s, %s or %s)", cfg.Driver, DriverMemory, DriverSQLite, DriverPostgres)
	}
}
