// Package sqlite implements the product store, field catalog and draft
// repository on an embedded SQLite database for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"modernc.org/sqlite"
)

// registerFold installs fold(x), a Unicode lower-casing of x. SQLite's own
// LIKE folds ASCII only.
var registerFold = sync.OnceValue(func() error {
	return sqlite.RegisterDeterministicScalarFunction("fold", 1,
		func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
			switch v := args[0].(type) {
			case nil:
				return nil, nil
			case string:
				return strings.ToLower(v), nil
			case []byte:
				return strings.ToLower(string(v)), nil
			default:
				return fmt.Sprint(v), nil
			}
		})
})

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id             TEXT PRIMARY KEY,
    product_fields TEXT NOT NULL DEFAULT '[]'
);

CREATE TABLE IF NOT EXISTS products (
    id            TEXT PRIMARY KEY,
    owner_id      TEXT NOT NULL,
    name          TEXT,
    price         REAL,
    stock         INTEGER,
    description   TEXT,
    custom_fields TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_products_owner ON products (owner_id);

CREATE TABLE IF NOT EXISTS task_drafts (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL,
    prompt       TEXT NOT NULL,
    status       TEXT NOT NULL,
    parsed       TEXT,
    preview      TEXT,
    result       TEXT,
    error        TEXT NOT NULL DEFAULT '',
    failure_kind TEXT NOT NULL DEFAULT '',
    attempts     INTEGER NOT NULL DEFAULT 0,
    executed_at  TEXT,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_task_drafts_user   ON task_drafts (user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_task_drafts_status ON task_drafts (status, updated_at);
`

// timeLayout sorts lexically, so stored timestamps compare as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// DB owns the connection shared by Products and Drafts.
type DB struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the
// schema. ":memory:" gives a private in-memory database.
func Open(ctx context.Context, path string) (*DB, error) {
	if err := registerFold(); err != nil {
		return nil, fmt.Errorf("register fold function: %w", err)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection serializes writers and keeps :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &DB{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates missing tables and indexes.
func (s *DB) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Ping checks the database is reachable.
func (s *DB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Close closes the database.
func (s *DB) Close() error { return s.db.Close() }

// Products returns the product store backed by s.
func (s *DB) Products() *Products { return &Products{db: s.db} }

// Drafts returns the draft repository backed by s.
func (s *DB) Drafts() *Drafts { return &Drafts{db: s.db} }

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) (time.Time, error) { return time.Parse(timeLayout, s) }
