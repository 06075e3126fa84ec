package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

const productColumns = `id::text, name, price, stock, description, custom_fields`

// ProductStore implements domain.RecordStore and domain.FieldCatalog. The
// tenant is the owning user.
type ProductStore struct {
	pool *pgxpool.Pool
}

// NewProductStore wraps pool.
func NewProductStore(pool *pgxpool.Pool) *ProductStore {
	return &ProductStore{pool: pool}
}

// Fields returns the user's custom product fields. Unknown users have none.
func (s *ProductStore) Fields(ctx context.Context, tenantID string) ([]string, error) {
	var fields []string
	err := s.pool.QueryRow(ctx, `SELECT product_fields FROM users WHERE id = $1`, tenantID).Scan(&fields)
	if errors.Is(err, pgx.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load fields for %s: %w", tenantID, err)
	}
	return fields, nil
}

// SetFields creates the user if needed and replaces their field catalog.
func (s *ProductStore) SetFields(ctx context.Context, tenantID string, fields []string) error {
	if fields == nil {
		fields = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, product_fields) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET product_fields = EXCLUDED.product_fields
	`, tenantID, fields)
	if err != nil {
		return fmt.Errorf("set fields for %s: %w", tenantID, err)
	}
	return nil
}

func (s *ProductStore) FindByQuery(ctx context.Context, tenantID string, q domain.ProductQuery) ([]domain.Record, error) {
	where, args := whereClause(tenantID, q)
	rows, err := s.pool.Query(ctx, `SELECT `+productColumns+` FROM products WHERE `+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		rec, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *ProductStore) Create(ctx context.Context, tenantID string, fields domain.Fields) (domain.Record, error) {
	rec := domain.Apply(domain.BlankProduct(), fields)
	rec[domain.FieldID] = uuid.NewString()
	row, err := domain.RowFromRecord(rec)
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	custom, err := json.Marshal(row.Custom)
	if err != nil {
		return nil, fmt.Errorf("encode custom fields: %w", err)
	}

	created, err := scanProduct(s.pool.QueryRow(ctx, `
		INSERT INTO products (id, owner_id, name, price, stock, description, custom_fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+productColumns,
		row.ID, tenantID, row.Name, row.Price, row.Stock, row.Description, custom,
	))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

// Update overlays fields on the current row inside one transaction.
func (s *ProductStore) Update(ctx context.Context, tenantID, id string, fields domain.Fields) (domain.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, &domain.RecordNotFoundError{ID: id}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	current, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND owner_id = $2 FOR UPDATE`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.RecordNotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("load product %s: %w", id, err)
	}

	row, err := domain.RowFromRecord(domain.Apply(current, fields))
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	custom, err := json.Marshal(row.Custom)
	if err != nil {
		return nil, fmt.Errorf("encode custom fields: %w", err)
	}

	updated, err := scanProduct(tx.QueryRow(ctx, `
		UPDATE products
		SET name = $3, price = $4, stock = $5, description = $6, custom_fields = $7, updated_at = $8
		WHERE id = $1 AND owner_id = $2
		RETURNING `+productColumns,
		id, tenantID, row.Name, row.Price, row.Stock, row.Description, custom, time.Now().UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return updated, nil
}

func (s *ProductStore) Delete(ctx context.Context, tenantID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return &domain.RecordNotFoundError{ID: id}
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1 AND owner_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return &domain.RecordNotFoundError{ID: id}
	}
	return nil
}

func (s *ProductStore) Get(ctx context.Context, tenantID, id string) (domain.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}
	rec, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND owner_id = $2`, id, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return rec, nil
}

// scanProduct reads a product row from any pgx row type. pgx.ErrNoRows is
// returned unwrapped.
func scanProduct(row interface {
	Scan(...any) error
}) (domain.Record, error) {
	var (
		p      domain.ProductRow
		custom []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Description, &custom)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	if len(custom) > 0 {
		if err := json.Unmarshal(custom, &p.Custom); err != nil {
			return nil, fmt.Errorf("decode custom fields of %s: %w", p.ID, err)
		}
	}
	return p.Record(), nil
}
