package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

const productColumns = `id, name, price, stock, description, custom_fields`

// Products implements domain.RecordStore and domain.FieldCatalog.
type Products struct {
	db *sql.DB
}

// Fields returns the user's custom product fields. Unknown users have none.
func (s *Products) Fields(ctx context.Context, tenantID string) ([]string, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT product_fields FROM users WHERE id = ?`, tenantID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load fields for %s: %w", tenantID, err)
	}
	fields := []string{}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("decode fields for %s: %w", tenantID, err)
	}
	return fields, nil
}

// SetFields creates the user if needed and replaces their field catalog.
func (s *Products) SetFields(ctx context.Context, tenantID string, fields []string) error {
	if fields == nil {
		fields = []string{}
	}
	raw, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, product_fields) VALUES (?, ?)
		ON CONFLICT (id) DO UPDATE SET product_fields = excluded.product_fields
	`, tenantID, string(raw))
	if err != nil {
		return fmt.Errorf("set fields for %s: %w", tenantID, err)
	}
	return nil
}

func (s *Products) FindByQuery(ctx context.Context, tenantID string, q domain.ProductQuery) ([]domain.Record, error) {
	where, args := whereClause(tenantID, q)
	rows, err := s.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE `+where+` ORDER BY rowid`, args...)
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

func (s *Products) Create(ctx context.Context, tenantID string, fields domain.Fields) (domain.Record, error) {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO products (id, owner_id, name, price, stock, description, custom_fields)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, row.ID, tenantID, row.Name, row.Price, row.Stock, row.Description, string(custom))
	if err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return row.Record(), nil
}

// Update overlays fields on the current row. The single connection makes
// the read and the write one critical section.
func (s *Products) Update(ctx context.Context, tenantID, id string, fields domain.Fields) (domain.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	current, err := scanProduct(tx.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND owner_id = ?`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
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
	_, err = tx.ExecContext(ctx, `
		UPDATE products
		SET name = ?, price = ?, stock = ?, description = ?, custom_fields = ?
		WHERE id = ? AND owner_id = ?
	`, row.Name, row.Price, row.Stock, row.Description, string(custom), id, tenantID)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return row.Record(), nil
}

func (s *Products) Delete(ctx context.Context, tenantID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ? AND owner_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &domain.RecordNotFoundError{ID: id}
	}
	return nil
}

func (s *Products) Get(ctx context.Context, tenantID, id string) (domain.Record, error) {
	rec, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ? AND owner_id = ?`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return rec, nil
}

// scanProduct reads a product row. sql.ErrNoRows is returned unwrapped.
func scanProduct(row interface {
	Scan(...any) error
}) (domain.Record, error) {
	var (
		p      domain.ProductRow
		custom string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.Description, &custom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan product: %w", err)
	}
	if custom != "" {
		if err := json.Unmarshal([]byte(custom), &p.Custom); err != nil {
			return nil, fmt.Errorf("decode custom fields of %s: %w", p.ID, err)
		}
	}
	return p.Record(), nil
}

// stringify renders a filter value the way it reads back from JSON text.
func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
