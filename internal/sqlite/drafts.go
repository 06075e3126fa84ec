package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

const draftColumns = `id, user_id, prompt, status, parsed, preview, result,
	error, failure_kind, attempts, executed_at, created_at, updated_at`

// Drafts implements domain.DraftRepository.
type Drafts struct {
	db *sql.DB
}

func (r *Drafts) Create(ctx context.Context, d *domain.TaskDraft) error {
	cols, err := encodeDraft(d)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO task_drafts
			(id, user_id, prompt, status, parsed, preview, result,
			 error, failure_kind, attempts, executed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, d.UserID, d.Prompt, string(d.Status), cols.parsed, cols.preview, cols.result,
		d.Error, d.FailureKind, d.Attempts, cols.executedAt, formatTime(d.CreatedAt), formatTime(d.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create draft %s: %w", d.ID, err)
	}
	return nil
}

// Update only writes the row while its stored status is still from.
func (r *Drafts) Update(ctx context.Context, d *domain.TaskDraft, from domain.Status) error {
	cols, err := encodeDraft(d)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_drafts
		SET status = ?, parsed = ?, preview = ?, result = ?, error = ?,
		    failure_kind = ?, attempts = ?, executed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`,
		string(d.Status), cols.parsed, cols.preview, cols.result, d.Error,
		d.FailureKind, d.Attempts, cols.executedAt, formatTime(d.UpdatedAt), d.ID, string(from),
	)
	if err != nil {
		return fmt.Errorf("update draft %s: %w", d.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return r.conflict(ctx, d.ID, d.Status)
}

// Transition is a compare-and-set on the stored status.
func (r *Drafts) Transition(ctx context.Context, id string, from, to domain.Status) error {
	if !from.CanTransition(to) {
		return &domain.InvalidTransitionError{DraftID: id, From: from, To: to}
	}
	now := formatTime(time.Now())
	var executedAt sql.NullString
	if to == domain.StatusDone {
		executedAt = sql.NullString{String: now, Valid: true}
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE task_drafts
		SET status = ?, updated_at = ?, executed_at = COALESCE(?, executed_at)
		WHERE id = ? AND status = ?
	`, string(to), now, executedAt, id, string(from))
	if err != nil {
		return fmt.Errorf("transition draft %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 1 {
		return nil
	}
	return r.conflict(ctx, id, to)
}

// conflict explains why a guarded write matched no row.
func (r *Drafts) conflict(ctx context.Context, id string, to domain.Status) error {
	var current string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM task_drafts WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.DraftNotFoundError{DraftID: id}
	}
	if err != nil {
		return fmt.Errorf("read draft %s status: %w", id, err)
	}
	return &domain.InvalidTransitionError{DraftID: id, From: domain.Status(current), To: to}
}

func (r *Drafts) Get(ctx context.Context, id string) (*domain.TaskDraft, error) {
	d, err := scanDraft(r.db.QueryRowContext(ctx, `SELECT `+draftColumns+` FROM task_drafts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.DraftNotFoundError{DraftID: id}
	}
	return d, err
}

func (r *Drafts) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.TaskDraft, error) {
	return r.list(ctx, `
		SELECT `+draftColumns+`
		FROM task_drafts
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, userID, limit)
}

func (r *Drafts) ListStale(ctx context.Context, status domain.Status, cutoff time.Time, limit int) ([]*domain.TaskDraft, error) {
	return r.list(ctx, `
		SELECT `+draftColumns+`
		FROM task_drafts
		WHERE status = ? AND updated_at < ?
		ORDER BY updated_at
		LIMIT ?
	`, string(status), formatTime(cutoff), limit)
}

func (r *Drafts) list(ctx context.Context, query string, args ...any) ([]*domain.TaskDraft, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	var drafts []*domain.TaskDraft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	return drafts, rows.Err()
}

type draftColumnsOut struct {
	parsed, preview, result sql.NullString
	executedAt              sql.NullString
}

func encodeDraft(d *domain.TaskDraft) (draftColumnsOut, error) {
	var out draftColumnsOut
	enc := func(name string, v any) (sql.NullString, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return sql.NullString{}, fmt.Errorf("encode draft %s %s: %w", d.ID, name, err)
		}
		return sql.NullString{String: string(b), Valid: true}, nil
	}
	var err error
	if d.Parsed != nil {
		if out.parsed, err = enc("parsed", d.Parsed); err != nil {
			return out, err
		}
	}
	if d.Preview != nil {
		if out.preview, err = enc("preview", d.Preview); err != nil {
			return out, err
		}
	}
	if d.Result != nil {
		if out.result, err = enc("result", d.Result); err != nil {
			return out, err
		}
	}
	if d.ExecutedAt != nil {
		out.executedAt = sql.NullString{String: formatTime(*d.ExecutedAt), Valid: true}
	}
	return out, nil
}

// scanDraft reads a draft row. sql.ErrNoRows is returned unwrapped.
func scanDraft(row interface {
	Scan(...any) error
}) (*domain.TaskDraft, error) {
	var (
		d                       domain.TaskDraft
		status                  string
		parsed, preview, result sql.NullString
		executedAt              sql.NullString
		createdAt, updatedAt    string
	)
	err := row.Scan(
		&d.ID, &d.UserID, &d.Prompt, &status, &parsed, &preview, &result,
		&d.Error, &d.FailureKind, &d.Attempts, &executedAt, &createdAt, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	d.Status = domain.Status(status)

	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("decode draft %s created_at: %w", d.ID, err)
	}
	if d.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("decode draft %s updated_at: %w", d.ID, err)
	}
	if executedAt.Valid {
		t, err := parseTime(executedAt.String)
		if err != nil {
			return nil, fmt.Errorf("decode draft %s executed_at: %w", d.ID, err)
		}
		d.ExecutedAt = &t
	}
	if parsed.Valid {
		d.Parsed = new(domain.Envelope)
		if err := json.Unmarshal([]byte(parsed.String), d.Parsed); err != nil {
			return nil, fmt.Errorf("decode draft %s parsed: %w", d.ID, err)
		}
	}
	if preview.Valid {
		d.Preview = new(domain.PreviewResult)
		if err := json.Unmarshal([]byte(preview.String), d.Preview); err != nil {
			return nil, fmt.Errorf("decode draft %s preview: %w", d.ID, err)
		}
	}
	if result.Valid {
		d.Result = new(domain.ExecutionResult)
		if err := json.Unmarshal([]byte(result.String), d.Result); err != nil {
			return nil, fmt.Errorf("decode draft %s result: %w", d.ID, err)
		}
	}
	return &d, nil
}
