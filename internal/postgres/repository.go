package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

const draftColumns = `id::text, user_id, prompt, status, parsed, preview, result,
	error, failure_kind, attempts, executed_at, created_at, updated_at`

// DraftRepository implements domain.DraftRepository.
type DraftRepository struct {
	pool *pgxpool.Pool
}

// NewDraftRepository wraps pool.
func NewDraftRepository(pool *pgxpool.Pool) *DraftRepository {
	return &DraftRepository{pool: pool}
}

func (r *DraftRepository) Create(ctx context.Context, d *domain.TaskDraft) error {
	parsed, preview, result, err := encodeDraftJSON(d)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO task_drafts
			(id, user_id, prompt, status, parsed, preview, result,
			 error, failure_kind, attempts, executed_at, created_at, updated_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		d.ID, d.UserID, d.Prompt, string(d.Status), parsed, preview, result,
		d.Error, d.FailureKind, d.Attempts, d.ExecutedAt, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create draft %s: %w", d.ID, err)
	}
	return nil
}

// Update only writes the row while its stored status is still from.
func (r *DraftRepository) Update(ctx context.Context, d *domain.TaskDraft, from domain.Status) error {
	parsed, preview, result, err := encodeDraftJSON(d)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE task_drafts
		SET status = $2, parsed = $3, preview = $4, result = $5, error = $6,
		    failure_kind = $7, attempts = $8, executed_at = $9, updated_at = $10
		WHERE id = $1 AND status = $11
	`,
		d.ID, string(d.Status), parsed, preview, result, d.Error,
		d.FailureKind, d.Attempts, d.ExecutedAt, d.UpdatedAt, string(from),
	)
	if err != nil {
		return fmt.Errorf("update draft %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.conflict(ctx, d.ID, d.Status)
}

// Transition is a compare-and-set: the row only changes when its stored
// status is still from.
func (r *DraftRepository) Transition(ctx context.Context, id string, from, to domain.Status) error {
	if !from.CanTransition(to) {
		return &domain.InvalidTransitionError{DraftID: id, From: from, To: to}
	}
	now := time.Now().UTC()
	var executedAt *time.Time
	if to == domain.StatusDone {
		executedAt = &now
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE task_drafts
		SET status = $3, updated_at = $4, executed_at = COALESCE($5, executed_at)
		WHERE id = $1 AND status = $2
	`, id, string(from), string(to), now, executedAt)
	if err != nil {
		return fmt.Errorf("transition draft %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	return r.conflict(ctx, id, to)
}

// conflict explains why a guarded write matched no row.
func (r *DraftRepository) conflict(ctx context.Context, id string, to domain.Status) error {
	var current string
	err := r.pool.QueryRow(ctx, `SELECT status FROM task_drafts WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.DraftNotFoundError{DraftID: id}
	}
	if err != nil {
		return fmt.Errorf("read draft %s status: %w", id, err)
	}
	return &domain.InvalidTransitionError{DraftID: id, From: domain.Status(current), To: to}
}

func (r *DraftRepository) Get(ctx context.Context, id string) (*domain.TaskDraft, error) {
	d, err := scanDraft(r.pool.QueryRow(ctx, `SELECT `+draftColumns+` FROM task_drafts WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &domain.DraftNotFoundError{DraftID: id}
	}
	return d, err
}

func (r *DraftRepository) ListByUser(ctx context.Context, userID string, limit int) ([]*domain.TaskDraft, error) {
	return r.list(ctx, `
		SELECT `+draftColumns+`
		FROM task_drafts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
}

func (r *DraftRepository) ListStale(ctx context.Context, status domain.Status, cutoff time.Time, limit int) ([]*domain.TaskDraft, error) {
	return r.list(ctx, `
		SELECT `+draftColumns+`
		FROM task_drafts
		WHERE status = $1 AND updated_at < $2
		ORDER BY updated_at
		LIMIT $3
	`, string(status), cutoff, limit)
}

func (r *DraftRepository) list(ctx context.Context, sql string, args ...any) ([]*domain.TaskDraft, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
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

func encodeDraftJSON(d *domain.TaskDraft) (parsed, preview, result []byte, err error) {
	enc := func(name string, v any, isNil bool) ([]byte, error) {
		if isNil {
			return nil, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode draft %s %s: %w", d.ID, name, err)
		}
		return b, nil
	}
	if parsed, err = enc("parsed", d.Parsed, d.Parsed == nil); err != nil {
		return
	}
	if preview, err = enc("preview", d.Preview, d.Preview == nil); err != nil {
		return
	}
	result, err = enc("result", d.Result, d.Result == nil)
	return
}

// scanDraft reads a draft row from any pgx row type. pgx.ErrNoRows is
// returned unwrapped.
func scanDraft(row interface {
	Scan(...any) error
}) (*domain.TaskDraft, error) {
	var (
		d                       domain.TaskDraft
		status                  string
		parsed, preview, result []byte
	)
	err := row.Scan(
		&d.ID, &d.UserID, &d.Prompt, &status, &parsed, &preview, &result,
		&d.Error, &d.FailureKind, &d.Attempts, &d.ExecutedAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	d.Status = domain.Status(status)

	if len(parsed) > 0 {
		d.Parsed = new(domain.Envelope)
		if err := json.Unmarshal(parsed, d.Parsed); err != nil {
			return nil, fmt.Errorf("decode draft %s parsed: %w", d.ID, err)
		}
	}
	if len(preview) > 0 {
		d.Preview = new(domain.PreviewResult)
		if err := json.Unmarshal(preview, d.Preview); err != nil {
			return nil, fmt.Errorf("decode draft %s preview: %w", d.ID, err)
		}
	}
	if len(result) > 0 {
		d.Result = new(domain.ExecutionResult)
		if err := json.Unmarshal(result, d.Result); err != nil {
			return nil, fmt.Errorf("decode draft %s result: %w", d.ID, err)
		}
	}
	return &d, nil
}
