package domain

import (
	"fmt"
	"time"
)

// Status represents the states a draft can be in.
type Status string

const (
	StatusPending   Status = "pending"
	StatusParsing   Status = "parsing"
	StatusPreview   Status = "preview"
	StatusConfirmed Status = "confirmed"
	StatusQueued    Status = "queued"
	StatusExecuting Status = "executing"
	StatusDone      Status = "done"
	StatusFailed    Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{
	StatusPending, StatusParsing, StatusPreview, StatusConfirmed,
	StatusQueued, StatusExecuting, StatusDone, StatusFailed,
}

// IsTerminal returns true if no further state transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether the lifecycle allows s → to. Failed is
// reachable from every non-terminal status.
func (s Status) CanTransition(to Status) bool {
	if s.IsTerminal() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	switch s {
	case StatusPending:
		return to == StatusParsing
	case StatusParsing:
		return to == StatusPreview
	case StatusPreview:
		return to == StatusConfirmed
	case StatusConfirmed:
		return to == StatusQueued || to == StatusExecuting
	case StatusQueued:
		return to == StatusExecuting
	case StatusExecuting:
		return to == StatusDone
	}
	return false
}

// ConfirmMode selects where a confirmed draft is executed.
type ConfirmMode string

const (
	// ConfirmSync executes within the confirming request.
	ConfirmSync ConfirmMode = "sync"
	// ConfirmAsync queues the draft for the worker service.
	ConfirmAsync ConfirmMode = "async"
)

// Failure kinds recorded on failed drafts.
const (
	FailureConfiguration     = "configuration"
	FailureUpstream          = "upstream"
	FailureEmptyResponse     = "empty_response"
	FailureMalformedResponse = "malformed_response"
	FailureSchemaValidation  = "schema_validation"
	FailureUnsupported       = "unsupported"
	FailureExecution         = "execution"
	FailureExpired           = "expired"
	FailureInternal          = "internal"
)

// TaskDraft is the persisted lifecycle record for one user prompt.
type TaskDraft struct {
	ID          string           `json:"id"`
	UserID      string           `json:"user_id"`
	Prompt      string           `json:"prompt"`
	Status      Status           `json:"status"`
	Parsed      *Envelope        `json:"parsed,omitempty"`
	Preview     *PreviewResult   `json:"preview,omitempty"`
	Result      *ExecutionResult `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
	FailureKind string           `json:"failure_kind,omitempty"`
	Attempts    int              `json:"attempts"`
	ExecutedAt  *time.Time       `json:"executed_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// NewDraft returns a pending draft for prompt.
func NewDraft(id, userID, prompt string, now time.Time) *TaskDraft {
	return &TaskDraft{
		ID:        id,
		UserID:    userID,
		Prompt:    prompt,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the draft to status to, or returns InvalidTransitionError.
func (d *TaskDraft) Advance(to Status, now time.Time) error {
	if !d.Status.CanTransition(to) {
		return &InvalidTransitionError{DraftID: d.ID, From: d.Status, To: to}
	}
	d.Status = to
	d.UpdatedAt = now
	if to == StatusDone {
		t := now
		d.ExecutedAt = &t
	}
	return nil
}

// Fail moves the draft to failed and records the diagnostic.
func (d *TaskDraft) Fail(err error, now time.Time) error {
	if aerr := d.Advance(StatusFailed, now); aerr != nil {
		return aerr
	}
	d.Error = err.Error()
	d.FailureKind = FailureKindOf(err)
	return nil
}

// Task rebuilds the parsed task, if the draft has one.
func (d *TaskDraft) Task() (Task, error) {
	if d.Parsed == nil {
		return nil, fmt.Errorf("draft %s has no parsed task", d.ID)
	}
	return NewTask(*d.Parsed)
}

// PreviewPair is one before/after projection.
type PreviewPair struct {
	Before Record `json:"before"`
	After  Record `json:"after"`
}

// PreviewResult is the read-only projection of a task's effect.
type PreviewResult struct {
	Preview []PreviewPair `json:"preview"`
	Message string        `json:"message,omitempty"`
}

// TargetIDs returns the ids of the records the preview resolved, in order.
func (p *PreviewResult) TargetIDs() []string {
	if p == nil {
		return nil
	}
	ids := make([]string, 0, len(p.Preview))
	for _, pair := range p.Preview {
		if id := pair.Before.ID(); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// ExecutionResult is what the executor reports for a confirmed task.
type ExecutionResult struct {
	Action   Action   `json:"action"`
	Records  []Record `json:"records"`
	Affected int      `json:"affected"`
	Skipped  []string `json:"skipped,omitempty"`
	Message  string   `json:"message,omitempty"`
}
