package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ConfigurationError is returned when the model client has no credential
// or endpoint. No request is attempted.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("model client not configured: missing %s", strings.Join(e.Missing, ", "))
}

// UpstreamError is a transport failure or non-2xx answer from the model
// endpoint.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	switch {
	case e.Err != nil && e.StatusCode == 0:
		return fmt.Sprintf("model endpoint unreachable: %v", e.Err)
	case e.Body != "":
		return fmt.Sprintf("model endpoint returned status %d: %s", e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("model endpoint returned status %d", e.StatusCode)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// EmptyResponseError is returned when the model answered without content.
type EmptyResponseError struct {
	Model string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("model %q returned an empty answer", e.Model)
}

// MalformedResponseError is returned when the model answer is not valid JSON.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("model returned invalid JSON: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// Violation names one field that failed schema validation.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// SchemaValidationError is a well-formed answer that is not a valid task.
type SchemaValidationError struct {
	Violations []Violation
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.Field + ": " + v.Message
	}
	return "invalid task format: " + strings.Join(parts, "; ")
}

// UnsupportedEntityError is returned for any entity other than product.
type UnsupportedEntityError struct {
	Entity string
}

func (e *UnsupportedEntityError) Error() string {
	return fmt.Sprintf("unsupported entity %q", e.Entity)
}

// UnsupportedActionError is returned for an action the entity cannot perform.
type UnsupportedActionError struct {
	Entity string
	Action string
}

func (e *UnsupportedActionError) Error() string {
	return fmt.Sprintf("unsupported action %q for entity %q", e.Action, e.Entity)
}

// RecordNotFoundError is returned by stores when an id does not exist in scope.
type RecordNotFoundError struct {
	ID string
}

func (e *RecordNotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s", e.ID)
}

// DraftNotFoundError is returned when a draft ID does not exist for the caller.
type DraftNotFoundError struct {
	DraftID string
}

func (e *DraftNotFoundError) Error() string {
	return fmt.Sprintf("draft not found: %s", e.DraftID)
}

// InvalidTransitionError is returned when a draft cannot move between two
// statuses, including a second confirmation of the same draft.
type InvalidTransitionError struct {
	DraftID string
	From    Status
	To      Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("draft %s cannot move from %s to %s", e.DraftID, e.From, e.To)
}

// RateLimitExceededError is returned when a user submits too many prompts.
type RateLimitExceededError struct {
	UserID string
	Limit  int
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("rate limit exceeded for user %q: limit is %d", e.UserID, e.Limit)
}

// InvalidPromptError is returned for blank or oversized prompts.
type InvalidPromptError struct {
	Reason string
}

func (e *InvalidPromptError) Error() string {
	return "invalid prompt: " + e.Reason
}

// ExpiredError is recorded on drafts the janitor gave up on.
type ExpiredError struct {
	Status Status
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("draft expired while %s", e.Status)
}

// IsRetryable reports whether restarting from the model call may help.
// An UpstreamError is retryable even when it wraps a deadline: that is the
// per-request client timeout. The caller's own deadline is enforced by
// retry.Do, which stops once its context is done.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var (
		upstream  *UpstreamError
		empty     *EmptyResponseError
		malformed *MalformedResponseError
	)
	if errors.As(err, &upstream) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return errors.As(err, &empty) || errors.As(err, &malformed)
}

// FailureKindOf maps an error onto the failure kind stored on a draft.
func FailureKindOf(err error) string {
	var (
		cfg       *ConfigurationError
		upstream  *UpstreamError
		empty     *EmptyResponseError
		malformed *MalformedResponseError
		schema    *SchemaValidationError
		entity    *UnsupportedEntityError
		action    *UnsupportedActionError
		expired   *ExpiredError
		notFound  *RecordNotFoundError
	)
	switch {
	case errors.As(err, &cfg):
		return FailureConfiguration
	case errors.As(err, &upstream):
		return FailureUpstream
	case errors.As(err, &empty):
		return FailureEmptyResponse
	case errors.As(err, &malformed):
		return FailureMalformedResponse
	case errors.As(err, &schema):
		return FailureSchemaValidation
	case errors.As(err, &entity), errors.As(err, &action):
		return FailureUnsupported
	case errors.As(err, &expired):
		return FailureExpired
	case errors.As(err, &notFound):
		return FailureExecution
	default:
		return FailureInternal
	}
}
