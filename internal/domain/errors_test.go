package domain_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"upstream", &domain.UpstreamError{StatusCode: 502}, true},
		{"empty", &domain.EmptyResponseError{}, true},
		{"malformed wrapped", fmt.Errorf("parse: %w", &domain.MalformedResponseError{Err: errors.New("x")}), true},
		{"schema", &domain.SchemaValidationError{}, false},
		{"config", &domain.ConfigurationError{Missing: []string{"api_key"}}, false},
		{"unsupported", &domain.UnsupportedEntityError{Entity: "order"}, false},
		{"cancelled upstream", &domain.UpstreamError{Err: context.Canceled}, false},
		{"client timeout", &domain.UpstreamError{Err: fmt.Errorf("Post %q: %w", "http://model", context.DeadlineExceeded)}, true},
		{"deadline", fmt.Errorf("generate: %w", context.DeadlineExceeded), false},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, domain.IsRetryable(tt.err))
		})
	}
}

func TestFailureKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&domain.ConfigurationError{}, domain.FailureConfiguration},
		{&domain.UpstreamError{StatusCode: 500}, domain.FailureUpstream},
		{&domain.EmptyResponseError{}, domain.FailureEmptyResponse},
		{&domain.MalformedResponseError{Err: errors.New("x")}, domain.FailureMalformedResponse},
		{&domain.SchemaValidationError{}, domain.FailureSchemaValidation},
		{&domain.UnsupportedEntityError{}, domain.FailureUnsupported},
		{&domain.UnsupportedActionError{}, domain.FailureUnsupported},
		{&domain.ExpiredError{Status: domain.StatusPreview}, domain.FailureExpired},
		{&domain.RecordNotFoundError{ID: "x"}, domain.FailureExecution},
		{errors.New("boom"), domain.FailureInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, domain.FailureKindOf(tt.err), "%T", tt.err)
	}
}

func TestSchemaValidationError_ListsEveryField(t *testing.T) {
	err := &domain.SchemaValidationError{Violations: []domain.Violation{
		{Field: "entity", Message: "is required"},
		{Field: "queries.price", Message: "must be a number"},
	}}
	assert.Contains(t, err.Error(), "entity: is required")
	assert.Contains(t, err.Error(), "queries.price: must be a number")
}
