package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/NooberThanYall/fixo-crm/internal/domain"
	"github.com/NooberThanYall/fixo-crm/internal/i18n"
	"github.com/NooberThanYall/fixo-crm/services/gateway/middleware"
)

// DraftService is the slice of the pipeline the REST surface drives.
type DraftService interface {
	SubmitPrompt(ctx context.Context, userID, text string) (*domain.TaskDraft, error)
	GetDraft(ctx context.Context, userID, draftID string) (*domain.TaskDraft, error)
	ListDrafts(ctx context.Context, userID string, limit int) ([]*domain.TaskDraft, error)
	ConfirmDraft(ctx context.Context, userID, draftID string, mode domain.ConfirmMode) (*domain.TaskDraft, error)
}

// REST handles HTTP requests for the gateway.
type REST struct {
	svc    DraftService
	ready  func(ctx context.Context) error
	async  bool
	logger *slog.Logger
}

// NewREST creates a new REST handler. ready backs /readyz; async reports
// whether confirmations may be queued for the worker.
func NewREST(svc DraftService, ready func(ctx context.Context) error, async bool, logger *slog.Logger) *REST {
	return &REST{svc: svc, ready: ready, async: async, logger: logger}
}

// Routes mounts the API under r.
func (h *REST) Routes(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser)
		r.Post("/drafts", h.SubmitDraft)
		r.Get("/drafts", h.ListDrafts)
		r.Get("/drafts/{id}", h.GetDraft)
		r.Post("/drafts/{id}/confirm", h.ConfirmDraft)
	})
}

// SubmitDraftRequest is the JSON body for POST /api/v1/drafts.
type SubmitDraftRequest struct {
	Prompt string `json:"prompt"`
}

// ConfirmDraftRequest is the optional JSON body for POST /api/v1/drafts/{id}/confirm.
type ConfirmDraftRequest struct {
	Mode domain.ConfirmMode `json:"mode"`
}

// DraftResponse is a draft as the API returns it. Message is localized
// for the caller.
type DraftResponse struct {
	ID          string                  `json:"id"`
	Status      domain.Status           `json:"status"`
	Prompt      string                  `json:"prompt"`
	Task        *domain.Envelope        `json:"task,omitempty"`
	Preview     *domain.PreviewResult   `json:"preview,omitempty"`
	Result      *domain.ExecutionResult `json:"result,omitempty"`
	FailureKind string                  `json:"failure_kind,omitempty"`
	Error       string                  `json:"error,omitempty"`
	Message     string                  `json:"message,omitempty"`
	Attempts    int                     `json:"attempts"`
	CreatedAt   time.Time               `json:"created_at"`
	UpdatedAt   time.Time               `json:"updated_at"`
	ExecutedAt  *time.Time              `json:"executed_at,omitempty"`
}

// ListDraftsResponse is the GET /api/v1/drafts response body.
type ListDraftsResponse struct {
	Drafts []DraftResponse `json:"drafts"`
}

// SubmitDraft handles POST /api/v1/drafts.
func (h *REST) SubmitDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("gateway").Start(r.Context(), "gateway.submit_draft")
	defer span.End()
	userID := middleware.UserFrom(ctx)

	var req SubmitDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_body", i18n.MsgInvalidBody)
		return
	}

	d, err := h.svc.SubmitPrompt(ctx, userID, req.Prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submit failed")
		h.handleError(ctx, w, err)
		return
	}
	span.SetAttributes(attribute.String("draft.id", d.ID), attribute.String("draft.status", string(d.Status)))

	code := http.StatusCreated
	if d.Status == domain.StatusFailed {
		code = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, code, toResponse(ctx, d))
}

// ListDrafts handles GET /api/v1/drafts.
func (h *REST) ListDrafts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	drafts, err := h.svc.ListDrafts(ctx, middleware.UserFrom(ctx), limit)
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	resp := ListDraftsResponse{Drafts: make([]DraftResponse, 0, len(drafts))}
	for _, d := range drafts {
		resp.Drafts = append(resp.Drafts, toResponse(ctx, d))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

// GetDraft handles GET /api/v1/drafts/{id}.
func (h *REST) GetDraft(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.svc.GetDraft(ctx, middleware.UserFrom(ctx), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toResponse(ctx, d))
}

// ConfirmDraft handles POST /api/v1/drafts/{id}/confirm. An empty body
// confirms synchronously.
func (h *REST) ConfirmDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("gateway").Start(r.Context(), "gateway.confirm_draft")
	defer span.End()
	draftID := chi.URLParam(r, "id")
	span.SetAttributes(attribute.String("draft.id", draftID))

	var req ConfirmDraftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_body", i18n.MsgInvalidBody)
		return
	}
	switch req.Mode {
	case "", domain.ConfirmSync:
		req.Mode = domain.ConfirmSync
	case domain.ConfirmAsync:
		if !h.async {
			h.writeError(ctx, w, http.StatusBadRequest, "async_disabled", i18n.MsgInvalidBody)
			return
		}
	default:
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_mode", i18n.MsgInvalidBody)
		return
	}

	d, err := h.svc.ConfirmDraft(ctx, middleware.UserFrom(ctx), draftID, req.Mode)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirm failed")
	}
	if d == nil {
		h.handleError(ctx, w, err)
		return
	}

	switch d.Status {
	case domain.StatusDone:
		h.writeJSON(w, http.StatusOK, toResponse(ctx, d))
	case domain.StatusQueued:
		h.writeJSON(w, http.StatusAccepted, toResponse(ctx, d))
	case domain.StatusFailed:
		h.writeJSON(w, http.StatusUnprocessableEntity, toResponse(ctx, d))
	default:
		h.handleError(ctx, w, err)
	}
}

// Healthz handles GET /healthz.
func (h *REST) Healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz handles GET /readyz and checks the store is reachable.
func (h *REST) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			h.logger.Warn("readiness check failed", slog.String("error", err.Error()))
			h.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleError maps pipeline errors onto statuses and localized bodies.
func (h *REST) handleError(ctx context.Context, w http.ResponseWriter, err error) {
	var (
		invalid    *domain.InvalidPromptError
		limited    *domain.RateLimitExceededError
		notFound   *domain.DraftNotFoundError
		transition *domain.InvalidTransitionError
	)
	switch {
	case errors.As(err, &invalid):
		h.writeError(ctx, w, http.StatusBadRequest, "invalid_prompt", i18n.MsgInvalidPrompt)
	case errors.As(err, &limited):
		w.Header().Set("Retry-After", "60")
		h.writeError(ctx, w, http.StatusTooManyRequests, "rate_limited", i18n.MsgRateLimited)
	case errors.As(err, &notFound):
		h.writeError(ctx, w, http.StatusNotFound, "not_found", i18n.MsgDraftNotFound)
	case errors.As(err, &transition):
		h.writeError(ctx, w, http.StatusConflict, "not_confirmable", i18n.MsgNotConfirmable)
	default:
		errText := "<nil>"
		if err != nil {
			errText = err.Error()
		}
		h.logger.Error("request failed", slog.String("error", errText))
		h.writeError(ctx, w, http.StatusInternalServerError, "internal", i18n.MsgInternal)
	}
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (h *REST) writeError(ctx context.Context, w http.ResponseWriter, status int, code, key string) {
	h.writeJSON(w, status, ErrorResponse{Error: i18n.Sprintf(ctx, key), Code: code})
}

func (h *REST) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("write response", slog.String("error", err.Error()))
	}
}

func toResponse(ctx context.Context, d *domain.TaskDraft) DraftResponse {
	resp := DraftResponse{
		ID:          d.ID,
		Status:      d.Status,
		Prompt:      d.Prompt,
		Task:        d.Parsed,
		Preview:     d.Preview,
		Result:      d.Result,
		FailureKind: d.FailureKind,
		Error:       d.Error,
		Attempts:    d.Attempts,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		ExecutedAt:  d.ExecutedAt,
	}
	switch {
	case d.Status == domain.StatusFailed:
		resp.Message = i18n.Sprintf(ctx, failureMessage(d.FailureKind))
	case d.Result != nil:
		resp.Message = d.Result.Message
	case d.Preview != nil:
		resp.Message = d.Preview.Message
	}
	return resp
}

func failureMessage(kind string) string {
	switch kind {
	case domain.FailureConfiguration:
		return i18n.MsgNotConfigured
	case domain.FailureUpstream:
		return i18n.MsgUpstream
	case domain.FailureEmptyResponse:
		return i18n.MsgEmptyResponse
	case domain.FailureMalformedResponse:
		return i18n.MsgMalformed
	case domain.FailureSchemaValidation:
		return i18n.MsgInvalidTask
	case domain.FailureUnsupported:
		return i18n.MsgUnsupported
	case domain.FailureExecution:
		return i18n.MsgExecution
	case domain.FailureExpired:
		return i18n.MsgExpired
	default:
		return i18n.MsgInternal
	}
}
