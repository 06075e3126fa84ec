package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/NooberThanYall/fixo-crm/services/gateway/middleware"
)

// maxBody bounds request bodies; prompts are capped far below this.
const maxBody = 1 << 20

// NewRouter returns the gateway's HTTP handler with the middleware stack
// applied.
func NewRouter(h *REST, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.MaxBodySize(maxBody))
	r.Use(middleware.Localize)
	h.Routes(r)
	return r
}
