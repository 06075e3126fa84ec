package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/NooberThanYall/fixo-crm/pkg/telemetry"
)

// Metrics counts requests by route pattern and status code. Unmatched
// paths share one label so scanners cannot blow up cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		telemetry.HTTPRequestsTotal.WithLabelValues(route, strconv.Itoa(rw.status)).Inc()
	})
}
