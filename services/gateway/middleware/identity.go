package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/NooberThanYall/fixo-crm/internal/i18n"
)

// UserHeader carries the caller id set by the authenticating proxy.
const UserHeader = "X-User-ID"

type userKey struct{}

// RequireUser rejects requests without a caller id and stores it on the
// request context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserHeader))
		if userID == "" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error": i18n.Sprintf(r.Context(), i18n.MsgMissingUser),
				"code":  "unauthenticated",
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	})
}

// UserFrom returns the caller id stored by RequireUser.
func UserFrom(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}
