package middleware

import (
	"net/http"

	"topup-service/internal/api/httpx"
)

// RequireRole allows only requests whose authenticated role matches need.
func RequireRole(need string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := Role(r.Context())
			if !ok {
				httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
				return
			}
			if role != need {
				httpx.WriteError(w, http.StatusForbidden, "forbidden", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
