package middleware

import (
	"context"
	"net/http"
	"strings"

	"topup-service/internal/api/httpx"
	"topup-service/internal/auth"
)

type ctxKey string

const (
	ctxAccountIDKey ctxKey = "account_id"
	ctxRoleKey      ctxKey = "role"
)

func AccountID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxAccountIDKey).(string)
	return v, ok
}

func Role(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxRoleKey).(string)
	return v, ok
}

type AuthMiddleware struct {
	tm *auth.TokenManager
}

func NewAuthMiddleware(tm *auth.TokenManager) *AuthMiddleware {
	return &AuthMiddleware{tm: tm}
}

// Auth requires a Bearer access token and puts account id and role on the context.
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ah := r.Header.Get("Authorization")
		if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token", nil)
			return
		}
		token := strings.TrimSpace(ah[len("Bearer "):])

		claims, isRefresh, err := m.tm.ParseAny(token)
		if err != nil || isRefresh {
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "invalid access token", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ctxAccountIDKey, claims.AccountID)
		ctx = context.WithValue(ctx, ctxRoleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
