package middleware

import (
	"context"
	"net/http"
	"strings"

	apiContext "leadrelay/internal/api/context"
	"leadrelay/internal/pkg/errors"
	"leadrelay/internal/platform/auth"
)

const APIKeyHeader = "X-API-Key"

// AuthMiddleware accepts either a bearer token or an API key. With neither
// mechanism configured every request passes.
type AuthMiddleware struct {
	tokenSvc *auth.TokenService
	keys     *auth.APIKeyVerifier
}

func NewAuthMiddleware(tokenSvc *auth.TokenService, keys *auth.APIKeyVerifier) *AuthMiddleware {
	return &AuthMiddleware{tokenSvc: tokenSvc, keys: keys}
}

func (m *AuthMiddleware) Enabled() bool {
	return m.tokenSvc.Enabled() || m.keys.Enabled()
}

func (m *AuthMiddleware) Handle(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !m.Enabled() {
			next(w, r)
			return
		}

		if key := r.Header.Get(APIKeyHeader); key != "" && m.keys.Enabled() {
			if !m.keys.Verify(key) {
				errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid API key", nil)
				return
			}
			next(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !m.tokenSvc.Enabled() {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Missing authorization header", nil)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid authorization header format", nil)
			return
		}

		claims, err := m.tokenSvc.ValidateToken(parts[1])
		if err != nil {
			errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid or expired token", nil)
			return
		}

		ctx := context.WithValue(r.Context(), apiContext.Claims, claims)
		next(w, r.WithContext(ctx))
	}
}
