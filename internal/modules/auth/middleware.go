package auth

import (
	"net/http"
	"strings"

	"github.com/georgemunganga/storefront-backend/internal/pkg/apperr"
	"github.com/georgemunganga/storefront-backend/internal/pkg/httpx"
)

// Authenticate rejects requests without a valid bearer token and stores the
// caller's Principal in the request context.
func Authenticate(issuer *Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				httpx.WriteError(w, r, apperr.Unauthorized("missing bearer token"))
				return
			}
			p, err := issuer.Parse(token)
			if err != nil {
				httpx.WriteError(w, r, apperr.Unauthorized("invalid token"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// RequireRole lets through only principals holding role.
func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := FromContext(r.Context())
			if !ok {
				httpx.WriteError(w, r, apperr.Unauthorized("not authenticated"))
				return
			}
			if p.Role != role {
				httpx.WriteError(w, r, apperr.Forbidden("requires "+role+" role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
