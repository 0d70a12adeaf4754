package middleware

import (
	"context"
	"net/http"

	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
)

type contextKey string

// PrincipalKey is the context key for the authenticated principal.
const PrincipalKey contextKey = "principal"

// Auth creates middleware that admits requests carrying a valid access token.
// The Authorization header is checked first, then the access token cookie
// used by browser clients. When roles are given the caller must hold one.
func Auth(gate *auth.Gate, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := r.Header.Get("Authorization")
			if authorization == "" {
				if token, ok := httputil.TokenFromCookie(r, httputil.AccessCookie); ok {
					authorization = "Bearer " + token
				}
			}

			principal, err := gate.Authorize(r.Context(), authorization, roles...)
			if err != nil {
				if httputil.StatusFor(err) == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", `Bearer realm="tribe"`)
				}
				httputil.WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), PrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the authenticated principal from the request context.
func GetPrincipal(ctx context.Context) (*domain.Principal, bool) {
	principal, ok := ctx.Value(PrincipalKey).(*domain.Principal)
	return principal, ok
}
