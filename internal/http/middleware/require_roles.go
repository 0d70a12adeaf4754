package middleware

import (
	"net/http"

	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// RequireRoles creates middleware that admits only principals holding one of
// roles. Must be used after Auth.
func RequireRoles(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := GetPrincipal(r.Context())
			if !ok {
				httputil.WriteError(w, domain.ErrInvalidToken)
				return
			}
			if !principal.HasRole(roles...) {
				httputil.WriteError(w, domain.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
