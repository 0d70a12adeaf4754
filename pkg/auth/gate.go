package auth

import (
	"context"
	"strings"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// AccessTokenValidator validates a presented token of the expected kind.
type AccessTokenValidator interface {
	ValidateToken(ctx context.Context, token string, expected domain.TokenKind) (*domain.Claims, error)
}

// Gate authorizes requests carrying a bearer access token.
type Gate struct {
	validator AccessTokenValidator
}

// NewGate creates a new authorization gate.
func NewGate(validator AccessTokenValidator) *Gate {
	return &Gate{validator: validator}
}

// Authorize extracts the bearer token from an Authorization header value,
// validates it as an access token and checks the caller's role against
// allowed. An empty allowed set admits every authenticated caller.
func (g *Gate) Authorize(ctx context.Context, authorization string, allowed ...domain.Role) (*domain.Principal, error) {
	token, ok := BearerToken(authorization)
	if !ok {
		return nil, domain.ErrInvalidToken
	}

	claims, err := g.validator.ValidateToken(ctx, token, domain.TokenKindAccess)
	if err != nil {
		return nil, err
	}

	principal := claims.Principal()
	if len(allowed) > 0 && !principal.HasRole(allowed...) {
		return nil, domain.ErrForbidden
	}
	return principal, nil
}

// BearerToken returns the token of a "Bearer <token>" header value.
func BearerToken(authorization string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(authorization), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}
