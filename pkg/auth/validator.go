package auth

import (
	"context"
	"log/slog"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// TokenValidator verifies signed tokens and consults the revocation ledger.
type TokenValidator struct {
	signer *Signer
	store  TokenStore
	logger *slog.Logger
}

// NewTokenValidator creates a new token validator.
func NewTokenValidator(signer *Signer, store TokenStore, logger *slog.Logger) *TokenValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &TokenValidator{signer: signer, store: store, logger: logger}
}

// Validate returns the claims of token if it is correctly signed, unexpired,
// of the expected kind and not blacklisted.
func (v *TokenValidator) Validate(ctx context.Context, token string, expected domain.TokenKind) (*domain.Claims, error) {
	claims, err := v.signer.Verify(token)
	if err != nil {
		return nil, err
	}

	if claims.Kind != expected {
		return nil, domain.ErrInvalidToken
	}

	blacklisted, err := v.store.IsBlacklisted(ctx, HashToken(token), expected)
	if err != nil {
		// Fail closed: a revocation we cannot read is treated as present.
		v.logger.ErrorContext(ctx, "blacklist lookup failed", "error", err, "kind", expected)
		return nil, domain.ErrInvalidToken
	}
	if blacklisted {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}
