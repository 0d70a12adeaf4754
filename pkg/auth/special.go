package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// SpecialTokens issues and consumes opaque single-use tokens for email
// verification and password reset.
type SpecialTokens struct {
	store  TokenStore
	random RandomSource
	clock  Clock
}

// NewSpecialTokens creates a new single-use token manager.
func NewSpecialTokens(store TokenStore, random RandomSource, clock Clock) *SpecialTokens {
	if random == nil {
		random = DefaultRandom
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &SpecialTokens{store: store, random: random, clock: clock}
}

// Issue creates a token of kind for ownerID valid for ttl. Outstanding tokens
// of the same kind for the owner are revoked first, so only the newest link
// works.
func (s *SpecialTokens) Issue(ctx context.Context, ownerID uuid.UUID, kind domain.TokenKind, ttl time.Duration) (string, error) {
	if kind.IsSigned() {
		return "", fmt.Errorf("%s is not a single-use token kind", kind)
	}
	if ttl <= 0 {
		return "", errors.New("token ttl must be positive")
	}

	now := s.clock.Now()
	if _, err := s.store.RevokeAllByOwner(ctx, ownerID, []domain.TokenKind{kind}, now); err != nil {
		return "", fmt.Errorf("revoke outstanding %s tokens: %w", kind, err)
	}

	token, err := GenerateToken(s.random, opaqueTokenLen)
	if err != nil {
		return "", err
	}

	if err := s.store.Save(ctx, newRecord(ownerID, token, kind, now.Add(ttl), now)); err != nil {
		return "", fmt.Errorf("save %s token: %w", kind, err)
	}
	return token, nil
}

// Consume redeems token exactly once and returns its owner. Of several
// concurrent callers presenting the same token, only one succeeds.
func (s *SpecialTokens) Consume(ctx context.Context, token string, kind domain.TokenKind) (uuid.UUID, error) {
	if token == "" {
		return uuid.Nil, domain.ErrInvalidToken
	}

	rec, err := s.store.Find(ctx, HashToken(token), kind)
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			return uuid.Nil, domain.ErrInvalidToken
		}
		return uuid.Nil, fmt.Errorf("find %s token: %w", kind, err)
	}

	if rec.Blacklisted {
		return uuid.Nil, domain.ErrInvalidToken
	}
	if rec.IsExpiredAt(s.clock.Now()) {
		return uuid.Nil, domain.ErrTokenExpired
	}

	won, err := s.store.Revoke(ctx, rec)
	if err != nil {
		return uuid.Nil, fmt.Errorf("revoke %s token: %w", kind, err)
	}
	if !won {
		return uuid.Nil, domain.ErrInvalidToken
	}
	return rec.OwnerID, nil
}
