package auth

import (
	"context"
	"crypto/rand"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// TokenStore is the durable ledger of issued tokens. It is the only writer of
// token records.
type TokenStore interface {
	// Save records an issued token unless (hash, kind) already exists.
	Save(ctx context.Context, rec *domain.TokenRecord) error
	// Find returns the record for (hash, kind) or domain.ErrTokenNotFound.
	Find(ctx context.Context, tokenHash string, kind domain.TokenKind) (*domain.TokenRecord, error)
	// IsBlacklisted reports revocation; unknown tokens are not blacklisted.
	IsBlacklisted(ctx context.Context, tokenHash string, kind domain.TokenKind) (bool, error)
	// Revoke blacklists iff not already blacklisted, as one atomic step.
	// Exactly one concurrent caller observes true.
	Revoke(ctx context.Context, rec *domain.TokenRecord) (bool, error)
	// RevokeAllByOwner blacklists every live token of kinds owned by ownerID.
	RevokeAllByOwner(ctx context.Context, ownerID uuid.UUID, kinds []domain.TokenKind, now time.Time) (int64, error)
	// DeleteExpired removes records with expiresAt < now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// UserDirectory owns identity records.
type UserDirectory interface {
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error)
	FindByProviderID(ctx context.Context, provider domain.Provider, providerID string) (*domain.Identity, error)
	Create(ctx context.Context, identity *domain.Identity) error
	// IncrementFailedLogin is atomic per identity and returns the new count.
	IncrementFailedLogin(ctx context.Context, id uuid.UUID, now time.Time, maxAttempts int, lockoutDuration time.Duration) (int, error)
	// UpdateLastLogin resets the failed-login state and stamps the login time.
	UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error
	UpdateVerification(ctx context.Context, id uuid.UUID, verified bool, at time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, at time.Time) error
}

// Notifier delivers single-use links to users.
type Notifier interface {
	SendVerificationEmail(ctx context.Context, to, token string) error
	SendPasswordResetEmail(ctx context.Context, to, token string) error
}

// Clock is the single time source for every expiry comparison.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// RandomSource is a cryptographically secure byte generator.
type RandomSource = io.Reader

// DefaultRandom is crypto/rand.
var DefaultRandom RandomSource = rand.Reader
