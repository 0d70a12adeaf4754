package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/tribe-auth/pkg/domain"
)

const (
	// DefaultMaxFailedAttempts is the failed-login count that triggers a lock.
	DefaultMaxFailedAttempts = 5
	// DefaultLockoutDuration is how long a triggered lock lasts.
	DefaultLockoutDuration = 15 * time.Minute
)

// LockoutConfig holds the failed-login policy.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockoutDuration   time.Duration
}

// CredentialVerifier checks passwords and owns the lockout policy.
type CredentialVerifier struct {
	config LockoutConfig
	users  UserDirectory
	clock  Clock
	logger *slog.Logger
}

// NewCredentialVerifier creates a new credential verifier.
func NewCredentialVerifier(config LockoutConfig, users UserDirectory, clock Clock, logger *slog.Logger) *CredentialVerifier {
	if config.MaxFailedAttempts <= 0 {
		config.MaxFailedAttempts = DefaultMaxFailedAttempts
	}
	if config.LockoutDuration <= 0 {
		config.LockoutDuration = DefaultLockoutDuration
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialVerifier{config: config, users: users, clock: clock, logger: logger}
}

// Authenticate verifies email and password and returns the identity on success.
//
// A locked or suspended identity is refused before any password comparison.
// A wrong password always yields domain.ErrInvalidCredentials, even when it is
// the attempt that triggers the lock; only the next attempt reports
// domain.ErrAccountLocked.
func (v *CredentialVerifier) Authenticate(ctx context.Context, email, password string) (*domain.Identity, error) {
	identity, err := v.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			VerifyPassword(password, dummyHash)
			return nil, domain.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	now := v.clock.Now()

	if identity.Status == domain.StatusSuspended || identity.IsLockedAt(now) {
		return nil, domain.ErrAccountLocked
	}

	if !identity.HasPassword() {
		VerifyPassword(password, dummyHash)
		return nil, domain.ErrInvalidCredentials
	}

	if !VerifyPassword(password, *identity.PasswordHash) {
		count, err := v.users.IncrementFailedLogin(ctx, identity.ID, now, v.config.MaxFailedAttempts, v.config.LockoutDuration)
		if err != nil {
			return nil, fmt.Errorf("record failed login: %w", err)
		}
		if count >= v.config.MaxFailedAttempts {
			v.logger.WarnContext(ctx, "account locked after failed logins",
				"user_id", identity.ID,
				"failed_attempts", count,
				"locked_for", v.config.LockoutDuration,
			)
		}
		return nil, domain.ErrInvalidCredentials
	}

	if err := v.users.UpdateLastLogin(ctx, identity.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	identity.FailedLoginCount = 0
	identity.LockedUntil = nil
	identity.LastLogin = &now
	if identity.Status == domain.StatusLocked {
		identity.Status = identity.UnlockedStatus()
	}

	if identity.Status == domain.StatusPending && !identity.IsVerified {
		return nil, domain.ErrAccountNotVerified
	}

	return identity, nil
}
