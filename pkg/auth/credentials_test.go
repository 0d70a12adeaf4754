package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/tribe-auth/pkg/domain"
)

func TestCredentialVerifier_Authenticate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "a@x.com", "Str0ng!Pass1")

	got, err := env.verifier.Authenticate(ctx, "  A@X.com ", "Str0ng!Pass1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	require.NotNil(t, got.LastLogin)

	_, err = env.verifier.Authenticate(ctx, "ghost@x.com", "Str0ng!Pass1")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	_, err = env.verifier.Authenticate(ctx, "a@x.com", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Equal(t, 1, env.reload(t, user.ID).FailedLoginCount)
}

func TestCredentialVerifier_Lockout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "a@x.com", "Str0ng!Pass1")

	for i := 1; i <= DefaultMaxFailedAttempts; i++ {
		_, err := env.verifier.Authenticate(ctx, "a@x.com", "wrong")
		require.ErrorIs(t, err, domain.ErrInvalidCredentials, "attempt %d", i)
	}

	locked := env.reload(t, user.ID)
	assert.Equal(t, domain.StatusLocked, locked.Status)
	require.NotNil(t, locked.LockedUntil)
	assert.True(t, locked.LockedUntil.Equal(env.clock.Now().Add(DefaultLockoutDuration)))

	// Even the right password is refused while locked, and nothing is counted.
	_, err := env.verifier.Authenticate(ctx, "a@x.com", "Str0ng!Pass1")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
	assert.Equal(t, DefaultMaxFailedAttempts, env.reload(t, user.ID).FailedLoginCount)

	env.clock.Advance(DefaultLockoutDuration)
	got, err := env.verifier.Authenticate(ctx, "a@x.com", "Str0ng!Pass1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	after := env.reload(t, user.ID)
	assert.Equal(t, domain.StatusActive, after.Status)
	assert.Zero(t, after.FailedLoginCount)
	assert.Nil(t, after.LockedUntil)
}

func TestCredentialVerifier_LapsedLockRestartsCount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "a@x.com", "Str0ng!Pass1")

	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		_, _ = env.verifier.Authenticate(ctx, "a@x.com", "wrong")
	}
	env.clock.Advance(DefaultLockoutDuration + time.Second)

	_, err := env.verifier.Authenticate(ctx, "a@x.com", "wrong")
	require.ErrorIs(t, err, domain.ErrInvalidCredentials)

	after := env.reload(t, user.ID)
	assert.Equal(t, 1, after.FailedLoginCount)
	assert.Equal(t, domain.StatusActive, after.Status)
}

func TestCredentialVerifier_ConcurrentFailures(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "a@x.com", "Str0ng!Pass1")

	// The lock can only be set by the last of these, so every caller compares
	// and every failure is counted exactly once.
	var wg sync.WaitGroup
	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.verifier.Authenticate(ctx, "a@x.com", "wrong")
			assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
		}()
	}
	wg.Wait()

	after := env.reload(t, user.ID)
	assert.Equal(t, DefaultMaxFailedAttempts, after.FailedLoginCount)
	assert.Equal(t, domain.StatusLocked, after.Status)
}

func TestCredentialVerifier_ConcurrentFailuresBeyondThreshold(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "a@x.com", "Str0ng!Pass1")

	const attempts = 3 * DefaultMaxFailedAttempts
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		invalid int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.verifier.Authenticate(ctx, "a@x.com", "wrong")
			switch {
			case errors.Is(err, domain.ErrInvalidCredentials):
				mu.Lock()
				invalid++
				mu.Unlock()
			case errors.Is(err, domain.ErrAccountLocked):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	after := env.reload(t, user.ID)
	assert.Equal(t, domain.StatusLocked, after.Status)
	assert.Equal(t, invalid, after.FailedLoginCount, "one increment per compared password")
	assert.GreaterOrEqual(t, invalid, DefaultMaxFailedAttempts)
}

func TestCredentialVerifier_RefusesWithoutComparison(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	suspended := env.seedUser(t, "s@x.com", "Str0ng!Pass1", func(i *domain.Identity) {
		i.Status = domain.StatusSuspended
	})
	_, err := env.verifier.Authenticate(ctx, "s@x.com", "Str0ng!Pass1")
	assert.ErrorIs(t, err, domain.ErrAccountLocked)
	assert.Zero(t, env.reload(t, suspended.ID).FailedLoginCount)

	federated := env.seedUser(t, "g@x.com", "", func(i *domain.Identity) {
		i.PasswordHash = nil
		i.Provider = domain.ProviderGoogle
		sub := "google-sub"
		i.ProviderID = &sub
	})
	_, err = env.verifier.Authenticate(ctx, "g@x.com", "anything")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.Zero(t, env.reload(t, federated.ID).FailedLoginCount)
}

func TestCredentialVerifier_PendingNotVerified(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "p@x.com", "Str0ng!Pass1", func(i *domain.Identity) {
		i.Status = domain.StatusPending
		i.IsVerified = false
	})

	_, err := env.verifier.Authenticate(context.Background(), "p@x.com", "Str0ng!Pass1")
	assert.ErrorIs(t, err, domain.ErrAccountNotVerified)
}

func TestCredentialVerifier_ArgonHash(t *testing.T) {
	env := newTestEnv(t)
	hash, err := HashPassword("Str0ng!Pass1")
	require.NoError(t, err)
	env.seedUser(t, "a@x.com", "ignored", func(i *domain.Identity) { i.PasswordHash = &hash })

	_, err = env.verifier.Authenticate(context.Background(), "a@x.com", "Str0ng!Pass1")
	require.NoError(t, err)
}
