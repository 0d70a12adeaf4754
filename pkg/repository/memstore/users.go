package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// Users is an in-memory user directory.
type Users struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.Identity
}

// NewUsers creates an empty directory.
func NewUsers() *Users {
	return &Users{users: make(map[uuid.UUID]*domain.Identity)}
}

// Create inserts a new identity.
func (s *Users) Create(_ context.Context, u *domain.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Provider == domain.ProviderLocal && u.Status == domain.StatusActive && !u.HasPassword() {
		return fmt.Errorf("create user %s: active local identity requires a password", u.Email)
	}
	for _, existing := range s.users {
		if existing.Status == domain.StatusDeleted {
			continue
		}
		if strings.EqualFold(existing.Email, u.Email) {
			return fmt.Errorf("create user %s: %w", u.Email, domain.ErrDuplicate)
		}
		if u.ProviderID != nil && existing.ProviderID != nil &&
			existing.Provider == u.Provider && *existing.ProviderID == *u.ProviderID {
			return fmt.Errorf("create user %s: %w", u.Email, domain.ErrDuplicate)
		}
	}
	stored := *u
	s.users[u.ID] = &stored
	return nil
}

// FindByID retrieves a non-deleted identity by ID.
func (s *Users) FindByID(_ context.Context, id uuid.UUID) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || u.Status == domain.StatusDeleted {
		return nil, domain.ErrUserNotFound
	}
	return clone(u), nil
}

// FindByEmail retrieves a non-deleted identity by email, ignoring case.
func (s *Users) FindByEmail(_ context.Context, email string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Status != domain.StatusDeleted && strings.EqualFold(u.Email, email) {
			return clone(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// FindByProviderID retrieves a non-deleted federated identity.
func (s *Users) FindByProviderID(_ context.Context, provider domain.Provider, providerID string) (*domain.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Status == domain.StatusDeleted || u.Provider != provider || u.ProviderID == nil {
			continue
		}
		if *u.ProviderID == providerID {
			return clone(u), nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// IncrementFailedLogin bumps the counter and locks at maxAttempts.
func (s *Users) IncrementFailedLogin(_ context.Context, id uuid.UUID, now time.Time, maxAttempts int, lockoutDuration time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.live(id)
	if err != nil {
		return 0, err
	}

	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		u.FailedLoginCount = 1
	} else {
		u.FailedLoginCount++
	}

	if u.FailedLoginCount >= maxAttempts {
		until := now.Add(lockoutDuration)
		u.LockedUntil = &until
		u.Status = domain.StatusLocked
	} else {
		u.LockedUntil = nil
		if u.Status == domain.StatusLocked {
			u.Status = u.UnlockedStatus()
		}
	}
	u.UpdatedAt = now
	return u.FailedLoginCount, nil
}

// UpdateLastLogin clears lockout state and stamps LastLogin.
func (s *Users) UpdateLastLogin(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.live(id)
	if err != nil {
		return err
	}
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	if u.Status == domain.StatusLocked {
		u.Status = u.UnlockedStatus()
	}
	u.LastLogin = &at
	u.UpdatedAt = at
	return nil
}

// UpdatePassword replaces the credential hash and lifts any lockout.
func (s *Users) UpdatePassword(_ context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.live(id)
	if err != nil {
		return err
	}
	u.PasswordHash = &passwordHash
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	if u.Status == domain.StatusLocked {
		u.Status = u.UnlockedStatus()
	}
	u.UpdatedAt = at
	return nil
}

// UpdateVerification sets the verified flag and activates PENDING identities.
func (s *Users) UpdateVerification(_ context.Context, id uuid.UUID, verified bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.live(id)
	if err != nil {
		return err
	}
	u.IsVerified = verified
	if verified && u.Status == domain.StatusPending {
		u.Status = domain.StatusActive
	}
	u.UpdatedAt = at
	return nil
}

// UpdateStatus sets the lifecycle status.
func (s *Users) UpdateStatus(_ context.Context, id uuid.UUID, status domain.Status, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, err := s.live(id)
	if err != nil {
		return err
	}
	u.Status = status
	u.UpdatedAt = at
	return nil
}

func (s *Users) live(id uuid.UUID) (*domain.Identity, error) {
	u, ok := s.users[id]
	if !ok || u.Status == domain.StatusDeleted {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func clone(u *domain.Identity) *domain.Identity {
	c := *u
	return &c
}
