package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an identity.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusLocked    Status = "LOCKED"
	StatusDeleted   Status = "DELETED"
)

// Role drives authorization decisions.
type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAdmin     Role = "admin"
)

// Provider identifies where an identity's credential is established.
type Provider string

const (
	ProviderLocal    Provider = "local"
	ProviderGoogle   Provider = "google"
	ProviderApple    Provider = "apple"
	ProviderFacebook Provider = "facebook"
)

// Identity is an account known to the user directory.
type Identity struct {
	ID               uuid.UUID
	Email            string
	PasswordHash     *string
	Role             Role
	Status           Status
	IsVerified       bool
	Provider         Provider
	ProviderID       *string
	FailedLoginCount int
	LockedUntil      *time.Time
	LastLogin        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsLockedAt returns true if the identity is locked at the given instant.
// An elapsed lock is treated as no lock.
func (i *Identity) IsLockedAt(now time.Time) bool {
	if i.Status != StatusLocked || i.LockedUntil == nil {
		return false
	}
	return now.Before(*i.LockedUntil)
}

// HasPassword returns true if the identity carries a local credential.
func (i *Identity) HasPassword() bool {
	return i.PasswordHash != nil && *i.PasswordHash != ""
}

// UnlockedStatus is the status an identity returns to when a lock is lifted.
func (i *Identity) UnlockedStatus() Status {
	if i.IsVerified {
		return StatusActive
	}
	return StatusPending
}

// Principal is the authenticated caller attached to a request.
type Principal struct {
	ID    uuid.UUID
	Email string
	Role  Role
}

// HasRole reports whether the principal's role is one of roles.
func (p *Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}
