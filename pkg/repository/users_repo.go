package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

const identityColumns = `
	id, email, password_hash, role, status, is_verified, provider, provider_id,
	failed_login_count, locked_until, last_login, created_at, updated_at`

// nextFailedCount restarts the counter when the previous lock has lapsed.
const nextFailedCount = `(CASE WHEN locked_until IS NOT NULL AND locked_until <= $2 THEN 1 ELSE failed_login_count + 1 END)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*domain.Identity, error) {
	u := &domain.Identity{}
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.Status, &u.IsVerified,
		&u.Provider, &u.ProviderID, &u.FailedLoginCount, &u.LockedUntil,
		&u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// UsersRepository is the Postgres user directory.
type UsersRepository struct {
	db *sql.DB
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(db *sql.DB) *UsersRepository {
	return &UsersRepository{db: db}
}

// Create inserts a new identity. A clashing email or provider id yields domain.ErrDuplicate.
func (r *UsersRepository) Create(ctx context.Context, u *domain.Identity) error {
	return r.CreateTx(ctx, r.db, u)
}

// CreateTx inserts a new identity using q.
func (r *UsersRepository) CreateTx(ctx context.Context, q Querier, u *domain.Identity) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, status, is_verified, provider, provider_id,
		                   failed_login_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10)
	`
	_, err := q.ExecContext(ctx, query,
		u.ID, u.Email, u.PasswordHash, u.Role, u.Status, u.IsVerified,
		u.Provider, u.ProviderID, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("create user %s: %w", u.Email, domain.ErrDuplicate)
	}
	return err
}

// FindByID retrieves a non-deleted identity by ID.
func (r *UsersRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	query := `SELECT` + identityColumns + `
		FROM users
		WHERE id = $1 AND status <> 'DELETED'
	`
	return scanIdentity(r.db.QueryRowContext(ctx, query, id))
}

// FindByEmail retrieves a non-deleted identity by email, ignoring case.
func (r *UsersRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `SELECT` + identityColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1) AND status <> 'DELETED'
	`
	return scanIdentity(r.db.QueryRowContext(ctx, query, email))
}

// FindByProviderID retrieves a non-deleted federated identity.
func (r *UsersRepository) FindByProviderID(ctx context.Context, provider domain.Provider, providerID string) (*domain.Identity, error) {
	query := `SELECT` + identityColumns + `
		FROM users
		WHERE provider = $1 AND provider_id = $2 AND status <> 'DELETED'
	`
	return scanIdentity(r.db.QueryRowContext(ctx, query, provider, providerID))
}

// IncrementFailedLogin atomically bumps the failed-login counter and locks the
// identity once the counter reaches maxAttempts. It returns the new count.
func (r *UsersRepository) IncrementFailedLogin(ctx context.Context, id uuid.UUID, now time.Time, maxAttempts int, lockoutDuration time.Duration) (int, error) {
	query := `
		UPDATE users
		SET failed_login_count = ` + nextFailedCount + `,
		    locked_until = CASE WHEN ` + nextFailedCount + ` >= $3 THEN $4::timestamptz ELSE NULL END,
		    status = CASE
		        WHEN ` + nextFailedCount + ` >= $3 THEN 'LOCKED'
		        WHEN status = 'LOCKED' THEN CASE WHEN is_verified THEN 'ACTIVE' ELSE 'PENDING' END
		        ELSE status
		    END,
		    updated_at = $2
		WHERE id = $1 AND status <> 'DELETED'
		RETURNING failed_login_count
	`
	var count int
	err := r.db.QueryRowContext(ctx, query, id, now, maxAttempts, now.Add(lockoutDuration)).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrUserNotFound
	}
	if err != nil {
		return 0, err
	}
	return count, nil
}

// UpdateLastLogin records a successful credential check: it clears the
// failed-login counter and any lock, and stamps last_login.
func (r *UsersRepository) UpdateLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE users
		SET failed_login_count = 0,
		    locked_until = NULL,
		    status = CASE
		        WHEN status = 'LOCKED' THEN CASE WHEN is_verified THEN 'ACTIVE' ELSE 'PENDING' END
		        ELSE status
		    END,
		    last_login = $2,
		    updated_at = $2
		WHERE id = $1 AND status <> 'DELETED'
	`
	return r.execOne(ctx, query, id, at)
}

// UpdatePassword replaces the credential hash and lifts any lockout.
func (r *UsersRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string, at time.Time) error {
	query := `
		UPDATE users
		SET password_hash = $2,
		    failed_login_count = 0,
		    locked_until = NULL,
		    status = CASE
		        WHEN status = 'LOCKED' THEN CASE WHEN is_verified THEN 'ACTIVE' ELSE 'PENDING' END
		        ELSE status
		    END,
		    updated_at = $3
		WHERE id = $1 AND status <> 'DELETED'
	`
	return r.execOne(ctx, query, id, passwordHash, at)
}

// UpdateVerification sets the verified flag. Verifying a PENDING identity activates it.
func (r *UsersRepository) UpdateVerification(ctx context.Context, id uuid.UUID, verified bool, at time.Time) error {
	query := `
		UPDATE users
		SET is_verified = $2,
		    status = CASE WHEN $2 AND status = 'PENDING' THEN 'ACTIVE' ELSE status END,
		    updated_at = $3
		WHERE id = $1 AND status <> 'DELETED'
	`
	return r.execOne(ctx, query, id, verified, at)
}

// UpdateStatus sets the lifecycle status. DELETED is terminal.
func (r *UsersRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status, at time.Time) error {
	query := `
		UPDATE users
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status <> 'DELETED'
	`
	return r.execOne(ctx, query, id, status, at)
}

func (r *UsersRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
