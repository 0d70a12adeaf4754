package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// TokensRepository is the Postgres token ledger.
type TokensRepository struct {
	db *sql.DB
}

// NewTokensRepository creates a new tokens repository.
func NewTokensRepository(db *sql.DB) *TokensRepository {
	return &TokensRepository{db: db}
}

// Save records an issued token. An existing (hash, kind) row is left untouched,
// so a late issuance write can never clear a revocation.
func (r *TokensRepository) Save(ctx context.Context, rec *domain.TokenRecord) error {
	query := `
		INSERT INTO auth_tokens (id, owner_id, token_hash, kind, expires_at, blacklisted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (token_hash, kind) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.OwnerID, rec.TokenHash, rec.Kind,
		rec.ExpiresAt, rec.Blacklisted, rec.CreatedAt,
	)
	return err
}

// Find retrieves a token record by hash and kind.
func (r *TokensRepository) Find(ctx context.Context, tokenHash string, kind domain.TokenKind) (*domain.TokenRecord, error) {
	query := `
		SELECT id, owner_id, token_hash, kind, expires_at, blacklisted, created_at
		FROM auth_tokens
		WHERE token_hash = $1 AND kind = $2
	`
	rec := &domain.TokenRecord{}
	err := r.db.QueryRowContext(ctx, query, tokenHash, kind).Scan(
		&rec.ID, &rec.OwnerID, &rec.TokenHash, &rec.Kind,
		&rec.ExpiresAt, &rec.Blacklisted, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTokenNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// IsBlacklisted reports whether (hash, kind) has been revoked. Unknown tokens
// are not blacklisted.
func (r *TokensRepository) IsBlacklisted(ctx context.Context, tokenHash string, kind domain.TokenKind) (bool, error) {
	query := `SELECT blacklisted FROM auth_tokens WHERE token_hash = $1 AND kind = $2`
	var blacklisted bool
	err := r.db.QueryRowContext(ctx, query, tokenHash, kind).Scan(&blacklisted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return blacklisted, nil
}

// Revoke blacklists the token iff it is not blacklisted yet, inserting an
// already-blacklisted row when issuance has not been persisted. It returns
// true only for the single caller that performed the transition.
func (r *TokensRepository) Revoke(ctx context.Context, rec *domain.TokenRecord) (bool, error) {
	query := `
		INSERT INTO auth_tokens (id, owner_id, token_hash, kind, expires_at, blacklisted, created_at)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		ON CONFLICT (token_hash, kind) DO UPDATE
		SET blacklisted = TRUE
		WHERE auth_tokens.blacklisted = FALSE
	`
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	result, err := r.db.ExecContext(ctx, query,
		id, rec.OwnerID, rec.TokenHash, rec.Kind, rec.ExpiresAt, rec.CreatedAt,
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// RevokeAllByOwner blacklists every live token of the given kinds owned by ownerID.
func (r *TokensRepository) RevokeAllByOwner(ctx context.Context, ownerID uuid.UUID, kinds []domain.TokenKind, now time.Time) (int64, error) {
	query := `
		UPDATE auth_tokens
		SET blacklisted = TRUE
		WHERE owner_id = $1 AND kind = ANY($2) AND blacklisted = FALSE AND expires_at >= $3
	`
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	result, err := r.db.ExecContext(ctx, query, ownerID, pq.Array(names), now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// DeleteExpired removes every record whose expiry is before now.
func (r *TokensRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
