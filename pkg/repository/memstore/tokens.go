// Package memstore provides in-memory implementations of the token ledger and
// user directory. They honour the same atomicity guarantees as the Postgres
// repositories and back local development and tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

type tokenKey struct {
	hash string
	kind domain.TokenKind
}

// Tokens is an in-memory token ledger.
type Tokens struct {
	mu      sync.Mutex
	records map[tokenKey]domain.TokenRecord
}

// NewTokens creates an empty ledger.
func NewTokens() *Tokens {
	return &Tokens{records: make(map[tokenKey]domain.TokenRecord)}
}

// Save records a token unless (hash, kind) already exists.
func (s *Tokens) Save(_ context.Context, rec *domain.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{rec.TokenHash, rec.Kind}
	if _, ok := s.records[key]; ok {
		return nil
	}
	s.records[key] = *rec
	return nil
}

// Find returns a copy of the record for (hash, kind).
func (s *Tokens) Find(_ context.Context, tokenHash string, kind domain.TokenKind) (*domain.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenKey{tokenHash, kind}]
	if !ok {
		return nil, domain.ErrTokenNotFound
	}
	return &rec, nil
}

// IsBlacklisted reports whether (hash, kind) has been revoked.
func (s *Tokens) IsBlacklisted(_ context.Context, tokenHash string, kind domain.TokenKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[tokenKey{tokenHash, kind}]
	return ok && rec.Blacklisted, nil
}

// Revoke blacklists the token iff it is not blacklisted yet.
func (s *Tokens) Revoke(_ context.Context, rec *domain.TokenRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := tokenKey{rec.TokenHash, rec.Kind}
	existing, ok := s.records[key]
	if !ok {
		stored := *rec
		if stored.ID == uuid.Nil {
			stored.ID = uuid.New()
		}
		stored.Blacklisted = true
		s.records[key] = stored
		return true, nil
	}
	if existing.Blacklisted {
		return false, nil
	}
	existing.Blacklisted = true
	s.records[key] = existing
	return true, nil
}

// RevokeAllByOwner blacklists every live token of the given kinds owned by ownerID.
func (s *Tokens) RevokeAllByOwner(_ context.Context, ownerID uuid.UUID, kinds []domain.TokenKind, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.records {
		if rec.OwnerID != ownerID || rec.Blacklisted || rec.IsExpiredAt(now) {
			continue
		}
		if !containsKind(kinds, rec.Kind) {
			continue
		}
		rec.Blacklisted = true
		s.records[key] = rec
		n++
	}
	return n, nil
}

// DeleteExpired removes every record whose expiry is before now.
func (s *Tokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for key, rec := range s.records {
		if rec.ExpiresAt.Before(now) {
			delete(s.records, key)
			n++
		}
	}
	return n, nil
}

// Len returns the number of stored records.
func (s *Tokens) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func containsKind(kinds []domain.TokenKind, k domain.TokenKind) bool {
	for _, c := range kinds {
		if c == k {
			return true
		}
	}
	return false
}
