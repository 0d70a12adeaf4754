package domain

import (
	"time"

	"github.com/google/uuid"
)

// TokenKind distinguishes the four token families.
type TokenKind string

const (
	TokenKindAccess            TokenKind = "ACCESS"
	TokenKindRefresh           TokenKind = "REFRESH"
	TokenKindEmailVerification TokenKind = "EMAIL_VERIFICATION"
	TokenKindPasswordReset     TokenKind = "PASSWORD_RESET"
)

// IsSigned returns true for kinds that are self-verifying JWTs.
func (k TokenKind) IsSigned() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

// TokenRecord is the ledger entry for an issued token. The token value itself
// is never stored, only its hash.
type TokenRecord struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	TokenHash   string
	Kind        TokenKind
	ExpiresAt   time.Time
	Blacklisted bool
	CreatedAt   time.Time
}

// IsExpiredAt returns true once now is past ExpiresAt. A record is still live
// at its deadline, matching the expiry sweep.
func (t *TokenRecord) IsExpiredAt(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Claims are the verified contents of a signed token.
type Claims struct {
	Subject   uuid.UUID
	Email     string
	Role      Role
	Kind      TokenKind
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Principal returns the request principal carried by the claims.
func (c *Claims) Principal() *Principal {
	return &Principal{ID: c.Subject, Email: c.Email, Role: c.Role}
}

// TokenPair represents the access and refresh token pair.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int       `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SocialClaims are identity claims verified by a third-party provider.
type SocialClaims struct {
	Provider   Provider
	ProviderID string
	Email      string
	Name       string
}
