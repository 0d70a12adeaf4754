package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// minSecretLen is the shortest HMAC secret accepted.
const minSecretLen = 32

// SignedClaims is the JWT payload of access and refresh tokens.
type SignedClaims struct {
	jwt.RegisteredClaims
	Email string           `json:"email,omitempty"`
	Role  domain.Role      `json:"role,omitempty"`
	Kind  domain.TokenKind `json:"kind"`
}

// Signer signs and verifies compact HS256 tokens. It holds no state beyond
// its key material.
type Signer struct {
	secret []byte
	issuer string
	clock  Clock
}

// NewSigner creates a signer. The secret must be at least 32 bytes.
func NewSigner(secret []byte, issuer string, clock Clock) (*Signer, error) {
	if len(secret) < minSecretLen {
		return nil, fmt.Errorf("jwt secret must be at least %d bytes", minSecretLen)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Signer{secret: secret, issuer: issuer, clock: clock}, nil
}

// Sign produces a token for c. A missing token ID is filled with a random UUID.
func (s *Signer) Sign(c domain.Claims) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	claims := SignedClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject.String(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(c.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
			ID:        c.ID,
		},
		Email: c.Email,
		Role:  c.Role,
		Kind:  c.Kind,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify checks signature, issuer and expiry. Expired tokens yield
// domain.ErrTokenExpired; anything else that fails yields domain.ErrInvalidToken.
func (s *Signer) Verify(token string) (*domain.Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)

	parsed, err := parser.ParseWithClaims(token, &SignedClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.ErrTokenExpired
		}
		return nil, domain.ErrInvalidToken
	}

	sc, ok := parsed.Claims.(*SignedClaims)
	if !ok || !parsed.Valid {
		return nil, domain.ErrInvalidToken
	}
	return sc.toDomain()
}

func (sc *SignedClaims) toDomain() (*domain.Claims, error) {
	sub, err := uuid.Parse(sc.Subject)
	if err != nil {
		return nil, domain.ErrInvalidToken
	}
	if !sc.Kind.IsSigned() {
		return nil, domain.ErrInvalidToken
	}

	c := &domain.Claims{
		Subject: sub,
		Email:   sc.Email,
		Role:    sc.Role,
		Kind:    sc.Kind,
		ID:      sc.ID,
	}
	if sc.IssuedAt != nil {
		c.IssuedAt = sc.IssuedAt.Time
	}
	if sc.ExpiresAt != nil {
		c.ExpiresAt = sc.ExpiresAt.Time
	}
	return c, nil
}

// expiresIn is the whole number of seconds between now and t.
func expiresIn(now, t time.Time) int {
	return int(t.Sub(now) / time.Second)
}
