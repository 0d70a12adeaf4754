package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/tribe-auth/pkg/domain"
)

func TestNewSigner_ShortSecret(t *testing.T) {
	_, err := NewSigner([]byte("too-short"), "tribe-auth", nil)
	require.Error(t, err)
}

func TestSigner_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	signer, err := NewSigner(testSecret, "tribe-auth", clock)
	require.NoError(t, err)

	sub := uuid.New()
	now := clock.Now()
	token, err := signer.Sign(domain.Claims{
		Subject:   sub,
		Email:     "a@x.com",
		Role:      domain.RoleOrganizer,
		Kind:      domain.TokenKindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(15 * time.Minute),
	})
	require.NoError(t, err)

	claims, err := signer.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, sub, claims.Subject)
	assert.Equal(t, "a@x.com", claims.Email)
	assert.Equal(t, domain.RoleOrganizer, claims.Role)
	assert.Equal(t, domain.TokenKindAccess, claims.Kind)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.ExpiresAt.Equal(now.Add(15*time.Minute)))
}

func TestSigner_UniqueTokenIDs(t *testing.T) {
	clock := newFakeClock()
	signer, err := NewSigner(testSecret, "tribe-auth", clock)
	require.NoError(t, err)

	c := domain.Claims{
		Subject:   uuid.New(),
		Kind:      domain.TokenKindRefresh,
		IssuedAt:  clock.Now(),
		ExpiresAt: clock.Now().Add(time.Hour),
	}
	a, err := signer.Sign(c)
	require.NoError(t, err)
	b, err := signer.Sign(c)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "identical claims in the same second must still differ")
}

func TestSigner_VerifyFailures(t *testing.T) {
	clock := newFakeClock()
	signer, err := NewSigner(testSecret, "tribe-auth", clock)
	require.NoError(t, err)
	other, err := NewSigner([]byte("another-secret-key-at-least-32-bytes"), "tribe-auth", clock)
	require.NoError(t, err)
	otherIssuer, err := NewSigner(testSecret, "someone-else", clock)
	require.NoError(t, err)

	now := clock.Now()
	valid := domain.Claims{
		Subject:   uuid.New(),
		Kind:      domain.TokenKindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	}

	sign := func(s *Signer, c domain.Claims) string {
		tok, err := s.Sign(c)
		require.NoError(t, err)
		return tok
	}

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":  valid.Subject.String(),
		"iss":  "tribe-auth",
		"kind": "ACCESS",
		"exp":  now.Add(time.Minute).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badKind := valid
	badKind.Kind = domain.TokenKindPasswordReset

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{name: "garbage", token: "not-a-jwt", want: domain.ErrInvalidToken},
		{name: "empty", token: "", want: domain.ErrInvalidToken},
		{name: "wrong key", token: sign(other, valid), want: domain.ErrInvalidToken},
		{name: "wrong issuer", token: sign(otherIssuer, valid), want: domain.ErrInvalidToken},
		{name: "alg none", token: noneToken, want: domain.ErrInvalidToken},
		{name: "unsigned kind", token: sign(signer, badKind), want: domain.ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := signer.Verify(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSigner_Expiry(t *testing.T) {
	clock := newFakeClock()
	signer, err := NewSigner(testSecret, "tribe-auth", clock)
	require.NoError(t, err)

	now := clock.Now()
	token, err := signer.Sign(domain.Claims{
		Subject:   uuid.New(),
		Kind:      domain.TokenKindAccess,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = signer.Verify(token)
	require.NoError(t, err)

	// The boundary instant is already expired.
	clock.Advance(time.Second)
	_, err = signer.Verify(token)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}
