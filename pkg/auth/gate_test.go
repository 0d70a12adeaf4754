package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/tribe-auth/pkg/domain"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", true},
		{"bearer abc", "abc", true},
		{"  Bearer   abc  ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"Bearer a b", "", false},
		{"abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		assert.Equal(t, tt.ok, ok, tt.header)
		assert.Equal(t, tt.want, got, tt.header)
	}
}

func TestGate_Authorize(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	gate := NewGate(env.service)

	env.seedUser(t, "user@x.com", strongPassword)
	env.seedUser(t, "org@x.com", strongPassword, func(i *domain.Identity) { i.Role = domain.RoleOrganizer })

	userSession, err := env.service.Login(ctx, "user@x.com", strongPassword)
	require.NoError(t, err)
	orgSession, err := env.service.Login(ctx, "org@x.com", strongPassword)
	require.NoError(t, err)

	principal, err := gate.Authorize(ctx, "Bearer "+userSession.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userSession.Identity.ID, principal.ID)
	assert.Equal(t, domain.RoleUser, principal.Role)

	_, err = gate.Authorize(ctx, "Bearer "+userSession.Tokens.AccessToken, domain.RoleOrganizer, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	principal, err = gate.Authorize(ctx, "Bearer "+orgSession.Tokens.AccessToken, domain.RoleOrganizer, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleOrganizer, principal.Role)

	_, err = gate.Authorize(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = gate.Authorize(ctx, "Bearer "+userSession.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken, "refresh tokens are not access tokens")

	env.service.Logout(ctx, "", userSession.Tokens.AccessToken)
	_, err = gate.Authorize(ctx, "Bearer "+userSession.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	env.clock.Advance(DefaultAccessTokenTTL)
	_, err = gate.Authorize(ctx, "Bearer "+orgSession.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrTokenExpired)
}
