package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/tribe-auth/pkg/domain"
)

func TestSweeper_Sweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.seedUser(t, "a@x.com", strongPassword)

	pair, err := env.issuer.Issue(ctx, user)
	require.NoError(t, err)
	_, err = env.special.Issue(ctx, uuid.New(), domain.TokenKindPasswordReset, time.Hour)
	require.NoError(t, err)
	env.service.Logout(ctx, "", pair.AccessToken)
	require.Equal(t, 3, env.tokens.Len())

	sweeper := NewSweeper(env.tokens, time.Minute, env.clock, discardLogger())

	n, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "revoked but unexpired records are kept")

	env.clock.Advance(time.Hour + time.Second)
	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "access and reset tokens expired")

	n, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, env.tokens.Len())
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	sweeper := NewSweeper(env.tokens, time.Millisecond, env.clock, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
