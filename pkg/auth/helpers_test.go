package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/tribe-auth/pkg/domain"
	"github.com/tendant/tribe-auth/pkg/repository/memstore"
)

var testSecret = []byte("test-secret-key-at-least-32-bytes!!")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentEmail struct {
	to    string
	token string
}

type recordingNotifier struct {
	mu           sync.Mutex
	verification []sentEmail
	reset        []sentEmail
	err          error
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification = append(n.verification, sentEmail{to, token})
	return n.err
}

func (n *recordingNotifier) SendPasswordResetEmail(_ context.Context, to, token string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset = append(n.reset, sentEmail{to, token})
	return n.err
}

func (n *recordingNotifier) lastVerification(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.verification, "no verification email sent")
	return n.verification[len(n.verification)-1].token
}

func (n *recordingNotifier) lastReset(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.reset, "no password reset email sent")
	return n.reset[len(n.reset)-1].token
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	clock     *fakeClock
	users     *memstore.Users
	tokens    *memstore.Tokens
	notifier  *recordingNotifier
	signer    *Signer
	issuer    *TokenIssuer
	validator *TokenValidator
	special   *SpecialTokens
	verifier  *CredentialVerifier
	service   *SessionService
}

func newTestEnv(t *testing.T, social ...SocialVerifier) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:    newFakeClock(),
		users:    memstore.NewUsers(),
		tokens:   memstore.NewTokens(),
		notifier: &recordingNotifier{},
	}
	logger := discardLogger()

	signer, err := NewSigner(testSecret, "tribe-auth-test", env.clock)
	require.NoError(t, err)
	env.signer = signer
	env.issuer = NewTokenIssuer(IssuerConfig{}, signer, env.tokens, env.clock, logger)
	env.validator = NewTokenValidator(signer, env.tokens, logger)
	env.special = NewSpecialTokens(env.tokens, nil, env.clock)
	env.verifier = NewCredentialVerifier(LockoutConfig{}, env.users, env.clock, logger)
	env.service = NewSessionService(SessionConfig{}, SessionDeps{
		Users:       env.users,
		Store:       env.tokens,
		Credentials: env.verifier,
		Social:      NewSocialAuthBridge(logger, social...),
		Issuer:      env.issuer,
		Validator:   env.validator,
		Special:     env.special,
		Notifier:    env.notifier,
		Clock:       env.clock,
		Logger:      logger,
	})
	return env
}

// seedUser stores an identity with a cheap bcrypt hash of password.
func (e *testEnv) seedUser(t *testing.T, email, password string, mutate ...func(*domain.Identity)) *domain.Identity {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	hash := string(hashed)

	now := e.clock.Now()
	identity := &domain.Identity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusActive,
		IsVerified:   true,
		Provider:     domain.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, m := range mutate {
		m(identity)
	}
	require.NoError(t, e.users.Create(context.Background(), identity))
	return identity
}

func (e *testEnv) reload(t *testing.T, id uuid.UUID) *domain.Identity {
	t.Helper()
	identity, err := e.users.FindByID(context.Background(), id)
	require.NoError(t, err)
	return identity
}

// failingStore wraps a TokenStore and fails the selected operations.
type failingStore struct {
	TokenStore
	failBlacklist bool
	failRevoke    bool
	failSave      bool
}

var errStoreDown = errors.New("store unavailable")

func (s *failingStore) IsBlacklisted(ctx context.Context, hash string, kind domain.TokenKind) (bool, error) {
	if s.failBlacklist {
		return false, errStoreDown
	}
	return s.TokenStore.IsBlacklisted(ctx, hash, kind)
}

func (s *failingStore) Revoke(ctx context.Context, rec *domain.TokenRecord) (bool, error) {
	if s.failRevoke {
		return false, errStoreDown
	}
	return s.TokenStore.Revoke(ctx, rec)
}

func (s *failingStore) Save(ctx context.Context, rec *domain.TokenRecord) error {
	if s.failSave {
		return errStoreDown
	}
	return s.TokenStore.Save(ctx, rec)
}
