package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/domain"
)

const (
	// DefaultEmailVerificationTTL is the lifetime of email verification links.
	DefaultEmailVerificationTTL = 24 * time.Hour
	// DefaultPasswordResetTTL is the lifetime of password reset links.
	DefaultPasswordResetTTL = time.Hour
)

// SessionConfig holds session orchestration settings.
type SessionConfig struct {
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
	DefaultRole          domain.Role
	BlockDisposableEmail bool
}

// SessionDeps are the collaborators of a SessionService.
type SessionDeps struct {
	Users       UserDirectory
	Store       TokenStore
	Credentials *CredentialVerifier
	Social      *SocialAuthBridge
	Issuer      *TokenIssuer
	Validator   *TokenValidator
	Special     *SpecialTokens
	Policy      *PasswordPolicy
	Notifier    Notifier
	Clock       Clock
	Logger      *slog.Logger
}

// SessionService orchestrates every account and session operation. It is the
// only place where collaborator errors are translated: callers receive errors
// from the domain taxonomy and nothing else.
type SessionService struct {
	config      SessionConfig
	users       UserDirectory
	store       TokenStore
	credentials *CredentialVerifier
	social      *SocialAuthBridge
	issuer      *TokenIssuer
	validator   *TokenValidator
	special     *SpecialTokens
	policy      *PasswordPolicy
	notifier    Notifier
	clock       Clock
	logger      *slog.Logger
}

// NewSessionService creates a new session service.
func NewSessionService(config SessionConfig, deps SessionDeps) *SessionService {
	if config.EmailVerificationTTL == 0 {
		config.EmailVerificationTTL = DefaultEmailVerificationTTL
	}
	if config.PasswordResetTTL == 0 {
		config.PasswordResetTTL = DefaultPasswordResetTTL
	}
	if config.DefaultRole == "" {
		config.DefaultRole = domain.RoleUser
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Policy == nil {
		deps.Policy = DefaultPasswordPolicy()
	}
	if deps.Social == nil {
		deps.Social = NewSocialAuthBridge(deps.Logger)
	}
	return &SessionService{
		config:      config,
		users:       deps.Users,
		store:       deps.Store,
		credentials: deps.Credentials,
		social:      deps.Social,
		issuer:      deps.Issuer,
		validator:   deps.Validator,
		special:     deps.Special,
		policy:      deps.Policy,
		notifier:    deps.Notifier,
		clock:       deps.Clock,
		logger:      deps.Logger,
	}
}

// Session is the result of a successful login.
type Session struct {
	Identity *domain.Identity
	Tokens   *domain.TokenPair
	// Created is set when a social login created the identity.
	Created bool
}

// Acknowledgement is the reply to requests whose outcome must not reveal
// whether an account exists.
type Acknowledgement struct {
	Message string `json:"message"`
}

var (
	passwordResetAck = Acknowledgement{Message: "If an account exists for this email, a password reset link has been sent."}
	verificationAck  = Acknowledgement{Message: "If an unverified account exists for this email, a verification link has been sent."}
)

// Register creates a local identity in PENDING state and sends a verification
// link.
func (s *SessionService) Register(ctx context.Context, email, password string) (*domain.Identity, error) {
	email = NormalizeEmail(email)
	if err := ValidateEmail(email, s.config.BlockDisposableEmail); err != nil {
		return nil, err
	}
	if err := s.policy.ValidatePassword(password); err != nil {
		return nil, err
	}

	_, err := s.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.ErrEmailTaken
	case !errors.Is(err, domain.ErrUserNotFound):
		return nil, s.translate(ctx, "register", err, domain.ErrInvalidCredentials)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, s.translate(ctx, "register", err, domain.ErrInvalidCredentials)
	}

	now := s.clock.Now()
	identity := &domain.Identity{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: &hash,
		Role:         s.config.DefaultRole,
		Status:       domain.StatusPending,
		Provider:     domain.ProviderLocal,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, identity); err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			return nil, domain.ErrEmailTaken
		}
		return nil, s.translate(ctx, "register", err, domain.ErrInvalidCredentials)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", identity.ID)
	s.sendVerification(ctx, identity)
	return identity, nil
}

// Login authenticates with email and password and starts a session.
func (s *SessionService) Login(ctx context.Context, email, password string) (*Session, error) {
	identity, err := s.credentials.Authenticate(ctx, email, password)
	if err != nil {
		return nil, s.translate(ctx, "login", err, domain.ErrInvalidCredentials)
	}

	tokens, err := s.issuer.Issue(ctx, identity)
	if err != nil {
		return nil, s.translate(ctx, "login", err, domain.ErrInvalidCredentials)
	}
	return &Session{Identity: identity, Tokens: tokens}, nil
}

// SocialAuth signs in with a provider token. An unknown provider identity is
// matched by provider subject first; an email already owned by a different
// sign-in method is refused rather than linked.
func (s *SessionService) SocialAuth(ctx context.Context, provider domain.Provider, providerToken string) (*Session, error) {
	claims, err := s.social.Exchange(ctx, provider, providerToken)
	if err != nil {
		return nil, s.translate(ctx, "social_auth", err, domain.ErrSocialAuth)
	}

	identity, created, err := s.resolveSocialIdentity(ctx, claims)
	if err != nil {
		return nil, s.translate(ctx, "social_auth", err, domain.ErrSocialAuth)
	}

	now := s.clock.Now()
	if identity.Status == domain.StatusSuspended || identity.IsLockedAt(now) {
		return nil, domain.ErrAccountLocked
	}

	if !created {
		if err := s.users.UpdateLastLogin(ctx, identity.ID, now); err != nil {
			return nil, s.translate(ctx, "social_auth", err, domain.ErrSocialAuth)
		}
		identity.LastLogin = &now
	}

	tokens, err := s.issuer.Issue(ctx, identity)
	if err != nil {
		return nil, s.translate(ctx, "social_auth", err, domain.ErrSocialAuth)
	}
	return &Session{Identity: identity, Tokens: tokens, Created: created}, nil
}

func (s *SessionService) resolveSocialIdentity(ctx context.Context, claims *domain.SocialClaims) (*domain.Identity, bool, error) {
	identity, err := s.users.FindByProviderID(ctx, claims.Provider, claims.ProviderID)
	if err == nil {
		return identity, false, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	if claims.Email == "" {
		return nil, false, fmt.Errorf("%w: %s did not provide a verified email", domain.ErrSocialAuth, claims.Provider)
	}

	_, err = s.users.FindByEmail(ctx, claims.Email)
	if err == nil {
		return nil, false, domain.ErrAccountNeedsLinking
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, false, err
	}

	now := s.clock.Now()
	providerID := claims.ProviderID
	identity = &domain.Identity{
		ID:         uuid.New(),
		Email:      claims.Email,
		Role:       s.config.DefaultRole,
		Status:     domain.StatusActive,
		IsVerified: true,
		Provider:   claims.Provider,
		ProviderID: &providerID,
		LastLogin:  &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.users.Create(ctx, identity); err != nil {
		if !errors.Is(err, domain.ErrDuplicate) {
			return nil, false, err
		}
		// A concurrent first login for the same subject may have won.
		existing, findErr := s.users.FindByProviderID(ctx, claims.Provider, claims.ProviderID)
		if findErr != nil {
			return nil, false, domain.ErrAccountNeedsLinking
		}
		return existing, false, nil
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", identity.ID, "provider", claims.Provider)
	return identity, true, nil
}

// Refresh rotates a refresh token. The presented token is revoked before a new
// pair is minted; of several concurrent callers presenting it, exactly one
// receives a pair.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.validator.Validate(ctx, refreshToken, domain.TokenKindRefresh)
	if err != nil {
		return nil, s.translate(ctx, "refresh", err, domain.ErrInvalidToken)
	}

	won, err := s.store.Revoke(ctx, s.signedRecord(refreshToken, claims))
	if err != nil {
		return nil, s.translate(ctx, "refresh", err, domain.ErrInvalidToken)
	}
	if !won {
		s.logger.WarnContext(ctx, "refresh token replayed", "user_id", claims.Subject)
		return nil, domain.ErrInvalidToken
	}

	identity, err := s.users.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, s.translate(ctx, "refresh", err, domain.ErrInvalidToken)
	}
	if identity.Status == domain.StatusSuspended || identity.Status == domain.StatusDeleted {
		return nil, domain.ErrInvalidToken
	}

	tokens, err := s.issuer.Issue(ctx, identity)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mint rotated tokens", "error", err, "user_id", identity.ID)
		return nil, domain.ErrReauthenticationRequired
	}
	return tokens, nil
}

// Logout revokes the given tokens. Either may be empty. Invalid or expired
// tokens are skipped and failures are only logged.
func (s *SessionService) Logout(ctx context.Context, refreshToken, accessToken string) {
	s.revokeQuietly(ctx, refreshToken, domain.TokenKindRefresh)
	s.revokeQuietly(ctx, accessToken, domain.TokenKindAccess)
}

func (s *SessionService) revokeQuietly(ctx context.Context, token string, kind domain.TokenKind) {
	if token == "" {
		return
	}
	claims, err := s.validator.Validate(ctx, token, kind)
	if err != nil {
		s.logger.DebugContext(ctx, "logout skipped token", "kind", kind, "reason", err)
		return
	}
	if _, err := s.store.Revoke(ctx, s.signedRecord(token, claims)); err != nil {
		s.logger.ErrorContext(ctx, "logout failed to revoke token", "error", err, "kind", kind, "user_id", claims.Subject)
	}
}

// LogoutAll revokes every live access and refresh token of the identity.
func (s *SessionService) LogoutAll(ctx context.Context, identityID uuid.UUID) error {
	n, err := s.store.RevokeAllByOwner(ctx, identityID,
		[]domain.TokenKind{domain.TokenKindAccess, domain.TokenKindRefresh}, s.clock.Now())
	if err != nil {
		return s.translate(ctx, "logout_all", err, domain.ErrInvalidToken)
	}
	s.logger.InfoContext(ctx, "revoked all sessions", "user_id", identityID, "revoked", n)
	return nil
}

// RequestPasswordReset sends a reset link to email if it belongs to a local
// account. The reply is the same whether or not it does.
func (s *SessionService) RequestPasswordReset(ctx context.Context, email string) Acknowledgement {
	identity, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "password reset lookup failed", "error", err)
		}
		return passwordResetAck
	}
	if !identity.HasPassword() || identity.Status == domain.StatusSuspended {
		return passwordResetAck
	}

	token, err := s.special.Issue(ctx, identity.ID, domain.TokenKindPasswordReset, s.config.PasswordResetTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue password reset token", "error", err, "user_id", identity.ID)
		return passwordResetAck
	}
	if s.notifier != nil {
		if err := s.notifier.SendPasswordResetEmail(ctx, identity.Email, token); err != nil {
			s.logger.ErrorContext(ctx, "failed to send password reset email", "error", err, "user_id", identity.ID)
		}
	}
	return passwordResetAck
}

// ResetPassword sets a new password using a reset token and ends every
// session of the account. The new password is checked before the token is
// consumed.
func (s *SessionService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.policy.ValidatePassword(newPassword); err != nil {
		return err
	}

	ownerID, err := s.special.Consume(ctx, token, domain.TokenKindPasswordReset)
	if err != nil {
		return s.translate(ctx, "reset_password", err, domain.ErrInvalidToken)
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return s.translate(ctx, "reset_password", err, domain.ErrInvalidToken)
	}
	if err := s.users.UpdatePassword(ctx, ownerID, hash, s.clock.Now()); err != nil {
		return s.translate(ctx, "reset_password", err, domain.ErrInvalidToken)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", ownerID)
	return s.LogoutAll(ctx, ownerID)
}

// VerifyEmail consumes a verification token and activates the account.
func (s *SessionService) VerifyEmail(ctx context.Context, token string) error {
	ownerID, err := s.special.Consume(ctx, token, domain.TokenKindEmailVerification)
	if err != nil {
		return s.translate(ctx, "verify_email", err, domain.ErrInvalidToken)
	}
	if err := s.users.UpdateVerification(ctx, ownerID, true, s.clock.Now()); err != nil {
		return s.translate(ctx, "verify_email", err, domain.ErrInvalidToken)
	}
	s.logger.InfoContext(ctx, "email verified", "user_id", ownerID)
	return nil
}

// ResendVerification sends a fresh verification link to a pending account.
// The reply is the same whether or not one exists.
func (s *SessionService) ResendVerification(ctx context.Context, email string) Acknowledgement {
	identity, err := s.users.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			s.logger.ErrorContext(ctx, "verification lookup failed", "error", err)
		}
		return verificationAck
	}
	if identity.IsVerified || identity.Status != domain.StatusPending {
		return verificationAck
	}
	s.sendVerification(ctx, identity)
	return verificationAck
}

// ValidateToken validates a signed token of the expected kind.
func (s *SessionService) ValidateToken(ctx context.Context, token string, expected domain.TokenKind) (*domain.Claims, error) {
	claims, err := s.validator.Validate(ctx, token, expected)
	if err != nil {
		return nil, s.translate(ctx, "validate_token", err, domain.ErrInvalidToken)
	}
	return claims, nil
}

// Identity returns the current state of an authenticated caller's account.
func (s *SessionService) Identity(ctx context.Context, id uuid.UUID) (*domain.Identity, error) {
	identity, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, s.translate(ctx, "identity", err, domain.ErrInvalidToken)
	}
	return identity, nil
}

func (s *SessionService) sendVerification(ctx context.Context, identity *domain.Identity) {
	token, err := s.special.Issue(ctx, identity.ID, domain.TokenKindEmailVerification, s.config.EmailVerificationTTL)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to issue verification token", "error", err, "user_id", identity.ID)
		return
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SendVerificationEmail(ctx, identity.Email, token); err != nil {
		s.logger.ErrorContext(ctx, "failed to send verification email", "error", err, "user_id", identity.ID)
	}
}

// signedRecord builds the ledger entry for a verified signed token, used when
// revoking it.
func (s *SessionService) signedRecord(token string, claims *domain.Claims) *domain.TokenRecord {
	return &domain.TokenRecord{
		ID:        uuid.New(),
		OwnerID:   claims.Subject,
		TokenHash: HashToken(token),
		Kind:      claims.Kind,
		ExpiresAt: claims.ExpiresAt,
		CreatedAt: s.clock.Now(),
	}
}

// translate passes errors of the public taxonomy through and replaces
// anything else, including storage not-found errors, with fallback.
func (s *SessionService) translate(ctx context.Context, op string, err error, fallback error) error {
	if domain.IsKnown(err) && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	s.logger.ErrorContext(ctx, "unexpected error", "op", op, "error", err)
	return fallback
}
