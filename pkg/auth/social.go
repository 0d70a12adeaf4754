package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// SocialVerifier exchanges a provider-issued token for verified claims.
type SocialVerifier interface {
	Provider() domain.Provider
	Verify(ctx context.Context, token string) (*domain.SocialClaims, error)
}

// SocialAuthBridge dispatches provider tokens to the matching verifier.
type SocialAuthBridge struct {
	verifiers map[domain.Provider]SocialVerifier
	logger    *slog.Logger
}

// NewSocialAuthBridge creates a bridge over the given verifiers. Nil
// verifiers are skipped so unconfigured providers can be passed through.
func NewSocialAuthBridge(logger *slog.Logger, verifiers ...SocialVerifier) *SocialAuthBridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &SocialAuthBridge{verifiers: make(map[domain.Provider]SocialVerifier), logger: logger}
	for _, v := range verifiers {
		if v == nil {
			continue
		}
		b.verifiers[v.Provider()] = v
	}
	return b
}

// Providers lists the configured providers.
func (b *SocialAuthBridge) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(b.verifiers))
	for p := range b.verifiers {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Exchange verifies providerToken with provider. Every failure matches
// domain.ErrSocialAuth. Verifier errors are logged and replaced, since they
// may quote provider URLs and credentials.
func (b *SocialAuthBridge) Exchange(ctx context.Context, provider domain.Provider, providerToken string) (*domain.SocialClaims, error) {
	v, ok := b.verifiers[provider]
	if !ok {
		return nil, domain.ErrUnsupportedProvider
	}
	if providerToken == "" {
		return nil, fmt.Errorf("%w: empty %s token", domain.ErrSocialAuth, provider)
	}

	claims, err := v.Verify(ctx, providerToken)
	if err != nil {
		b.logger.WarnContext(ctx, "social token rejected", "provider", provider, "error", err)
		return nil, fmt.Errorf("%w: %s token rejected", domain.ErrSocialAuth, provider)
	}
	if claims.ProviderID == "" {
		return nil, fmt.Errorf("%w: %s returned no subject", domain.ErrSocialAuth, provider)
	}
	claims.Provider = provider
	claims.Email = NormalizeEmail(claims.Email)
	return claims, nil
}

// JWKS is a remote key set that refreshes in the background.
type JWKS struct {
	jwks *keyfunc.JWKS
}

// FetchJWKS downloads the key set at url and keeps it fresh until Close.
func FetchJWKS(ctx context.Context, url string, logger *slog.Logger) (*JWKS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	jwks, err := keyfunc.Get(url, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to refresh JWKS", "url", url, "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  5 * time.Minute,
		RefreshTimeout:    10 * time.Second,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch JWKS %s: %w", url, err)
	}
	return &JWKS{jwks: jwks}, nil
}

// Keyfunc resolves the verification key for a token.
func (k *JWKS) Keyfunc(token *jwt.Token) (any, error) {
	return k.jwks.Keyfunc(token)
}

// Close stops the background refresh.
func (k *JWKS) Close() {
	k.jwks.EndBackground()
}

// verifyIDToken parses an OpenID Connect ID token signed with RS256 and checks
// issuer and audience.
func verifyIDToken(token string, keys jwt.Keyfunc, clock Clock, issuers, audiences []string, claims jwt.Claims) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clock.Now),
	)
	if _, err := parser.ParseWithClaims(token, claims, keys); err != nil {
		return fmt.Errorf("parse id token: %w", err)
	}

	iss, err := claims.GetIssuer()
	if err != nil || !slices.Contains(issuers, iss) {
		return fmt.Errorf("invalid issuer %q", iss)
	}

	aud, err := claims.GetAudience()
	if err != nil {
		return fmt.Errorf("read audience: %w", err)
	}
	for _, a := range aud {
		if a != "" && slices.Contains(audiences, a) {
			return nil
		}
	}
	return errors.New("invalid audience")
}
