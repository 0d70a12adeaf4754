package auth

import (
	"context"
	"errors"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tendant/tribe-auth/pkg/domain"
)

const (
	// GoogleJWKSURL publishes the keys that sign Google ID tokens.
	GoogleJWKSURL   = "https://www.googleapis.com/oauth2/v3/certs"
	googleIssuer    = "https://accounts.google.com"
	googleIssuerAlt = "accounts.google.com"
)

// GoogleConfig holds Google sign-in configuration.
type GoogleConfig struct {
	// ClientIDs accepted as audience: the web client and every mobile client.
	ClientIDs []string
}

// GoogleClaims represents the claims from a Google ID token.
type GoogleClaims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleVerifier verifies Google ID tokens.
type GoogleVerifier struct {
	config GoogleConfig
	keys   jwt.Keyfunc
	clock  Clock
}

// NewGoogleVerifier creates a verifier resolving signing keys through keys.
func NewGoogleVerifier(config GoogleConfig, keys jwt.Keyfunc, clock Clock) *GoogleVerifier {
	if clock == nil {
		clock = SystemClock{}
	}
	return &GoogleVerifier{config: config, keys: keys, clock: clock}
}

// Provider returns domain.ProviderGoogle.
func (v *GoogleVerifier) Provider() domain.Provider {
	return domain.ProviderGoogle
}

// Verify validates a Google ID token. The email is only returned when Google
// has verified it.
func (v *GoogleVerifier) Verify(_ context.Context, idToken string) (*domain.SocialClaims, error) {
	if len(v.config.ClientIDs) == 0 {
		return nil, errors.New("google client id not configured")
	}

	var claims GoogleClaims
	if err := verifyIDToken(idToken, v.keys, v.clock, []string{googleIssuer, googleIssuerAlt}, v.config.ClientIDs, &claims); err != nil {
		return nil, err
	}

	out := &domain.SocialClaims{
		Provider:   domain.ProviderGoogle,
		ProviderID: claims.Subject,
		Name:       claims.Name,
	}
	if claims.EmailVerified {
		out.Email = claims.Email
	}
	return out, nil
}
