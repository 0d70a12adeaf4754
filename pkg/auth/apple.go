package auth

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tendant/tribe-auth/pkg/domain"
)

const (
	// AppleJWKSURL publishes the keys that sign Apple identity tokens.
	AppleJWKSURL = "https://appleid.apple.com/auth/keys"
	appleIssuer  = "https://appleid.apple.com"
)

// AppleConfig holds Sign in with Apple configuration.
type AppleConfig struct {
	// ClientIDs are the app bundle IDs and service IDs accepted as audience.
	ClientIDs []string
}

// flexBool decodes both JSON booleans and the strings "true"/"false"; Apple
// uses either depending on the client.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = flexBool(parsed)
	return nil
}

// AppleClaims represents the claims from an Apple identity token.
type AppleClaims struct {
	jwt.RegisteredClaims
	Email          string   `json:"email"`
	EmailVerified  flexBool `json:"email_verified"`
	IsPrivateEmail flexBool `json:"is_private_email"`
}

// AppleVerifier verifies Apple identity tokens.
type AppleVerifier struct {
	config AppleConfig
	keys   jwt.Keyfunc
	clock  Clock
}

// NewAppleVerifier creates a verifier resolving signing keys through keys.
func NewAppleVerifier(config AppleConfig, keys jwt.Keyfunc, clock Clock) *AppleVerifier {
	if clock == nil {
		clock = SystemClock{}
	}
	return &AppleVerifier{config: config, keys: keys, clock: clock}
}

// Provider returns domain.ProviderApple.
func (v *AppleVerifier) Provider() domain.Provider {
	return domain.ProviderApple
}

// Verify validates an Apple identity token.
func (v *AppleVerifier) Verify(_ context.Context, idToken string) (*domain.SocialClaims, error) {
	if len(v.config.ClientIDs) == 0 {
		return nil, errors.New("apple client id not configured")
	}

	var claims AppleClaims
	if err := verifyIDToken(idToken, v.keys, v.clock, []string{appleIssuer}, v.config.ClientIDs, &claims); err != nil {
		return nil, err
	}

	out := &domain.SocialClaims{
		Provider:   domain.ProviderApple,
		ProviderID: claims.Subject,
	}
	if bool(claims.EmailVerified) {
		out.Email = claims.Email
	}
	return out, nil
}
