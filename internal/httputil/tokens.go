package httputil

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// UserResponse is the public view of an identity.
type UserResponse struct {
	ID         uuid.UUID       `json:"id"`
	Email      string          `json:"email"`
	Role       domain.Role     `json:"role"`
	Status     domain.Status   `json:"status"`
	IsVerified bool            `json:"is_verified"`
	Provider   domain.Provider `json:"provider"`
	LastLogin  *time.Time      `json:"last_login,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewUserResponse converts an identity for output. Credential material and
// lockout counters are never exposed.
func NewUserResponse(identity *domain.Identity) *UserResponse {
	if identity == nil {
		return nil
	}
	return &UserResponse{
		ID:         identity.ID,
		Email:      identity.Email,
		Role:       identity.Role,
		Status:     identity.Status,
		IsVerified: identity.IsVerified,
		Provider:   identity.Provider,
		LastLogin:  identity.LastLogin,
		CreatedAt:  identity.CreatedAt,
	}
}

// TokenResponse is the body returned whenever a token pair is issued.
// Browser clients receive the tokens as cookies and the token fields are
// left empty.
type TokenResponse struct {
	AccessToken  string        `json:"access_token,omitempty"`
	RefreshToken string        `json:"refresh_token,omitempty"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int           `json:"expires_in"`
	ExpiresAt    time.Time     `json:"expires_at"`
	User         *UserResponse `json:"user,omitempty"`
	Created      bool          `json:"created,omitempty"`
}

// TokenTransport moves token pairs between the API and its clients.
type TokenTransport struct {
	Cookies    CookieConfig
	RefreshTTL time.Duration
}

// Write replies with pair. user may be nil.
func (t TokenTransport) Write(w http.ResponseWriter, r *http.Request, status int, pair *domain.TokenPair, user *domain.Identity, created bool) {
	resp := TokenResponse{
		TokenType: pair.TokenType,
		ExpiresIn: pair.ExpiresIn,
		ExpiresAt: pair.ExpiresAt,
		User:      NewUserResponse(user),
		Created:   created,
	}
	if IsBrowserClient(r) {
		SetTokenCookies(w, pair, t.RefreshTTL, t.Cookies)
	} else {
		resp.AccessToken = pair.AccessToken
		resp.RefreshToken = pair.RefreshToken
	}
	JSON(w, status, resp)
}

// Clear removes browser token cookies. It is a no-op for other clients.
func (t TokenTransport) Clear(w http.ResponseWriter, r *http.Request) {
	if IsBrowserClient(r) {
		ClearTokenCookies(w, t.Cookies)
	}
}

// RefreshToken returns the refresh token sent in the body, falling back to
// the refresh cookie.
func (t TokenTransport) RefreshToken(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	token, _ := TokenFromCookie(r, RefreshCookie)
	return token
}

// AccessToken returns the access token from the Authorization header or the
// access cookie. It is empty when neither is present.
func (t TokenTransport) AccessToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := auth.BearerToken(header); ok {
			return token
		}
	}
	token, _ := TokenFromCookie(r, AccessCookie)
	return token
}
