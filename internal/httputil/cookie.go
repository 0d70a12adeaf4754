package httputil

import (
	"net/http"
	"time"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// Cookie names for browser clients.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// CookieConfig holds cookie configuration.
type CookieConfig struct {
	Domain   string
	Path     string
	Secure   bool
	SameSite http.SameSite
}

// DefaultCookieConfig returns default cookie configuration.
func DefaultCookieConfig() CookieConfig {
	return CookieConfig{
		Path:     "/",
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.Path,
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// SetTokenCookies stores a token pair in HttpOnly cookies.
func SetTokenCookies(w http.ResponseWriter, pair *domain.TokenPair, refreshTTL time.Duration, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessCookie, pair.AccessToken, pair.ExpiresIn))
	http.SetCookie(w, cfg.cookie(RefreshCookie, pair.RefreshToken, int(refreshTTL.Seconds())))
}

// ClearTokenCookies expires both token cookies.
func ClearTokenCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessCookie, "", -1))
	http.SetCookie(w, cfg.cookie(RefreshCookie, "", -1))
}

// TokenFromCookie returns the value of the named token cookie.
func TokenFromCookie(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// IsBrowserClient reports whether the caller asked for cookie transport.
// Browser clients send X-Client-Type: web; everyone else gets tokens in the
// response body only.
func IsBrowserClient(r *http.Request) bool {
	return r.Header.Get("X-Client-Type") == "web"
}
