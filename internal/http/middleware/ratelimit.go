package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/tendant/tribe-auth/internal/config"
	"github.com/tendant/tribe-auth/internal/httputil"
)

// RateLimitConfig holds rate limiting configuration for a specific endpoint type.
type RateLimitConfig struct {
	Name     string
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit creates an IP-based rate limiter middleware with logging.
// A non-positive request count disables the limiter.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.Requests <= 0 {
		return NoRateLimit()
	}
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				cfg.Logger.Warn("rate limit exceeded",
					"limiter", cfg.Name,
					"ip", r.RemoteAddr,
					"path", r.URL.Path,
					"method", r.Method,
					"user_agent", r.UserAgent(),
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// RateLimiters groups the per-route-class limiters.
type RateLimiters struct {
	// Auth guards credential and social sign-in, registration and refresh.
	Auth func(http.Handler) http.Handler
	// Recovery guards password reset and verification mail.
	Recovery func(http.Handler) http.Handler
	// API guards authenticated endpoints.
	API func(http.Handler) http.Handler
}

// CreateRateLimiters builds the limiters from configuration. Limits are
// requests per minute per client IP.
func CreateRateLimiters(cfg *config.Config, logger *slog.Logger) RateLimiters {
	limiter := func(name string, perMinute int) func(http.Handler) http.Handler {
		return RateLimit(RateLimitConfig{
			Name:     name,
			Requests: perMinute,
			Window:   time.Minute,
			Logger:   logger,
		})
	}
	return RateLimiters{
		Auth:     limiter("auth", cfg.AuthRateLimit),
		Recovery: limiter("recovery", cfg.RecoveryRateLimit),
		API:      limiter("api", cfg.APIRateLimit),
	}
}
