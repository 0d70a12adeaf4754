package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tendant/tribe-auth/internal/config"
	"github.com/tendant/tribe-auth/internal/http/features/admin"
	"github.com/tendant/tribe-auth/internal/http/features/email"
	"github.com/tendant/tribe-auth/internal/http/features/me"
	"github.com/tendant/tribe-auth/internal/http/features/password"
	"github.com/tendant/tribe-auth/internal/http/features/session"
	"github.com/tendant/tribe-auth/internal/http/features/social"
	"github.com/tendant/tribe-auth/internal/http/middleware"
	"github.com/tendant/tribe-auth/internal/httputil"
	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Logger         *slog.Logger
	Config         *config.Config
	SessionService *auth.SessionService
	Gate           *auth.Gate
	// Health reports storage readiness. Nil means always healthy.
	Health func(ctx context.Context) error
}

// NewRouter creates a new HTTP router with all routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recover(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.SecurityHeaders(cfg.Config.SecurityHeaders))
	r.Use(middleware.RequestSizeLimit(cfg.Config.MaxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				cfg.Logger.Error("health check failed", "error", err)
				httputil.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	limiters := middleware.CreateRateLimiters(cfg.Config, cfg.Logger)
	requireAuth := middleware.Auth(cfg.Gate)

	cookies := httputil.DefaultCookieConfig()
	cookies.Domain = cfg.Config.Cookies.Domain
	cookies.Secure = cfg.Config.Cookies.Secure
	transport := httputil.TokenTransport{Cookies: cookies, RefreshTTL: cfg.Config.RefreshTokenTTL}

	passwordHandler := password.NewHandler(cfg.Logger, cfg.SessionService, transport)
	sessionHandler := session.NewHandler(cfg.SessionService, transport)
	socialHandler := social.NewHandler(cfg.SessionService, transport)
	emailHandler := email.NewHandler(cfg.SessionService)
	meHandler := me.NewHandler(cfg.SessionService)
	adminHandler := admin.NewHandler(cfg.Logger, cfg.SessionService)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(limiters.Auth)
			r.Post("/register", passwordHandler.Register)
			r.Post("/login", passwordHandler.Login)
			r.Post("/social/{provider}", socialHandler.SignIn)
			r.Post("/refresh", sessionHandler.Refresh)
		})

		r.Group(func(r chi.Router) {
			r.Use(limiters.Recovery)
			r.Post("/password/reset-request", passwordHandler.RequestPasswordReset)
			r.Post("/password/reset", passwordHandler.ResetPassword)
			r.Post("/verify-email", emailHandler.VerifyEmail)
			r.Post("/resend-verification", emailHandler.ResendVerification)
		})

		r.With(limiters.API).Post("/logout", sessionHandler.Logout)
		r.With(limiters.API, requireAuth).Post("/logout/all", sessionHandler.LogoutAll)
	})

	r.Group(func(r chi.Router) {
		r.Use(limiters.API)
		r.Use(requireAuth)
		r.Get("/v1/me", meHandler.GetMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(limiters.API)
		r.Use(requireAuth)
		r.Use(middleware.RequireRoles(domain.RoleAdmin))
		r.Post("/v1/admin/users/{id}/logout-all", adminHandler.LogoutAll)
	})

	return r
}
