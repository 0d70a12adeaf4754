// Package idm assembles the authentication engine into a ready-to-serve
// instance: storage, token issuance and validation, credential and social
// verification, session orchestration and the HTTP API.
//
// Basic usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	db, _ := sql.Open("postgres", "postgres://localhost/tribe?sslmode=disable")
//
//	engine, err := idm.New(ctx, cfg, idm.Options{DB: db})
//	if err != nil {
//	    log.Fatal(err) // Will fail if migrations haven't been run
//	}
//	defer engine.Close()
//	go engine.Sweeper().Run(ctx)
//
//	http.ListenAndServe(":8080", engine.Router())
//
// Protecting your own routes:
//
//	r.Group(func(r chi.Router) {
//	    r.Use(engine.AuthMiddleware(domain.RoleOrganizer, domain.RoleAdmin))
//	    r.Get("/events/new", handler)
//	})
package idm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tendant/tribe-auth/internal/config"
	httpserver "github.com/tendant/tribe-auth/internal/http"
	"github.com/tendant/tribe-auth/internal/http/middleware"
	"github.com/tendant/tribe-auth/internal/notification"
	"github.com/tendant/tribe-auth/pkg/auth"
	"github.com/tendant/tribe-auth/pkg/domain"
	"github.com/tendant/tribe-auth/pkg/repository"
	"github.com/tendant/tribe-auth/pkg/repository/memstore"
)

// Options carries runtime collaborators that do not come from the
// environment.
type Options struct {
	// DB is required for the postgres store backend.
	DB *sql.DB

	// Logger is the structured logger (default: JSON to stdout).
	Logger *slog.Logger

	// Notifier overrides the SMTP or log notifier chosen from config.
	Notifier auth.Notifier

	// Clock overrides the wall clock.
	Clock auth.Clock

	// GoogleKeys and AppleKeys override the provider JWKS endpoints.
	GoogleKeys jwt.Keyfunc
	AppleKeys  jwt.Keyfunc

	// HTTPClient is used for Facebook Graph API calls.
	HTTPClient *http.Client
}

// IDM is the assembled authentication engine.
type IDM struct {
	config   *config.Config
	logger   *slog.Logger
	db       *sql.DB
	users    auth.UserDirectory
	store    auth.TokenStore
	issuer   *auth.TokenIssuer
	sessions *auth.SessionService
	gate     *auth.Gate
	sweeper  *auth.Sweeper
	jwks     []*auth.JWKS
}

// New creates a new engine from cfg. With the postgres backend it fails if
// the schema is missing; run repository.Migrate first.
func New(ctx context.Context, cfg *config.Config, opts Options) (*IDM, error) {
	if cfg == nil {
		return nil, errors.New("idm: config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("idm: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))
	}
	if opts.Clock == nil {
		opts.Clock = auth.SystemClock{}
	}

	i := &IDM{config: cfg, logger: opts.Logger, db: opts.DB}

	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		if opts.DB == nil {
			return nil, errors.New("idm: DB is required for the postgres store")
		}
		if err := validateSchema(ctx, opts.DB); err != nil {
			return nil, err
		}
		i.users = repository.NewUsersRepository(opts.DB)
		i.store = repository.NewTokensRepository(opts.DB)
	case config.StoreBackendMemory:
		opts.Logger.Warn("using in-memory store; data is lost on restart")
		i.users = memstore.NewUsers()
		i.store = memstore.NewTokens()
	}

	signer, err := auth.NewSigner([]byte(cfg.JWTSecret), cfg.JWTIssuer, opts.Clock)
	if err != nil {
		return nil, fmt.Errorf("idm: %w", err)
	}

	social, err := i.socialBridge(ctx, opts)
	if err != nil {
		i.Close()
		return nil, err
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = i.notifier()
	}

	i.issuer = auth.NewTokenIssuer(auth.IssuerConfig{
		AccessTokenTTL:  cfg.AccessTokenTTL,
		RefreshTokenTTL: cfg.RefreshTokenTTL,
		AsyncPersist:    cfg.AsyncTokenPersist,
	}, signer, i.store, opts.Clock, opts.Logger)

	i.sessions = auth.NewSessionService(auth.SessionConfig{
		EmailVerificationTTL: cfg.EmailVerificationTTL,
		PasswordResetTTL:     cfg.PasswordResetTTL,
		DefaultRole:          domain.Role(cfg.DefaultRole),
		BlockDisposableEmail: cfg.BlockDisposableEmail,
	}, auth.SessionDeps{
		Users: i.users,
		Store: i.store,
		Credentials: auth.NewCredentialVerifier(auth.LockoutConfig{
			MaxFailedAttempts: cfg.MaxFailedAttempts,
			LockoutDuration:   cfg.LockoutDuration,
		}, i.users, opts.Clock, opts.Logger),
		Social:    social,
		Issuer:    i.issuer,
		Validator: auth.NewTokenValidator(signer, i.store, opts.Logger),
		Special:   auth.NewSpecialTokens(i.store, auth.DefaultRandom, opts.Clock),
		Policy:    auth.NewPasswordPolicy(cfg.PasswordPolicy),
		Notifier:  notifier,
		Clock:     opts.Clock,
		Logger:    opts.Logger,
	})

	i.gate = auth.NewGate(i.sessions)
	i.sweeper = auth.NewSweeper(i.store, cfg.SweepInterval, opts.Clock, opts.Logger)

	return i, nil
}

// socialBridge builds a verifier for every configured provider. JWKS key sets
// are fetched once here and refreshed in the background until Close.
func (i *IDM) socialBridge(ctx context.Context, opts Options) (*auth.SocialAuthBridge, error) {
	var verifiers []auth.SocialVerifier

	if i.config.HasGoogle() {
		keys := opts.GoogleKeys
		if keys == nil {
			jwks, err := auth.FetchJWKS(ctx, auth.GoogleJWKSURL, i.logger)
			if err != nil {
				return nil, fmt.Errorf("idm: google keys: %w", err)
			}
			i.jwks = append(i.jwks, jwks)
			keys = jwks.Keyfunc
		}
		verifiers = append(verifiers, auth.NewGoogleVerifier(auth.GoogleConfig{ClientIDs: i.config.GoogleClientIDs}, keys, opts.Clock))
	}

	if i.config.HasApple() {
		keys := opts.AppleKeys
		if keys == nil {
			jwks, err := auth.FetchJWKS(ctx, auth.AppleJWKSURL, i.logger)
			if err != nil {
				return nil, fmt.Errorf("idm: apple keys: %w", err)
			}
			i.jwks = append(i.jwks, jwks)
			keys = jwks.Keyfunc
		}
		verifiers = append(verifiers, auth.NewAppleVerifier(auth.AppleConfig{ClientIDs: i.config.AppleClientIDs}, keys, opts.Clock))
	}

	if i.config.HasFacebook() {
		verifiers = append(verifiers, auth.NewFacebookVerifier(auth.FacebookConfig{
			AppID:     i.config.FacebookAppID,
			AppSecret: i.config.FacebookAppSecret,
			GraphURL:  i.config.FacebookGraphURL,
		}, opts.HTTPClient))
	}

	bridge := auth.NewSocialAuthBridge(i.logger, verifiers...)
	if providers := bridge.Providers(); len(providers) > 0 {
		i.logger.Info("social sign-in enabled", "providers", providers)
	}
	return bridge, nil
}

func (i *IDM) notifier() auth.Notifier {
	if !i.config.HasSMTP() {
		i.logger.Warn("SMTP not configured; verification and reset links are only logged")
		return notification.NewLogNotifier(i.logger, i.config.AppBaseURL)
	}
	i.logger.Info("email service enabled", "smtp_host", i.config.SMTPHost)
	return notification.NewEmailService(notification.EmailConfig{
		Host:            i.config.SMTPHost,
		Port:            i.config.SMTPPort,
		User:            i.config.SMTPUser,
		Password:        i.config.SMTPPassword,
		From:            i.config.SMTPFrom,
		FromName:        i.config.SMTPFromName,
		AppBaseURL:      i.config.AppBaseURL,
		VerificationTTL: i.config.EmailVerificationTTL,
		ResetTTL:        i.config.PasswordResetTTL,
	})
}

// Router returns the HTTP API with every route registered.
func (i *IDM) Router() http.Handler {
	var health func(context.Context) error
	if i.db != nil {
		health = i.db.PingContext
	}
	return httpserver.NewRouter(httpserver.RouterConfig{
		Logger:         i.logger,
		Config:         i.config,
		SessionService: i.sessions,
		Gate:           i.gate,
		Health:         health,
	})
}

// SessionService returns the session service for direct use.
func (i *IDM) SessionService() *auth.SessionService {
	return i.sessions
}

// Gate returns the authorization gate.
func (i *IDM) Gate() *auth.Gate {
	return i.gate
}

// Sweeper returns the expired-token sweeper. Callers run it:
//
//	go engine.Sweeper().Run(ctx)
func (i *IDM) Sweeper() *auth.Sweeper {
	return i.sweeper
}

// AuthMiddleware returns middleware that admits requests with a valid access
// token and, when roles are given, one of those roles.
func (i *IDM) AuthMiddleware(roles ...domain.Role) func(http.Handler) http.Handler {
	return middleware.Auth(i.gate, roles...)
}

// GetPrincipal extracts the authenticated caller from a request.
// Use after AuthMiddleware:
//
//	principal, ok := idm.GetPrincipal(r)
func GetPrincipal(r *http.Request) (*domain.Principal, bool) {
	return middleware.GetPrincipal(r.Context())
}

// Close waits for pending token writes and stops JWKS refresh.
func (i *IDM) Close() {
	if i.issuer != nil {
		i.issuer.Wait()
	}
	for _, jwks := range i.jwks {
		jwks.Close()
	}
}

// validateSchema checks that required database tables exist.
func validateSchema(ctx context.Context, db *sql.DB) error {
	requiredTables := []string{"users", "auth_tokens"}

	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = 'public' AND table_name = $1
	`

	for _, table := range requiredTables {
		var name string
		err := db.QueryRowContext(ctx, query, table).Scan(&name)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("idm: missing table '%s' - run migrations first", table)
		}
		if err != nil {
			return fmt.Errorf("idm: failed to check schema: %w", err)
		}
	}

	return nil
}
