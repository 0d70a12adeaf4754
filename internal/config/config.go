package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Store backends.
const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

const minJWTSecretLength = 32

// Config holds application configuration.
type Config struct {
	// Server
	ServerAddr      string        `env:"SERVER_ADDR"      envDefault:"0.0.0.0"`
	ServerPort      int           `env:"SERVER_PORT"      envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES"   envDefault:"1048576"`

	// HTTP
	Cookies         CookieConfig          `envPrefix:"COOKIE_"`
	SecurityHeaders SecurityHeadersConfig `envPrefix:"SECURITY_"`

	// Storage
	StoreBackend      string        `env:"STORE_BACKEND"        envDefault:"postgres"`
	DBHost            string        `env:"DB_HOST"              envDefault:"localhost"`
	DBPort            int           `env:"DB_PORT"              envDefault:"25432"`
	DBUser            string        `env:"DB_USER"              envDefault:"postgres"`
	DBPassword        string        `env:"DB_PASSWORD"          envDefault:"postgres"`
	DBName            string        `env:"DB_NAME"              envDefault:"tribe_auth"`
	DBSSLMode         string        `env:"DB_SSLMODE"           envDefault:"disable"`
	DBMaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS"    envDefault:"25"`
	DBMaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS"    envDefault:"5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	// JWT
	JWTSecret         string        `env:"JWT_SECRET"`
	JWTIssuer         string        `env:"JWT_ISSUER"          envDefault:"tribe-auth"`
	AccessTokenTTL    time.Duration `env:"ACCESS_TOKEN_TTL"    envDefault:"15m"`
	RefreshTokenTTL   time.Duration `env:"REFRESH_TOKEN_TTL"   envDefault:"168h"`
	AsyncTokenPersist bool          `env:"ASYNC_TOKEN_PERSIST" envDefault:"false"`

	// Single-use tokens
	EmailVerificationTTL time.Duration `env:"EMAIL_VERIFICATION_TTL" envDefault:"24h"`
	PasswordResetTTL     time.Duration `env:"PASSWORD_RESET_TTL"     envDefault:"1h"`
	SweepInterval        time.Duration `env:"TOKEN_SWEEP_INTERVAL"   envDefault:"1h"`

	// Lockout
	MaxFailedAttempts int           `env:"MAX_FAILED_ATTEMPTS" envDefault:"5"`
	LockoutDuration   time.Duration `env:"LOCKOUT_DURATION"    envDefault:"15m"`

	// Registration
	DefaultRole          string               `env:"DEFAULT_ROLE"           envDefault:"user"`
	BlockDisposableEmail bool                 `env:"BLOCK_DISPOSABLE_EMAIL" envDefault:"false"`
	PasswordPolicy       PasswordPolicyConfig `envPrefix:"PASSWORD_"`

	// Social providers
	GoogleClientIDs   []string `env:"GOOGLE_CLIENT_IDS"   envSeparator:","`
	AppleClientIDs    []string `env:"APPLE_CLIENT_IDS"    envSeparator:","`
	FacebookAppID     string   `env:"FACEBOOK_APP_ID"`
	FacebookAppSecret string   `env:"FACEBOOK_APP_SECRET"`
	FacebookGraphURL  string   `env:"FACEBOOK_GRAPH_URL"  envDefault:"https://graph.facebook.com"`

	// Email delivery. Without SMTP_HOST links are only logged.
	AppBaseURL   string `env:"APP_BASE_URL"   envDefault:"http://localhost:3000"`
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT"      envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM"      envDefault:"no-reply@tribe.local"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Tribe"`

	// Rate limits, requests per minute per client IP
	AuthRateLimit     int `env:"AUTH_RATE_LIMIT"     envDefault:"20"`
	RecoveryRateLimit int `env:"RECOVERY_RATE_LIMIT" envDefault:"5"`
	APIRateLimit      int `env:"API_RATE_LIMIT"      envDefault:"120"`
}

// PasswordPolicyConfig holds password complexity requirements.
type PasswordPolicyConfig struct {
	MinLength        int  `env:"MIN_LENGTH"        envDefault:"8"`
	MaxLength        int  `env:"MAX_LENGTH"        envDefault:"128"`
	RequireUppercase bool `env:"REQUIRE_UPPERCASE" envDefault:"true"`
	RequireLowercase bool `env:"REQUIRE_LOWERCASE" envDefault:"true"`
	RequireNumber    bool `env:"REQUIRE_NUMBER"    envDefault:"true"`
	RequireSpecial   bool `env:"REQUIRE_SPECIAL"   envDefault:"false"`
}

// CookieConfig controls the token cookies set for browser clients.
type CookieConfig struct {
	Domain string `env:"DOMAIN"`
	Secure bool   `env:"SECURE" envDefault:"true"`
}

// SecurityHeadersConfig holds the response headers applied to every reply.
type SecurityHeadersConfig struct {
	Enabled            bool   `env:"HEADERS_ENABLED"      envDefault:"true"`
	CSP                string `env:"CSP"                  envDefault:"default-src 'none'; frame-ancestors 'none'"`
	HSTSMaxAge         int    `env:"HSTS_MAX_AGE"         envDefault:"31536000"`
	FrameOptions       string `env:"FRAME_OPTIONS"        envDefault:"DENY"`
	ContentTypeOptions string `env:"CONTENT_TYPE_OPTIONS" envDefault:"nosniff"`
	ReferrerPolicy     string `env:"REFERRER_POLICY"      envDefault:"no-referrer"`
	PermissionsPolicy  string `env:"PERMISSIONS_POLICY"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and combinations.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if len(c.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength)
	}
	switch c.StoreBackend {
	case StoreBackendPostgres, StoreBackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if c.AccessTokenTTL >= c.RefreshTokenTTL {
		return errors.New("ACCESS_TOKEN_TTL must be shorter than REFRESH_TOKEN_TTL")
	}
	if (c.FacebookAppID == "") != (c.FacebookAppSecret == "") {
		return errors.New("FACEBOOK_APP_ID and FACEBOOK_APP_SECRET must be set together")
	}
	switch c.DefaultRole {
	case "user", "organizer":
	default:
		return fmt.Errorf("DEFAULT_ROLE %q is not assignable at registration", c.DefaultRole)
	}
	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerAddr, c.ServerPort)
}

// HasGoogle returns true if Google sign-in is configured.
func (c *Config) HasGoogle() bool {
	return len(c.GoogleClientIDs) > 0
}

// HasApple returns true if Sign in with Apple is configured.
func (c *Config) HasApple() bool {
	return len(c.AppleClientIDs) > 0
}

// HasFacebook returns true if Facebook login is configured.
func (c *Config) HasFacebook() bool {
	return c.FacebookAppID != "" && c.FacebookAppSecret != ""
}

// HasSMTP returns true if outbound email is configured.
func (c *Config) HasSMTP() bool {
	return c.SMTPHost != ""
}
