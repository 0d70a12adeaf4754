package auth

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/tendant/tribe-auth/internal/config"
	"github.com/tendant/tribe-auth/pkg/domain"
)

// PasswordPolicy defines password complexity requirements.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		MaxLength:        cfg.MaxLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

// DefaultPasswordPolicy returns the policy applied when none is configured.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireNumber:    true,
	}
}

// ValidatePassword checks if a password meets the policy requirements. The
// result wraps domain.ErrWeakPassword.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	length := utf8.RuneCountInString(password)

	if p.MinLength > 0 && length < p.MinLength {
		return weak("must be at least %d characters long", p.MinLength)
	}

	// Bounds argon2 input.
	if p.MaxLength > 0 && length > p.MaxLength {
		return weak("must be at most %d characters long", p.MaxLength)
	}

	if p.RequireUppercase && !containsRune(password, unicode.IsUpper) {
		return weak("must contain at least one uppercase letter")
	}

	if p.RequireLowercase && !containsRune(password, unicode.IsLower) {
		return weak("must contain at least one lowercase letter")
	}

	if p.RequireNumber && !containsRune(password, unicode.IsDigit) {
		return weak("must contain at least one number")
	}

	if p.RequireSpecial && !containsRune(password, isSpecial) {
		return weak("must contain at least one special character")
	}

	return nil
}

func weak(format string, args ...any) error {
	return &domain.DetailError{Err: domain.ErrWeakPassword, Detail: "password " + fmt.Sprintf(format, args...)}
}

func containsRune(s string, match func(rune) bool) bool {
	for _, r := range s {
		if match(r) {
			return true
		}
	}
	return false
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
