package auth

import (
	"errors"
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/tendant/tribe-auth/pkg/domain"
)

// Common disposable email domains to block (can be extended)
var disposableDomains = map[string]bool{
	"tempmail.com":      true,
	"10minutemail.com":  true,
	"guerrillamail.com": true,
	"mailinator.com":    true,
	"throwaway.email":   true,
}

const maxEmailLength = 254 // RFC 5321

// ValidateEmail validates an email address for format and length. The result
// wraps domain.ErrInvalidEmail.
func ValidateEmail(email string, blockDisposable bool) error {
	normalized := NormalizeEmail(email)

	rules := []validation.Rule{
		validation.Required,
		validation.Length(3, maxEmailLength),
		is.Email,
	}
	if blockDisposable {
		rules = append(rules, validation.By(notDisposable))
	}

	if err := validation.Validate(normalized, rules...); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidEmail, err)
	}
	return nil
}

func notDisposable(value interface{}) error {
	s, _ := value.(string)
	if disposableDomains[getDomain(s)] {
		return errors.New("disposable email addresses are not allowed")
	}
	return nil
}

// NormalizeEmail normalizes an email address by lowercasing and trimming.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// getDomain extracts the domain from an email address.
func getDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}
