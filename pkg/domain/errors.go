package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the authentication core.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")
	ErrAccountNotVerified = errors.New("account not verified")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token expired")
	ErrForbidden          = errors.New("forbidden")
	ErrValidation         = errors.New("validation failed")
	ErrSocialAuth         = errors.New("social authentication failed")
	ErrNotFound           = errors.New("not found")
)

// Refinements. Each one matches its parent kind with errors.Is.
var (
	ErrEmailTaken               = fmt.Errorf("%w: email already registered", ErrValidation)
	ErrWeakPassword             = fmt.Errorf("%w: password does not meet requirements", ErrValidation)
	ErrInvalidEmail             = fmt.Errorf("%w: invalid email address", ErrValidation)
	ErrAccountNeedsLinking      = fmt.Errorf("%w: account exists with a different sign-in method", ErrSocialAuth)
	ErrUnsupportedProvider      = fmt.Errorf("%w: unsupported provider", ErrSocialAuth)
	ErrReauthenticationRequired = fmt.Errorf("%w: session rotation failed, login again", ErrInvalidToken)
)

// Storage errors. These never cross the SessionService boundary.
var (
	ErrUserNotFound  = fmt.Errorf("user %w", ErrNotFound)
	ErrTokenNotFound = fmt.Errorf("token %w", ErrNotFound)
	ErrDuplicate     = errors.New("duplicate record")
)

// Kind is the stable, user-facing classification of an error.
type Kind string

const (
	KindInvalidCredentials Kind = "invalid_credentials"
	KindAccountLocked      Kind = "account_locked"
	KindAccountNotVerified Kind = "account_not_verified"
	KindInvalidToken       Kind = "invalid_token"
	KindTokenExpired       Kind = "token_expired"
	KindForbidden          Kind = "forbidden"
	KindValidation         Kind = "validation_error"
	KindSocialAuth         Kind = "social_auth_error"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidCredentials, KindInvalidCredentials},
	{ErrAccountLocked, KindAccountLocked},
	{ErrAccountNotVerified, KindAccountNotVerified},
	{ErrInvalidToken, KindInvalidToken},
	{ErrTokenExpired, KindTokenExpired},
	{ErrForbidden, KindForbidden},
	{ErrValidation, KindValidation},
	{ErrSocialAuth, KindSocialAuth},
	{ErrNotFound, KindNotFound},
}

// KindOf classifies err. Errors outside the taxonomy are KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// IsKnown reports whether err belongs to the public taxonomy.
func IsKnown(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindInternal
}

// DetailError attaches a client-safe explanation to a taxonomy error. Detail
// must never contain collaborator output.
type DetailError struct {
	Err    error
	Detail string
}

func (e *DetailError) Error() string { return e.Err.Error() + ": " + e.Detail }

func (e *DetailError) Unwrap() error { return e.Err }

// PublicMessage returns a message for err that is safe to show to API
// clients. It never includes the text of wrapped causes.
func PublicMessage(err error) string {
	var detail *DetailError
	if errors.As(err, &detail) && detail.Detail != "" {
		return detail.Detail
	}
	for _, r := range publicRefinements {
		if errors.Is(err, r) {
			return r.Error()
		}
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.err.Error()
		}
	}
	return "internal error"
}

var publicRefinements = []error{
	ErrEmailTaken,
	ErrWeakPassword,
	ErrInvalidEmail,
	ErrAccountNeedsLinking,
	ErrUnsupportedProvider,
	ErrReauthenticationRequired,
}
