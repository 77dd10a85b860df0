package secretshare

import (
	"errors"
	"fmt"
)

// Error codes carried by AuthError. These are stable and safe to log or
// surface to clients.
const (
	ErrCodeDuplicateIdentity   = "duplicate_identity"
	ErrCodeInvalidCredential   = "invalid_credential"
	ErrCodeUpstreamAuthFailure = "upstream_auth_failure"
	ErrCodeStoreUnavailable    = "store_unavailable"
)

var (
	// ErrDuplicateIdentity is returned when registering a username that is already taken.
	ErrDuplicateIdentity = errors.New("identity already registered")

	// ErrInvalidCredential is returned for an unknown username or a password mismatch.
	ErrInvalidCredential = errors.New("invalid credentials")

	// ErrUpstreamAuthFailure is returned when an OAuth provider rejects the login
	// or returns a profile without an id.
	ErrUpstreamAuthFailure = errors.New("upstream authentication failed")

	// ErrProviderNotConfigured is reported for an OAuth route whose provider
	// has no client credentials.
	ErrProviderNotConfigured = errors.New("oauth provider not configured")

	// ErrStoreUnavailable wraps any failure talking to the user store.
	ErrStoreUnavailable = errors.New("user store unavailable")

	// ErrUserNotFound is returned by stores when a lookup key has no record.
	ErrUserNotFound = errors.New("user not found")
)

// AuthError describes why an authentication attempt failed.
type AuthError struct {
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// NewAuthError builds an AuthError whose code is derived from the sentinel it wraps.
func NewAuthError(err error, message string) *AuthError {
	return &AuthError{Code: errorCode(err), Message: message, Err: err}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrDuplicateIdentity):
		return ErrCodeDuplicateIdentity
	case errors.Is(err, ErrInvalidCredential), errors.Is(err, ErrUserNotFound):
		return ErrCodeInvalidCredential
	case errors.Is(err, ErrUpstreamAuthFailure):
		return ErrCodeUpstreamAuthFailure
	default:
		return ErrCodeStoreUnavailable
	}
}

// StoreError wraps a driver error so that it matches ErrStoreUnavailable while
// keeping the original cause in the chain.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
