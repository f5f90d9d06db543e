package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrUnknownProvider = errors.New("unknown provider")
	ErrProviderTimeout = errors.New("provider timeout")
	ErrProviderFailure = errors.New("provider failure")
	ErrNetwork         = errors.New("network error")
	ErrNotConfigured   = errors.New("provider not configured")
)

// RateLimitError is returned when a user exhausted the hourly quota.
type RateLimitError struct {
	// RetryAfter is the number of seconds until the next window opens.
	RetryAfter int
	Limit      int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("Rate limit exceeded. Maximum %d operations per hour. Try again later.", e.Limit)
}

// IsRateLimitError reports whether err carries a RateLimitError.
func IsRateLimitError(err error) bool {
	var rlErr *RateLimitError
	return errors.As(err, &rlErr)
}

// UnsupportedOperationError signals a provider/operation pairing that has no
// implementation. It is a caller or configuration bug, never retryable.
type UnsupportedOperationError struct {
	Provider  ProviderName
	Operation Operation
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("operation %s is not supported by provider %s", e.Operation, e.Provider)
}

// Unsupported builds an UnsupportedOperationError.
func Unsupported(provider ProviderName, op Operation) error {
	return &UnsupportedOperationError{Provider: provider, Operation: op}
}

// IsUnsupported reports whether err carries an UnsupportedOperationError.
func IsUnsupported(err error) bool {
	var opErr *UnsupportedOperationError
	return errors.As(err, &opErr)
}

// InvalidInputf wraps ErrInvalidInput with a formatted message.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
