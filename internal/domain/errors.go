package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks a missing credential or key. Not retryable.
	ErrConfiguration = errors.New("configuration error")
	// ErrReauthRequired means the user must go through the consent screen again.
	ErrReauthRequired = errors.New("google authorization expired, reconnect your account")
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation failed")
	ErrNoConnection   = errors.New("google business account not connected")
	// ErrLocationNotFound is returned when no Business Profile location matches a Place ID.
	ErrLocationNotFound = errors.New("location not found in any google business account")
	ErrAlreadyExists    = errors.New("already exists")
)

// MissingKey builds an ErrConfiguration naming the absent setting.
func MissingKey(key string) error {
	return fmt.Errorf("%w: %s is not set", ErrConfiguration, key)
}

// ProviderError is a non-2xx or malformed response from an external API.
type ProviderError struct {
	Service string // e.g. "accounts", "reviews", "places"
	Status  int    // HTTP status, 0 for transport or decode failures
	Message string
}

func (e *ProviderError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("google %s: %s", e.Service, e.Message)
	}
	return fmt.Sprintf("google %s: %s (status %d)", e.Service, e.Message, e.Status)
}

// IsProviderError reports whether err wraps a *ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
