package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned when the query is empty after trimming
	ErrInvalidQuery = errors.New("query must not be empty")
	// ErrQueryTooLong is returned when the query exceeds the configured length
	ErrQueryTooLong = errors.New("query is too long")
	// ErrNoResults is returned by one-shot endpoints when search found nothing
	ErrNoResults = errors.New("no results found")
)

// ConfigError reports a missing required credential or setting
type ConfigError struct {
	Key string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s not configured", e.Key)
}

// ProviderError reports a non-success response from an external provider
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s API error %d: %s", e.Provider, e.Status, e.Body)
}

// IsConfigError reports whether err wraps a ConfigError
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
