package reprocess

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrProviderRequired is returned when no embedding provider is configured
	ErrProviderRequired = errors.New("embedding provider is required")
)
