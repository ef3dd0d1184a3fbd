package fetch

import "fmt"

// FetchError reports a failure to retrieve content from a source locator.
// It is never fatal to a batch: callers decide per-item retry policy based
// on Retryable.
type FetchError struct {
	// URL is the source locator that failed.
	URL string

	// StatusCode is the HTTP status of the final attempt, or 0 for
	// transport-level failures.
	StatusCode int

	// Err is the underlying cause.
	Err error

	retryable bool
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Timeouts, transport
// errors and 5xx responses are retryable; 4xx responses are not.
func (e *FetchError) Retryable() bool {
	return e.retryable
}
