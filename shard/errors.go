package shard

import (
	"errors"
	"fmt"
)

var (
	// ErrWriterClosed is returned by Add after Close has been called.
	ErrWriterClosed = errors.New("shard writer is closed")

	// ErrInvalidCapacity is returned for a non-positive shard capacity.
	ErrInvalidCapacity = errors.New("shard capacity must be positive")
)

// WriteError reports a sample that could not be packed. The sample has
// already been recorded in the manifest's rejected list when this error
// is returned.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("shard write failed for sample %q: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
