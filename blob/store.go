package blob

import (
	"bytes"
	"context"
	"errors"
)

var (
	// ErrKeyNotFound indicates that no object is stored under the key.
	ErrKeyNotFound = errors.New("blob key not found")

	// ErrKeyExists indicates that Put would overwrite an existing object
	// with different content. The store is append-only; this is a data
	// integrity violation, not a dedup no-op.
	ErrKeyExists = errors.New("blob key already exists with different content")

	// ErrEmptyKey indicates an empty storage key.
	ErrEmptyKey = errors.New("blob key cannot be empty")
)

// Store is the append-only asset store. Implementations must be thread-safe.
type Store interface {
	// Put stores data under key. Writing the same bytes to the same key
	// again is a no-op; writing different bytes to an existing key returns
	// ErrKeyExists.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the bytes stored under key.
	// Returns ErrKeyNotFound if the key is absent.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Close releases resources held by the store.
	Close() error
}

// sameContent reports whether stored bytes match the incoming write.
func sameContent(stored, incoming []byte) bool {
	return bytes.Equal(stored, incoming)
}
