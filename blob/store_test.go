package blob

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest builds each Store implementation that runs without
// external services.
func storesUnderTest(t *testing.T) map[string]Store {
	fs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { fs.Close() })

	mem := NewMemoryStore()
	t.Cleanup(func() { mem.Close() })

	return map[string]Store{
		"fs":     fs,
		"memory": mem,
	}
}

func TestStorePutGet(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("raw asset bytes")
			require.NoError(t, store.Put(ctx, "raw/abc123_1", data))

			got, err := store.Get(ctx, "raw/abc123_1")
			require.NoError(t, err)
			assert.Equal(t, data, got)

			exists, err := store.Exists(ctx, "raw/abc123_1")
			require.NoError(t, err)
			assert.True(t, exists)

			exists, err = store.Exists(ctx, "raw/missing")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "raw/nothing-here")
			assert.ErrorIs(t, err, ErrKeyNotFound)
		})
	}
}

func TestStorePutIdempotent(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("same bytes")
			require.NoError(t, store.Put(ctx, "raw/dup", data))

			// Re-putting identical bytes is a no-op
			require.NoError(t, store.Put(ctx, "raw/dup", data))

			// Different bytes under the same key violate append-only
			err := store.Put(ctx, "raw/dup", []byte("other bytes"))
			assert.ErrorIs(t, err, ErrKeyExists)

			got, err := store.Get(ctx, "raw/dup")
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}
}

func TestStoreEmptyKey(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Put(ctx, "", []byte("x"))
			assert.ErrorIs(t, err, ErrEmptyKey)
		})
	}
}

func TestFSStoreRejectsEscapingKeys(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	defer fs.Close()

	for _, key := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		err := fs.Put(ctx, key, []byte("x"))
		require.Error(t, err, "key %q must be rejected", key)
		assert.False(t, errors.Is(err, ErrKeyExists))
	}
}

func TestMemoryStoreLen(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	defer mem.Close()

	require.NoError(t, mem.Put(ctx, "a", []byte("1")))
	require.NoError(t, mem.Put(ctx, "b", []byte("2")))
	require.NoError(t, mem.Put(ctx, "a", []byte("1"))) // idempotent re-put

	assert.Equal(t, 2, mem.Len())
}
