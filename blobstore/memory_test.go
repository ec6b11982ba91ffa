package blobstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "a/one", []byte("hello")))

	blob, err := store.Open(ctx, "a/one")
	require.NoError(t, err)
	defer blob.Close()

	require.Equal(t, int64(5), blob.Size())

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestMemoryStoreOpenMissing(t *testing.T) {
	_, err := NewMemoryStore().Open(context.Background(), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreCreate(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	w, err := store.Create(ctx, "blob")
	require.NoError(t, err)

	_, err = w.Write([]byte("part1"))
	require.NoError(t, err)
	_, err = w.Write([]byte("part2"))
	require.NoError(t, err)

	// Not visible until Close.
	_, err = store.Open(ctx, "blob")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, "part1part2", string(data))
}

func TestMemoryStoreDeleteAndList(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Put(ctx, "x/a", []byte("1")))
	require.NoError(t, store.Put(ctx, "x/b", []byte("2")))
	require.NoError(t, store.Put(ctx, "y/c", []byte("3")))

	names, err := store.List(ctx, "x/")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"x/a", "x/b"}, names)

	require.NoError(t, store.Delete(ctx, "x/a"))
	require.NoError(t, store.Delete(ctx, "x/a")) // idempotent

	names, err = store.List(ctx, "x/")
	require.NoError(t, err)
	require.Equal(t, []string{"x/b"}, names)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	src := []byte("original")
	require.NoError(t, store.Put(ctx, "blob", src))
	src[0] = 'X'

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	data, err := ReadAll(ctx, blob)
	require.NoError(t, err)
	require.Equal(t, "original", string(data))
}
