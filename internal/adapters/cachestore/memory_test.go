package cachestore_test

import (
	"testing"
	"time"

	"github.com/GennadiiFilatov/High-Load-Systems-Lab-2025/internal/adapters/cachestore"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	t.Parallel()

	store := cachestore.NewMemory(time.Minute)
	t.Cleanup(func() { store.Close() })

	ctx := t.Context()

	value, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)
	require.Nil(t, value)

	require.NoError(t, store.Set(ctx, "key1", []byte("value1"), time.Minute))

	value, found, err = store.Get(ctx, "key1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value1"), value)

	// Overwrite
	require.NoError(t, store.Set(ctx, "key1", []byte("value2"), time.Minute))
	value, found, err = store.Get(ctx, "key1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("value2"), value)
}

func TestMemoryTTLExpiry(t *testing.T) {
	t.Parallel()

	store := cachestore.NewMemory(time.Minute)
	t.Cleanup(func() { store.Close() })

	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "key1", []byte("value1"), 50*time.Millisecond))

	_, found, err := store.Get(ctx, "key1")
	require.NoError(t, err)
	require.True(t, found)

	require.Eventually(t, func() bool {
		_, found, err := store.Get(ctx, "key1")
		require.NoError(t, err)
		return !found
	}, time.Second, 10*time.Millisecond)
}

func TestMemoryDeleteAll(t *testing.T) {
	t.Parallel()

	t.Run("star pattern deletes everything", func(t *testing.T) {
		t.Parallel()
		store := cachestore.NewMemory(time.Minute)
		t.Cleanup(func() { store.Close() })

		ctx := t.Context()

		require.NoError(t, store.Set(ctx, "products:all:limit100", []byte("p"), time.Minute))
		require.NoError(t, store.Set(ctx, "users:all:limit50", []byte("u"), time.Minute))

		count, err := store.DeleteAll(ctx, "*")
		require.NoError(t, err)
		require.Equal(t, 2, count)

		_, found, err := store.Get(ctx, "products:all:limit100")
		require.NoError(t, err)
		require.False(t, found)
	})

	t.Run("glob pattern deletes matches only", func(t *testing.T) {
		t.Parallel()
		store := cachestore.NewMemory(time.Minute)
		t.Cleanup(func() { store.Close() })

		ctx := t.Context()

		require.NoError(t, store.Set(ctx, "products:all:limit100", []byte("p"), time.Minute))
		require.NoError(t, store.Set(ctx, "users:all:limit50", []byte("u"), time.Minute))

		count, err := store.DeleteAll(ctx, "products:*")
		require.NoError(t, err)
		require.Equal(t, 1, count)

		_, found, err := store.Get(ctx, "users:all:limit50")
		require.NoError(t, err)
		require.True(t, found)
	})
}

func TestMemoryStats(t *testing.T) {
	t.Parallel()

	store := cachestore.NewMemory(time.Minute)
	t.Cleanup(func() { store.Close() })

	ctx := t.Context()

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), stats.Keys)

	require.NoError(t, store.Set(ctx, "key1", []byte("value1"), time.Minute))
	require.NoError(t, store.Set(ctx, "key2", []byte("value2"), time.Minute))

	stats, err = store.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), stats.Keys)
}
