package adapter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "rads.dev/pkg/rads/internal/model"
)

func TestScanCacheKey(t *testing.T) {
	assert.NotEqual(t, ScanCacheKey("abc", true), ScanCacheKey("abc", false))
	assert.NotEqual(t, ScanCacheKey("abc", false), ScanCacheKey("abd", false))
	assert.Equal(t, ScanCacheKey("abc", true), ScanCacheKey("abc", true))
}

func TestBadgerScanCache(t *testing.T) {
	entry := CachedScan{
		Counters: m.CounterBlock{Functions: m.Count{Safe: 2, Unsafe: 1}, Exprs: m.Count{Unsafe: 4}},
		Suppression: m.Suppression{
			Root:    m.ScopeForbidden,
			Modules: map[string]m.ScopeState{"ffi": m.ScopePermitted},
		},
	}

	t.Run("in memory round trip", func(t *testing.T) {
		cache, err := NewBadgerScanCache(CacheConfig{InMemory: true})
		require.NoError(t, err)

		defer func() { _ = cache.Close() }()

		ctx := context.Background()

		_, hit, err := cache.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, hit)

		require.NoError(t, cache.Put(ctx, "k", entry))

		got, hit, err := cache.Get(ctx, "k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, entry, got)
	})

	t.Run("persists across reopen", func(t *testing.T) {
		dir := t.TempDir()

		cache, err := NewBadgerScanCache(CacheConfig{Dir: dir})
		require.NoError(t, err)
		require.NoError(t, cache.Put(context.Background(), "k", entry))
		require.NoError(t, cache.Close())

		reopened, err := NewBadgerScanCache(CacheConfig{Dir: dir})
		require.NoError(t, err)

		defer func() { _ = reopened.Close() }()

		got, hit, err := reopened.Get(context.Background(), "k")
		require.NoError(t, err)
		require.True(t, hit)
		assert.Equal(t, entry, got)
	})

	t.Run("requires a directory", func(t *testing.T) {
		_, err := NewBadgerScanCache(CacheConfig{})
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cache, err := NewBadgerScanCache(CacheConfig{InMemory: true})
		require.NoError(t, err)

		defer func() { _ = cache.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.ErrorIs(t, cache.Put(ctx, "k", entry), context.Canceled)
	})
}

func TestNopScanCache(t *testing.T) {
	var cache ScanCache = NopScanCache{}

	require.NoError(t, cache.Put(context.Background(), "k", CachedScan{}))

	_, hit, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, hit)
	require.NoError(t, cache.Close())
}
