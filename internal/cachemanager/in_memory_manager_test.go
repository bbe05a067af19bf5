package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type groupKey string

func newTestCache[V any]() *InMemoryCacheManager[groupKey, V] {
	return NewInMemoryCacheManager[groupKey, V]("test", DefaultExpiration, DefaultCleanupInterval)
}

func TestInMemoryCacheManager_SetAndGet(t *testing.T) {
	cache := newTestCache[[]string]()
	ctx := context.Background()

	cache.Set(ctx, "1:int@3", []string{"x", "y"}, DefaultExpiration)

	got, ok := cache.Get(ctx, "1:int@3")
	require.True(t, ok)
	require.Equal(t, []string{"x", "y"}, got)
	require.Equal(t, 1, cache.Len())
}

func TestInMemoryCacheManager_Miss(t *testing.T) {
	cache := newTestCache[string]()

	got, ok := cache.Get(context.Background(), "absent")
	require.False(t, ok)
	require.Empty(t, got)
	require.Equal(t, Stats{Hits: 0, Misses: 1, Items: 0}, cache.Stats())
}

func TestInMemoryCacheManager_WrongStoredType(t *testing.T) {
	cache := newTestCache[string]()
	cache.cache.Set("k", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "k")
	require.False(t, ok)
	require.Empty(t, got)
}

func TestInMemoryCacheManager_Expiry(t *testing.T) {
	cache := newTestCache[string]()
	ctx := context.Background()

	cache.Set(ctx, "short", "v", 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, ok := cache.Get(ctx, "short")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestInMemoryCacheManager_GetMultiple(t *testing.T) {
	cache := newTestCache[int]()
	ctx := context.Background()

	got, ok := cache.GetMultiple(ctx, nil)
	require.False(t, ok)
	require.Nil(t, got)

	got, ok = cache.GetMultiple(ctx, []groupKey{"a", "b"})
	require.False(t, ok)
	require.Nil(t, got)

	cache.Set(ctx, "a", 1, DefaultExpiration)
	cache.Set(ctx, "b", 2, DefaultExpiration)

	got, ok = cache.GetMultiple(ctx, []groupKey{"a", "b", "c"})
	require.True(t, ok)
	require.Equal(t, map[groupKey]int{"a": 1, "b": 2}, got)

	stats := cache.Stats()
	require.Equal(t, uint64(2), stats.Hits)
	require.Equal(t, uint64(3), stats.Misses)
}

func TestInMemoryCacheManager_DeleteAndFlush(t *testing.T) {
	cache := newTestCache[string]()
	ctx := context.Background()

	require.NoError(t, cache.Delete(ctx))

	cache.Set(ctx, "a", "1", DefaultExpiration)
	cache.Set(ctx, "b", "2", DefaultExpiration)
	cache.Set(ctx, "c", "3", DefaultExpiration)

	require.NoError(t, cache.Delete(ctx, "a"))
	_, ok := cache.Get(ctx, "a")
	require.False(t, ok)
	require.Equal(t, 2, cache.Len())

	require.NoError(t, cache.Flush(ctx))
	require.Equal(t, 0, cache.Len())
}
