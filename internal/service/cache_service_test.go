package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection reset")
}

func (brokenCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return errors.New("connection reset")
}

func (brokenCache) DeleteByPattern(ctx context.Context, pattern string) error {
	return errors.New("connection reset")
}

func TestCacheServiceNamespacesKeys(t *testing.T) {
	store := newMemoryCache()
	cache := NewCacheService(store, "programs", 0, nil, nil)

	cache.Set(context.Background(), "item:1", map[string]string{"name": "HIV Program"})
	require.Contains(t, store.entries, "programs:item:1")

	var got map[string]string
	require.True(t, cache.Get(context.Background(), "item:1", &got))
	assert.Equal(t, "HIV Program", got["name"])

	store.entries["clients:item:1"] = []byte(`{}`)
	cache.Invalidate(context.Background())
	assert.Equal(t, 1, store.len())
}

func TestCacheServiceNilIsDisabled(t *testing.T) {
	var cache *CacheService
	assert.False(t, cache.Enabled())

	calls := 0
	for i := 0; i < 2; i++ {
		v, err := readThrough(context.Background(), cache, "k", func() (int, error) {
			calls++
			return 7, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 7, v)
	}
	assert.Equal(t, 2, calls)
	cache.Invalidate(context.Background())
}

func TestReadThroughSkipsFailedLoads(t *testing.T) {
	store := newMemoryCache()
	cache := NewCacheService(store, "programs", time.Minute, NewMetricsService(), nil)

	_, err := readThrough(context.Background(), cache, "item:x", func() (string, error) {
		return "", errors.New("boom")
	})
	require.Error(t, err)
	assert.Zero(t, store.len())

	v, err := readThrough(context.Background(), cache, "item:x", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, 1, store.sets)
}

func TestCacheServiceToleratesStoreFailures(t *testing.T) {
	cache := NewCacheService(brokenCache{}, "programs", 0, nil, nil)

	v, err := readThrough(context.Background(), cache, "list", func() ([]string, error) {
		return []string{"HIV Program"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"HIV Program"}, v)
	cache.Invalidate(context.Background())
}
