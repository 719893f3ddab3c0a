package permcache

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canopyhq/canopy/pkg/observability"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func newTestCache(t *testing.T, client *redis.Client, ttl time.Duration) *Cache {
	t.Helper()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	cache, err := NewCache(client, 16, ttl, logger, nil)
	require.NoError(t, err)
	return cache
}

func TestCacheSetGet(t *testing.T) {
	_, client := newTestRedis(t)
	cache := newTestCache(t, client, time.Minute)
	ctx := context.Background()

	payload := []byte(`{"role":"admin","source":"direct"}`)
	cache.Set(ctx, 42, 3, payload)

	got, ok := cache.Get(ctx, 42, 3)
	require.True(t, ok)
	assert.Equal(t, payload, got)

	_, ok = cache.Get(ctx, 42, 99)
	assert.False(t, ok)
}

func TestCacheL2Promotion(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := newTestCache(t, client, time.Minute)
	ctx := context.Background()

	// Seed redis directly; the L1 knows nothing about this key.
	require.NoError(t, mr.Set("canopy:perms:user:7:section:1", `{"role":"viewer"}`))

	got, ok := cache.Get(ctx, 7, 1)
	require.True(t, ok)
	assert.JSONEq(t, `{"role":"viewer"}`, string(got))

	// Second read is served from L1 even after the redis key disappears.
	mr.FlushAll()
	got, ok = cache.Get(ctx, 7, 1)
	require.True(t, ok)
	assert.JSONEq(t, `{"role":"viewer"}`, string(got))
}

func TestCacheInvalidateUser(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := newTestCache(t, client, time.Minute)
	ctx := context.Background()

	cache.Set(ctx, 42, 1, []byte(`{"role":"admin"}`))
	cache.Set(ctx, 42, 2, []byte(`{"role":"viewer"}`))
	cache.Set(ctx, 77, 1, []byte(`{"role":"viewer"}`))

	require.NoError(t, cache.InvalidateUser(ctx, 42))

	_, ok := cache.Get(ctx, 42, 1)
	assert.False(t, ok)
	_, ok = cache.Get(ctx, 42, 2)
	assert.False(t, ok)

	// Unrelated user survives.
	_, ok = cache.Get(ctx, 77, 1)
	assert.True(t, ok)
	assert.True(t, mr.Exists("canopy:perms:user:77:section:1"))
}

func TestCacheSweepExpired(t *testing.T) {
	_, client := newTestRedis(t)
	cache := newTestCache(t, client, 10*time.Millisecond)
	ctx := context.Background()

	cache.Set(ctx, 42, 1, []byte(`{}`))
	cache.Set(ctx, 42, 2, []byte(`{}`))

	time.Sleep(20 * time.Millisecond)
	removed := cache.SweepExpired()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, cache.SweepExpired())
}

func TestCacheListen(t *testing.T) {
	_, client := newTestRedis(t)
	cache := newTestCache(t, client, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cache.Set(ctx, 42, 1, []byte(`{"role":"admin"}`))

	done := make(chan struct{})
	go func() {
		_ = cache.Listen(ctx, "canopy:permissions")
		close(done)
	}()

	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	dispatcher := NewRedisDispatcher(client, "canopy:permissions", nil, logger, nil)
	require.NoError(t, dispatcher.NotifyPermissionsChanged(ctx, 42))

	assert.Eventually(t, func() bool {
		_, ok := cache.l1.Get("canopy:perms:user:42:section:1")
		return !ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
