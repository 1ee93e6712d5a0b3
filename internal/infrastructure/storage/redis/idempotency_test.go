package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// getTestCache подключается к Redis из POSSYNC_TEST_REDIS_URL.
func getTestCache(t *testing.T, ttl time.Duration) *IdempotencyCache {
	t.Helper()

	url := os.Getenv("POSSYNC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("POSSYNC_TEST_REDIS_URL is not set")
	}

	client, err := NewClient(context.Background(), url)
	require.NoError(t, err, "Failed to connect to test Redis")

	cache := NewIdempotencyCache(client, ttl)
	t.Cleanup(func() { _ = cache.Close() })
	return cache
}

func TestIdempotencyCache_RememberLookup(t *testing.T) {
	cache := getTestCache(t, time.Minute)
	ctx := context.Background()
	owner, key := uuid.NewString(), uuid.NewString()

	_, ok, err := cache.Lookup(ctx, owner, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Remember(ctx, owner, key, "rec-1"))

	id, ok, err := cache.Lookup(ctx, owner, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "rec-1", id)

	// ключи разных владельцев не пересекаются
	_, ok, err = cache.Lookup(ctx, uuid.NewString(), key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdempotencyCache_Expires(t *testing.T) {
	cache := getTestCache(t, 100*time.Millisecond)
	ctx := context.Background()
	owner, key := uuid.NewString(), uuid.NewString()

	require.NoError(t, cache.Remember(ctx, owner, key, "rec-1"))

	assert.Eventually(t, func() bool {
		_, ok, err := cache.Lookup(ctx, owner, key)
		return err == nil && !ok
	}, 2*time.Second, 50*time.Millisecond)
}

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "possync:idem:owner:key", cacheKey("owner", "key"))
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(context.Background(), "not a url")
	assert.Error(t, err)
}
