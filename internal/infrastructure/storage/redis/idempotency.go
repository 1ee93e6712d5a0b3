package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "possync:idem:"

// NewClient подключается к Redis по URL и проверяет соединение.
func NewClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error pinging redis: %w", err)
	}
	return client, nil
}

// IdempotencyCache хранит соответствие ключа идемпотентности и id записи.
type IdempotencyCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdempotencyCache(client *redis.Client, ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{client: client, ttl: ttl}
}

func (c *IdempotencyCache) Lookup(ctx context.Context, ownerID, key string) (string, bool, error) {
	id, err := c.client.Get(ctx, cacheKey(ownerID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get idempotency key: %w", err)
	}
	return id, true, nil
}

func (c *IdempotencyCache) Remember(ctx context.Context, ownerID, key, id string) error {
	if err := c.client.Set(ctx, cacheKey(ownerID, key), id, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set idempotency key: %w", err)
	}
	return nil
}

func (c *IdempotencyCache) Close() error {
	return c.client.Close()
}

func cacheKey(ownerID, key string) string {
	return keyPrefix + ownerID + ":" + key
}
