package memoryinfra

import (
	"context"
	"errors"
	"time"

	"github.com/Abraxas-365/chatmemory/pkg/errx"
	"github.com/Abraxas-365/chatmemory/pkg/memory"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements memory.Cache on Redis string keys.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, memory.ErrCacheMiss().WithDetail("key", key)
		}
		return nil, errx.Wrap(err, "failed to read from Redis", errx.TypeExternal).
			WithDetail("key", key)
	}
	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to write to Redis", errx.TypeExternal).
			WithDetail("key", key)
	}
	return nil
}

func (c *RedisCache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return errx.Wrap(err, "failed to refresh Redis ttl", errx.TypeExternal).
			WithDetail("key", key)
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return errx.Wrap(err, "failed to delete from Redis", errx.TypeExternal).
			WithDetail("key", key)
	}
	return nil
}

func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, errx.Wrap(err, "failed to check Redis key", errx.TypeExternal).
			WithDetail("key", key)
	}
	return n == 1, nil
}

var _ memory.Cache = (*RedisCache)(nil)
