package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// KV is the subset of the Redis client the caches use.
type KV interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// JSONCache stores JSON documents under a key prefix.
type JSONCache struct {
	kv     KV
	prefix string
}

func NewJSONCache(kv KV, prefix string) *JSONCache {
	return &JSONCache{kv: kv, prefix: prefix}
}

func (c *JSONCache) key(k string) string { return c.prefix + k }

// Get decodes the value at key into out. A miss returns false and no error.
func (c *JSONCache) Get(ctx context.Context, key string, out any) (bool, error) {
	if c == nil || c.kv == nil {
		return false, nil
	}
	data, err := c.kv.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *JSONCache) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c == nil || c.kv == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.kv.Set(ctx, c.key(key), data, ttl).Err()
}

// Remember returns the cached value for key, or calls fetch and caches its
// result for ttl. Cache errors fall through to fetch.
func Remember[T any](ctx context.Context, c *JSONCache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var cached T
	hit, err := c.Get(ctx, key, &cached)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	}
	if hit {
		return cached, nil
	}

	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	return v, nil
}
