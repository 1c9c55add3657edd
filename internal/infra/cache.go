package infra

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisJSONCache stores JSON-encoded values under caller-chosen keys.
// Callers embed a version in the key instead of invalidating.
type RedisJSONCache struct {
	rdb *redis.Client
}

func NewRedisJSONCache(rdb *redis.Client) *RedisJSONCache {
	return &RedisJSONCache{rdb: rdb}
}

// GetJSON decodes the value at key into dest. It reports false on a miss.
func (c *RedisJSONCache) GetJSON(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisJSONCache) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}
