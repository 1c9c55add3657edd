package infra

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a TTL-expiring keyed counter. The first hit of a window
// creates the key with the window as its TTL; Redis drops it afterwards, so no
// process keeps per-client state or needs a purge loop.
type RedisCounter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCounter(rdb *redis.Client, prefix string) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix}
}

// Incr bumps key and returns the new count and the time left in the window.
func (c *RedisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	full := c.prefix + key
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, full)
		pipe.ExpireNX(ctx, full, window)
		ttl = pipe.TTL(ctx, full)
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return incr.Val(), ttl.Val(), nil
}
