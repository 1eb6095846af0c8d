package throttle

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache keeps the last send time per (citizen, route) in Redis, with a
// TTL equal to the throttle window.
type RedisCache struct {
	client redis.Cmdable
	prefix string
}

// NewRedisCache creates a new Redis-backed throttle cache.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client, prefix: "throttle"}
}

// Key returns the Redis key for a citizen and route.
func (c *RedisCache) Key(citizenID, routeID string) string {
	return c.prefix + ":" + routeID + ":" + citizenID
}

// LastSent returns the cached send time, if any.
func (c *RedisCache) LastSent(ctx context.Context, citizenID, routeID string) (time.Time, bool, error) {
	val, err := c.client.Get(ctx, c.Key(citizenID, routeID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}

	ms, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}

// RecordSent stores the send time with the given TTL.
func (c *RedisCache) RecordSent(ctx context.Context, citizenID, routeID string, at time.Time, ttl time.Duration) error {
	return c.client.Set(ctx, c.Key(citizenID, routeID), strconv.FormatInt(at.UnixMilli(), 10), ttl).Err()
}
