// Package rediscache implements an optional cache.RequestCache backed by
// Redis, for callers who want a request-time cache shared across resolver
// instances in the same process pool instead of the default in-process
// memory.Cache. Grounded on the teacher's db/repository.RedisRepository
// (SETNX/GET with TTL).
package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"rulesengine/cache"
	"rulesengine/common"
)

// Cache implements cache.RequestCache against a Redis/Valkey instance.
// Unlike memory.Cache, entries carry a TTL rather than being scoped
// strictly to one resolution, since the whole point of sharing it across
// processes is outliving any single Resolve call.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// New connects to the Redis instance at url and returns a Cache whose
// entries expire after ttl.
func New(url string, ttl time.Duration) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Cache{client: client, prefix: "rulesengine:reqcache:", ttl: ttl}, nil
}

// Get implements cache.RequestCache. A Redis error (including a cache
// miss) is logged and treated as a miss rather than propagated, since a
// cold/unavailable cache must never abort resolution.
func (c *Cache) Get(key string) (cache.Entry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			common.Logger.WithError(err).WithField("key", key).Warn("request cache read failed, treating as miss")
		}
		return cache.Entry{}, false
	}

	var entry cache.Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		common.Logger.WithError(err).WithField("key", key).Warn("request cache entry corrupt, treating as miss")
		return cache.Entry{}, false
	}
	return entry, true
}

// Set implements cache.RequestCache, best-effort: a write failure is
// logged, never propagated, since losing a memoization opportunity is
// not fatal to resolution.
func (c *Cache) Set(key string, entry cache.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(entry)
	if err != nil {
		common.Logger.WithError(err).WithField("key", key).Warn("failed to marshal request cache entry")
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		common.Logger.WithError(err).WithField("key", key).Warn("request cache write failed")
	}
}

var _ cache.RequestCache = (*Cache)(nil)
