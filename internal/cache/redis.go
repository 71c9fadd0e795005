// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/goccy/go-json"

	"github.com/glpidash/glpidash/internal/logging"
)

// redisOpTimeout bounds every Redis round trip so a slow cache can
// never stall a dashboard request longer than this.
const redisOpTimeout = 2 * time.Second

// RedisCache implements Cacher on a shared Redis instance. Values are
// stored as JSON; the decode factory supplies a typed destination for
// each Get, since a deserialized interface{} would lose the concrete
// type across process boundaries.
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	decode  func() interface{}
	hits    int64
	misses  int64
	evicted int64
}

// NewRedis creates a Redis-backed cache.
//
// decode must return a fresh pointer to the value type stored in this
// cache; Get unmarshals into it and returns it. Example:
//
//	c := cache.NewRedis(client, 5*time.Minute, func() interface{} {
//	    return new(models.DashboardMetrics)
//	})
func NewRedis(client *redis.Client, ttl time.Duration, decode func() interface{}) *RedisCache {
	return &RedisCache{
		client: client,
		ttl:    ttl,
		decode: decode,
	}
}

// Get retrieves and decodes a value. Redis errors are treated as cache
// misses: the caller recomputes, it never fails a request.
func (r *RedisCache) Get(key string) (interface{}, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			logging.Warn().Err(err).Str("key", key).Msg("redis get failed, treating as miss")
		}
		atomic.AddInt64(&r.misses, 1)
		return nil, false
	}

	value := r.decode()
	if err := json.Unmarshal(data, value); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("redis entry undecodable, evicting")
		r.Delete(key)
		atomic.AddInt64(&r.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&r.hits, 1)
	return value, true
}

// Set stores a value with the default TTL.
func (r *RedisCache) Set(key string, value interface{}) {
	r.SetWithTTL(key, value, r.ttl)
}

// SetWithTTL stores a value with a custom TTL. Encoding or Redis
// failures are logged and dropped; caching is best effort.
func (r *RedisCache) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache value not serializable, skipping")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// Delete removes a key.
func (r *RedisCache) Delete(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.Del(ctx, key).Err(); err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("redis delete failed")
		return
	}
	atomic.AddInt64(&r.evicted, 1)
}

// Clear flushes the current Redis database.
func (r *RedisCache) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := r.client.FlushDB(ctx).Err(); err != nil {
		logging.Warn().Err(err).Msg("redis flush failed")
	}
}

// GetStats returns a snapshot of local hit/miss counters. Key counts
// live in Redis and are not tracked per process.
func (r *RedisCache) GetStats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&r.hits),
		Misses:    atomic.LoadInt64(&r.misses),
		Evictions: atomic.LoadInt64(&r.evicted),
	}
}

// HitRate returns the cache hit rate as a percentage.
func (r *RedisCache) HitRate() float64 {
	hits := atomic.LoadInt64(&r.hits)
	misses := atomic.LoadInt64(&r.misses)
	total := hits + misses
	if total == 0 {
		return 0.0
	}
	return float64(hits) / float64(total) * 100.0
}
