// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package cache provides the response cache port used by the metrics
// facade: a TTL-based in-memory implementation and a Redis-backed one.
package cache

import "time"

// Cacher defines the interface for cache implementations. The metrics
// facade and the technician-name cache depend only on this interface,
// so the backend can be switched via configuration.
//
//	var c Cacher = New(5 * time.Minute)
//	c.Set("key", value)
//	if val, ok := c.Get("key"); ok {
//	    // use cached value
//	}
type Cacher interface {
	// Get retrieves a value from the cache.
	// Returns the value and true if found and not expired.
	Get(key string) (interface{}, bool)

	// Set stores a value in the cache with the default TTL.
	Set(key string, value interface{})

	// SetWithTTL stores a value with a custom TTL.
	SetWithTTL(key string, value interface{}, ttl time.Duration)

	// Delete removes a value from the cache.
	Delete(key string)

	// Clear removes all entries from the cache.
	Clear()

	// GetStats returns cache statistics.
	GetStats() Stats

	// HitRate returns the cache hit rate as a percentage.
	HitRate() float64
}

// Backend selects the cache implementation.
type Backend string

const (
	// BackendMemory is the in-process TTL cache (default).
	BackendMemory Backend = "memory"

	// BackendRedis is the shared Redis cache, for deployments running
	// more than one replica behind a load balancer.
	BackendRedis Backend = "redis"
)

// Verify interface implementations at compile time
var (
	_ Cacher = (*Cache)(nil)
	_ Cacher = (*RedisCache)(nil)
)
