// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package dashboard

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/glpidash/glpidash/internal/cache"
	"github.com/glpidash/glpidash/internal/glpi"
	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/metrics"
	"github.com/glpidash/glpidash/internal/models"
)

// nameResolveConcurrency bounds parallel user lookups so a large
// ranking request cannot flood the upstream.
const nameResolveConcurrency = 8

// nameCache resolves assignee IDs to display names, caching resolved
// names so repeated ranking requests do not re-fetch every user.
type nameCache struct {
	api   glpi.API
	cache cache.Cacher
	ttl   time.Duration
}

func newNameCache(api glpi.API, cacher cache.Cacher, ttl time.Duration) *nameCache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &nameCache{api: api, cache: cacher, ttl: ttl}
}

// technicianFromCache normalizes a cache hit: the memory backend
// returns the stored value, the Redis backend a decoded pointer.
func technicianFromCache(value interface{}) (models.Technician, bool) {
	switch v := value.(type) {
	case models.Technician:
		return v, true
	case *models.Technician:
		return *v, true
	}
	return models.Technician{}, false
}

// Resolve maps technician IDs to Technicians. IDs that cannot be
// resolved get a placeholder name; degraded reports whether any lookup
// failed, so the caller can flag the response instead of failing it.
func (nc *nameCache) Resolve(ctx context.Context, ids []string) (map[string]models.Technician, bool) {
	resolved := make(map[string]models.Technician, len(ids))
	var pending []string

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if value, ok := nc.cache.Get("name:" + id); ok {
			if tech, ok := technicianFromCache(value); ok {
				metrics.CacheHits.WithLabelValues("names").Inc()
				resolved[id] = tech
				continue
			}
		}
		metrics.CacheMisses.WithLabelValues("names").Inc()
		pending = append(pending, id)
	}

	if len(pending) == 0 {
		return resolved, false
	}

	var (
		mu       sync.Mutex
		degraded bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(nameResolveConcurrency)

	for _, id := range pending {
		id := id
		g.Go(func() error {
			user, err := nc.api.GetUser(gctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logging.Debug().Err(err).Str("technician_id", id).Msg("Technician name lookup failed, using placeholder")
				degraded = true
				resolved[id] = models.Technician{ID: id, DisplayName: "Technician #" + id}
				return nil
			}
			tech := models.Technician{ID: id, DisplayName: user.DisplayName()}
			resolved[id] = tech
			nc.cache.SetWithTTL("name:"+id, tech, nc.ttl)
			return nil
		})
	}
	// Workers never return errors; failures degrade to placeholders.
	_ = g.Wait()

	return resolved, degraded
}
