// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

/*
Package dashboard is the metrics facade: the single entry point the
HTTP layer calls for dashboard data.

The facade composes the upstream gateway, the normalizer, the
aggregation engine, and the response cache into three operations:

  - GetDashboardMetrics: per-level breakdown, totals, and trends
  - GetTechnicianRanking: the technician leaderboard
  - HealthCheck: upstream reachability and session state

Caching policy: results are cached keyed by the canonical filter
encoding. A fresh entry (within CacheTTL) short-circuits the upstream
entirely. A stale entry is kept around for StaleTTL and served, marked
Stale, when a recompute fails because the upstream is unreachable.
Serving stale data is a deliberate availability trade: the dashboard
stays up through upstream outages, and consumers see the Stale flag.
*/
package dashboard

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/glpidash/glpidash/internal/aggregate"
	"github.com/glpidash/glpidash/internal/cache"
	"github.com/glpidash/glpidash/internal/glpi"
	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/metrics"
	"github.com/glpidash/glpidash/internal/models"
	"github.com/glpidash/glpidash/internal/normalize"
)

// SessionStatus is the slice of the session manager the facade needs
// for health reporting.
type SessionStatus interface {
	SessionValid() bool
}

// Config tunes the facade.
type Config struct {
	// CacheTTL is the freshness window for cached results. Default: 60s.
	CacheTTL time.Duration

	// StaleTTL is how long expired results are retained for
	// stale-serving during upstream outages. Default: 1h.
	StaleTTL time.Duration

	// RequestTimeout bounds one full fetch-normalize-aggregate cycle.
	// Default: 30s.
	RequestTimeout time.Duration

	// NameTTL is the technician-name cache lifetime. Default: 15m.
	NameTTL time.Duration

	// MaxTickets caps one listing as a runaway guard. 0 = unlimited.
	MaxTickets int

	// LevelGroups maps each support level to the upstream group IDs
	// that staff it. The ranking roster is drawn from these groups so
	// technicians without tickets in the window still appear.
	LevelGroups map[models.LevelKind][]int
}

// Service implements the metrics facade.
type Service struct {
	api        glpi.API
	sessions   SessionStatus
	normalizer *normalize.Normalizer
	results    cache.Cacher
	names      *nameCache
	cfg        Config
}

// cacheEntry is the stored form of a computed result, dashboard or
// ranking, with its storage time deciding freshness independently of
// the cache's own expiry. The key prefix selects which field is set;
// one shared shape keeps the results cache decodable from a single
// Redis factory.
type cacheEntry struct {
	Metrics  *models.DashboardMetrics   `json:"metrics,omitempty"`
	Rankings []models.TechnicianRanking `json:"rankings,omitempty"`
	StoredAt time.Time                  `json:"stored_at"`
}

// ResultEntry is the decode factory for a Redis-backed results cache.
func ResultEntry() interface{} {
	return new(cacheEntry)
}

// entryFromCache normalizes a cache hit: the memory backend returns
// the stored value, the Redis backend a decoded pointer.
func entryFromCache(value interface{}) (cacheEntry, bool) {
	switch v := value.(type) {
	case cacheEntry:
		return v, true
	case *cacheEntry:
		return *v, true
	}
	return cacheEntry{}, false
}

// New builds the facade. results holds computed responses for
// CacheTTL-fresh serving and StaleTTL-stale fallback; nameCacher holds
// resolved technician names.
func New(api glpi.API, sessions SessionStatus, normalizer *normalize.Normalizer, results cache.Cacher, nameCacher cache.Cacher, cfg Config) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	if cfg.StaleTTL <= 0 {
		cfg.StaleTTL = time.Hour
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &Service{
		api:        api,
		sessions:   sessions,
		normalizer: normalizer,
		results:    results,
		names:      newNameCache(api, nameCacher, cfg.NameTTL),
		cfg:        cfg,
	}
}

// GetDashboardMetrics returns the aggregated dashboard for the filter,
// serving from cache when fresh and falling back to a stale copy when
// the upstream is unreachable.
func (s *Service) GetDashboardMetrics(ctx context.Context, filter models.Filter) (models.DashboardMetrics, error) {
	key := "dashboard:" + filter.CanonicalKey()

	var stale *cacheEntry
	if value, ok := s.results.Get(key); ok {
		if entry, ok := entryFromCache(value); ok && entry.Metrics != nil {
			if time.Since(entry.StoredAt) <= s.cfg.CacheTTL {
				metrics.CacheHits.WithLabelValues("dashboard").Inc()
				return *entry.Metrics, nil
			}
			stale = &entry
		}
	}
	metrics.CacheMisses.WithLabelValues("dashboard").Inc()

	result, err := s.computeMetrics(ctx, filter)
	if err != nil {
		if stale != nil && errors.Is(err, glpi.ErrUpstreamUnavailable) {
			metrics.StaleServedTotal.Inc()
			logging.Warn().
				Err(err).
				Time("stored_at", stale.StoredAt).
				Msg("Upstream unreachable, serving stale dashboard")
			staleCopy := *stale.Metrics
			staleCopy.Stale = true
			return staleCopy, nil
		}
		return models.DashboardMetrics{}, err
	}

	s.results.SetWithTTL(key, cacheEntry{Metrics: &result, StoredAt: time.Now()}, s.cfg.StaleTTL)
	return result, nil
}

// computeMetrics runs one full fetch-normalize-aggregate cycle.
func (s *Service) computeMetrics(ctx context.Context, filter models.Filter) (models.DashboardMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	tickets, skipped, partial, err := s.fetchCanonical(ctx, filter)
	if err != nil {
		return models.DashboardMetrics{}, err
	}

	summary := aggregate.Summarize(tickets)

	result := models.DashboardMetrics{
		PerLevel:       summary.PerLevel,
		Totals:         summary.Totals,
		GeneratedAt:    time.Now().UTC(),
		SkippedRecords: skipped,
		Degraded:       partial,
	}

	// Trends need the preceding window. A failed prior fetch degrades
	// the response rather than failing it: the current breakdown is
	// still correct.
	priorTickets, _, priorPartial, err := s.fetchCanonical(ctx, filter.PriorPeriod())
	if err != nil {
		logging.Warn().Err(err).Msg("Prior-period fetch failed, omitting trends")
		result.Degraded = true
		return result, nil
	}
	if priorPartial {
		// Trends against a truncated baseline are directional at best.
		result.Degraded = true
	}
	result.Trends = aggregate.Trends(summary.StatusCounts, aggregate.Summarize(priorTickets).StatusCounts)

	return result, nil
}

// GetTechnicianRanking returns the leaderboard for the filter with the
// same cache-then-compute and stale-fallback policy as the dashboard.
func (s *Service) GetTechnicianRanking(ctx context.Context, filter models.Filter) ([]models.TechnicianRanking, error) {
	key := "ranking:" + filter.CanonicalKey()

	var stale *cacheEntry
	if value, ok := s.results.Get(key); ok {
		if entry, ok := entryFromCache(value); ok {
			if time.Since(entry.StoredAt) <= s.cfg.CacheTTL {
				metrics.CacheHits.WithLabelValues("ranking").Inc()
				return entry.Rankings, nil
			}
			stale = &entry
		}
	}
	metrics.CacheMisses.WithLabelValues("ranking").Inc()

	rankings, err := s.computeRanking(ctx, filter)
	if err != nil {
		if stale != nil && errors.Is(err, glpi.ErrUpstreamUnavailable) {
			metrics.StaleServedTotal.Inc()
			logging.Warn().
				Err(err).
				Time("stored_at", stale.StoredAt).
				Msg("Upstream unreachable, serving stale ranking")
			return stale.Rankings, nil
		}
		return nil, err
	}

	s.results.SetWithTTL(key, cacheEntry{Rankings: rankings, StoredAt: time.Now()}, s.cfg.StaleTTL)
	return rankings, nil
}

func (s *Service) computeRanking(ctx context.Context, filter models.Filter) ([]models.TechnicianRanking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	tickets, _, _, err := s.fetchCanonical(ctx, filter)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(tickets))
	for _, ticket := range tickets {
		ids = append(ids, ticket.AssigneeIDs...)
	}

	// Rostered technicians rank even with zero tickets in the window.
	// A failed membership lookup degrades to assignees-only rather
	// than failing the request.
	for _, groupID := range s.rosterGroups(filter) {
		members, err := s.api.GetGroupMembership(ctx, groupID)
		if err != nil {
			logging.Warn().Err(err).Str("group_id", groupID).Msg("Group membership lookup failed, roster incomplete")
			continue
		}
		ids = append(ids, members...)
	}

	resolved, _ := s.names.Resolve(ctx, ids)

	roster := make([]models.Technician, 0, len(resolved))
	for _, tech := range resolved {
		roster = append(roster, tech)
	}

	return aggregate.Rank(tickets, roster), nil
}

// rosterGroups returns the group IDs whose members form the ranking
// roster: the filtered levels' groups, or every configured group when
// the filter does not restrict levels.
func (s *Service) rosterGroups(filter models.Filter) []string {
	levels := filter.Levels
	if len(levels) == 0 {
		levels = make([]models.LevelKind, 0, len(s.cfg.LevelGroups))
		for level := range s.cfg.LevelGroups {
			levels = append(levels, level)
		}
		sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	}

	var groups []string
	for _, level := range levels {
		for _, id := range s.cfg.LevelGroups[level] {
			groups = append(groups, strconv.Itoa(id))
		}
	}
	return groups
}

// HealthCheck verifies upstream reachability and reports session state.
func (s *Service) HealthCheck(ctx context.Context) models.HealthStatus {
	return models.HealthStatus{
		UpstreamReachable: s.api.Ping(ctx) == nil,
		SessionValid:      s.sessions.SessionValid(),
	}
}

// fetchCanonical lists raw tickets for the filter and normalizes them.
// Level filtering for LevelUnknown cannot be expressed upstream, so the
// level restriction is re-applied after normalization. partial reports
// a listing cut short by the deadline; the rows that did arrive are
// still normalized and returned.
func (s *Service) fetchCanonical(ctx context.Context, filter models.Filter) (canonical []models.CanonicalTicket, skippedCount int, partial bool, err error) {
	raw, err := s.api.ListTickets(ctx, filter, s.cfg.MaxTickets)
	if err != nil {
		if !errors.Is(err, glpi.ErrPartialResult) {
			return nil, 0, false, err
		}
		partial = true
		logging.Warn().Err(err).Msg("Ticket listing cut short, continuing with partial snapshot")
	}

	tickets, skipped := s.normalizer.NormalizeBatch(raw)

	if len(filter.Levels) > 0 {
		wanted := make(map[models.LevelKind]struct{}, len(filter.Levels))
		for _, level := range filter.Levels {
			wanted[level] = struct{}{}
		}
		filtered := tickets[:0]
		for _, ticket := range tickets {
			if _, ok := wanted[ticket.Level]; ok {
				filtered = append(filtered, ticket)
			}
		}
		tickets = filtered
	}

	return tickets, skipped, partial, nil
}
