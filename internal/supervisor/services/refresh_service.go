// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package services

import (
	"context"
	"time"

	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/models"
)

// DashboardWarmer is the slice of the metrics facade the refresh loop
// needs.
type DashboardWarmer interface {
	GetDashboardMetrics(ctx context.Context, filter models.Filter) (models.DashboardMetrics, error)
	GetTechnicianRanking(ctx context.Context, filter models.Filter) ([]models.TechnicianRanking, error)
}

// RefreshService periodically recomputes the default dashboard window
// so interactive requests hit a warm cache, and so stale-serving has a
// recent result to fall back on during upstream outages.
type RefreshService struct {
	warmer   DashboardWarmer
	interval time.Duration
	window   time.Duration
	name     string

	// clock is the ticker factory, swappable in tests.
	clock func(d time.Duration) *time.Ticker
}

// NewRefreshService creates the refresh loop. window is the time span
// the warmed dashboard covers, ending at each cycle's start.
func NewRefreshService(warmer DashboardWarmer, interval, window time.Duration) *RefreshService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &RefreshService{
		warmer:   warmer,
		interval: interval,
		window:   window,
		name:     "cache-refresh",
		clock:    time.NewTicker,
	}
}

// Serve implements suture.Service: one warm cycle at startup, then one
// per interval until the context is canceled. Failed cycles only log;
// the upstream being down is exactly the situation the warm cache is
// for, so the loop must ride outages out rather than crash.
func (r *RefreshService) Serve(ctx context.Context) error {
	r.warm(ctx)

	ticker := r.clock(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.warm(ctx)
		}
	}
}

func (r *RefreshService) warm(ctx context.Context) {
	// Truncated to the minute so the warmed key matches the key
	// interactive requests derive for their default window.
	now := time.Now().UTC().Truncate(time.Minute)
	filter := models.Filter{From: now.Add(-r.window), To: now}

	start := time.Now()
	if _, err := r.warmer.GetDashboardMetrics(ctx, filter); err != nil {
		logging.Warn().Err(err).Msg("Dashboard cache warm failed")
		return
	}
	if _, err := r.warmer.GetTechnicianRanking(ctx, filter); err != nil {
		logging.Warn().Err(err).Msg("Ranking cache warm failed")
		return
	}
	logging.Debug().Dur("duration", time.Since(start)).Msg("Cache warm cycle complete")
}

// String identifies the service in suture's logs.
func (r *RefreshService) String() string {
	return r.name
}
