// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glpidash/glpidash/internal/models"
)

type countingWarmer struct {
	dashboardCalls atomic.Int64
	rankingCalls   atomic.Int64
	err            error
}

func (c *countingWarmer) GetDashboardMetrics(ctx context.Context, filter models.Filter) (models.DashboardMetrics, error) {
	c.dashboardCalls.Add(1)
	return models.DashboardMetrics{}, c.err
}

func (c *countingWarmer) GetTechnicianRanking(ctx context.Context, filter models.Filter) ([]models.TechnicianRanking, error) {
	c.rankingCalls.Add(1)
	return nil, c.err
}

func TestRefreshServiceWarmsOnStartAndTick(t *testing.T) {
	warmer := &countingWarmer{}
	svc := NewRefreshService(warmer, time.Hour, time.Hour)
	svc.clock = func(time.Duration) *time.Ticker {
		return time.NewTicker(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected deadline exceeded, got %v", err)
	}

	// One startup warm plus at least one tick.
	if got := warmer.dashboardCalls.Load(); got < 2 {
		t.Errorf("Expected at least 2 warm cycles, got %d", got)
	}
	if warmer.rankingCalls.Load() < 2 {
		t.Errorf("Expected ranking warmed alongside dashboard, got %d", warmer.rankingCalls.Load())
	}
}

func TestRefreshServiceSurvivesWarmFailures(t *testing.T) {
	warmer := &countingWarmer{err: errors.New("upstream down")}
	svc := NewRefreshService(warmer, time.Hour, time.Hour)
	svc.clock = func(time.Duration) *time.Ticker {
		return time.NewTicker(10 * time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// A failing upstream must not crash the loop.
	err := svc.Serve(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Expected the loop to run until cancellation, got %v", err)
	}
	if warmer.dashboardCalls.Load() < 2 {
		t.Errorf("Expected continued warm attempts despite failures, got %d", warmer.dashboardCalls.Load())
	}
}
