// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

/*
Package aggregate computes dashboard metrics from canonical tickets.

The engine is pure: it takes a slice of normalized tickets and produces
counts, rankings, and trends without touching the network or the cache.
All aggregation is single-pass per concern, so cost is linear in the
number of tickets regardless of how many levels and statuses are in
play.
*/
package aggregate

import (
	"time"

	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/metrics"
	"github.com/glpidash/glpidash/internal/models"
)

// Summary is the per-level breakdown plus raw status counts produced
// by one pass over a ticket batch.
type Summary struct {
	// PerLevel holds one LevelMetrics per level that appears in the
	// batch, LevelUnknown included when present.
	PerLevel map[models.LevelKind]models.LevelMetrics

	// Totals is the element-wise sum across all levels.
	Totals models.LevelMetrics

	// StatusCounts counts tickets per canonical status, Closed and
	// Unknown tracked separately. Input for trend computation.
	StatusCounts map[models.StatusKind]int
}

// statusBuckets is the per-level accumulator.
type statusBuckets struct {
	newCount   int
	pending    int
	inProgress int
	resolved   int
}

// Summarize buckets tickets by (level, status) in a single pass.
//
// Closed tickets count into the Resolved bucket of the level breakdown
// since the dashboard presents them together; StatusCounts still tracks
// Closed on its own for trends. Tickets with an unknown status are
// counted in StatusCounts but excluded from the level buckets, so the
// Total invariant stays derivable from the four status columns.
func Summarize(tickets []models.CanonicalTicket) Summary {
	start := time.Now()
	defer func() {
		metrics.AggregationDuration.Observe(time.Since(start).Seconds())
	}()

	buckets := make(map[models.LevelKind]*statusBuckets)
	statusCounts := make(map[models.StatusKind]int)

	for _, ticket := range tickets {
		statusCounts[ticket.Status]++

		b := buckets[ticket.Level]
		if b == nil {
			b = &statusBuckets{}
			buckets[ticket.Level] = b
		}

		switch ticket.Status {
		case models.StatusNew:
			b.newCount++
		case models.StatusPending:
			b.pending++
		case models.StatusInProgress:
			b.inProgress++
		case models.StatusResolved, models.StatusClosed:
			b.resolved++
		}
	}

	if unknown := statusCounts[models.StatusUnknown]; unknown > 0 {
		logging.Warn().Int("count", unknown).Msg("Tickets with unrecognized status excluded from level breakdown")
	}

	perLevel := make(map[models.LevelKind]models.LevelMetrics, len(buckets))
	totals := models.LevelMetrics{}
	for level, b := range buckets {
		lm := models.NewLevelMetrics(b.newCount, b.pending, b.inProgress, b.resolved)
		if lm.Total == 0 {
			continue
		}
		perLevel[level] = lm
		totals = totals.Add(lm)
	}

	return Summary{
		PerLevel:     perLevel,
		Totals:       totals,
		StatusCounts: statusCounts,
	}
}
