// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package models

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// LevelMetrics is the per-level ticket-status breakdown.
//
// Invariant: Total == New + Pending + InProgress + Resolved for every
// constructed instance. Total is always recomputed from the four status
// counts, never trusted from upstream. Use NewLevelMetrics to construct.
type LevelMetrics struct {
	New        int `json:"new"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Resolved   int `json:"resolved"`
	Total      int `json:"total"`
}

// NewLevelMetrics builds a LevelMetrics with Total derived from the
// four status counts. Negative inputs are a programming error upstream
// of this constructor; they are clamped to zero so a bad batch can
// never publish impossible counts. Callers that care about the clamp
// should check the inputs before constructing.
func NewLevelMetrics(newCount, pending, inProgress, resolved int) LevelMetrics {
	newCount = clampNonNegative(newCount)
	pending = clampNonNegative(pending)
	inProgress = clampNonNegative(inProgress)
	resolved = clampNonNegative(resolved)

	return LevelMetrics{
		New:        newCount,
		Pending:    pending,
		InProgress: inProgress,
		Resolved:   resolved,
		Total:      newCount + pending + inProgress + resolved,
	}
}

// Consistent reports whether the LevelMetrics invariant holds.
func (m LevelMetrics) Consistent() bool {
	return m.Total == m.New+m.Pending+m.InProgress+m.Resolved
}

// Add returns the element-wise sum of two LevelMetrics.
func (m LevelMetrics) Add(other LevelMetrics) LevelMetrics {
	return NewLevelMetrics(
		m.New+other.New,
		m.Pending+other.Pending,
		m.InProgress+other.InProgress,
		m.Resolved+other.Resolved,
	)
}

func clampNonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// PercentDelta is the percentage change of a status count against the
// prior period. When the prior count is zero and the current count is
// positive there is no meaningful percentage: IsNew is set and Value
// holds +Inf as a sentinel. Dashboards render that case as "new".
type PercentDelta struct {
	Value float64
	IsNew bool
}

// MarshalJSON renders the delta as a JSON number, or the string "new"
// for the prior==0, current>0 case. +Inf is not representable in JSON,
// so the sentinel must never leak into the encoder.
func (d PercentDelta) MarshalJSON() ([]byte, error) {
	if d.IsNew || math.IsInf(d.Value, 1) {
		return []byte(`"new"`), nil
	}
	return []byte(strconv.FormatFloat(d.Value, 'f', 2, 64)), nil
}

// UnmarshalJSON accepts both encodings MarshalJSON produces. Cached
// dashboards cross a JSON round trip on the Redis backend; without the
// inverse mapping every stored entry with trends would be undecodable.
func (d *PercentDelta) UnmarshalJSON(data []byte) error {
	if string(data) == `"new"` {
		d.Value = math.Inf(1)
		d.IsNew = true
		return nil
	}

	value, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("percent delta: %w", err)
	}
	d.Value = value
	d.IsNew = false
	return nil
}

// TechnicianRanking is one entry of the technician leaderboard.
//
// PerformanceScore is nil when TicketCount is zero: a technician with
// no tickets has an undefined score, which is deliberately distinct
// from a technician with tickets and a 0% resolution rate.
type TechnicianRanking struct {
	TechnicianID     string   `json:"technician_id"`
	Name             string   `json:"name"`
	TicketCount      int      `json:"ticket_count"`
	ResolvedCount    int      `json:"resolved_count"`
	PerformanceScore *float64 `json:"performance_score"`
	Rank             int      `json:"rank"`
}

// DashboardMetrics is the aggregate root served to the dashboard.
// Instances are constructed fresh per aggregation cycle and immutable
// once built; the facade caches them keyed by the applied filter set.
type DashboardMetrics struct {
	PerLevel    map[LevelKind]LevelMetrics  `json:"per_level"`
	Totals      LevelMetrics                `json:"totals"`
	Trends      map[StatusKind]PercentDelta `json:"trends"`
	GeneratedAt time.Time                   `json:"generated_at"`

	// Stale marks a cached prior result served because the upstream was
	// unreachable. Degraded marks a partial result (deadline hit or
	// technician names unresolved). Both are successful responses.
	Stale    bool `json:"stale"`
	Degraded bool `json:"degraded"`

	// SkippedRecords counts upstream records dropped by normalization.
	SkippedRecords int `json:"skipped_records"`
}

// HealthStatus reports upstream connectivity for the health endpoint.
type HealthStatus struct {
	UpstreamReachable bool `json:"upstream_reachable"`
	SessionValid      bool `json:"session_valid"`
}
