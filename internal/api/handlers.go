// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// handlers.go - dashboard endpoint handlers
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/glpidash/glpidash/internal/models"
)

// MetricsProvider is the facade surface the handlers consume.
type MetricsProvider interface {
	GetDashboardMetrics(ctx context.Context, filter models.Filter) (models.DashboardMetrics, error)
	GetTechnicianRanking(ctx context.Context, filter models.Filter) ([]models.TechnicianRanking, error)
	HealthCheck(ctx context.Context) models.HealthStatus
}

// defaultWindow is the time span served when the request carries no
// from/to parameters.
const defaultWindow = 30 * 24 * time.Hour

// Handler serves the dashboard endpoints.
type Handler struct {
	provider MetricsProvider
}

// NewHandler creates the endpoint handler set.
func NewHandler(provider MetricsProvider) *Handler {
	return &Handler{provider: provider}
}

// Dashboard serves GET /api/v1/dashboard.
//
// Query parameters:
//   - from, to: RFC 3339 timestamps or plain dates (2006-01-02)
//   - status: comma-separated canonical statuses
//   - level: comma-separated support levels
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), nil)
		return
	}

	result, err := h.provider.GetDashboardMetrics(r.Context(), filter)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// Ranking serves GET /api/v1/ranking with the same filter parameters
// as Dashboard.
func (h *Handler) Ranking(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAMETER", err.Error(), nil)
		return
	}

	rankings, err := h.provider.GetTechnicianRanking(r.Context(), filter)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, rankings)
}

// Health serves GET /api/v1/health: the full upstream check.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	health := h.provider.HealthCheck(r.Context())

	status := http.StatusOK
	if !health.UpstreamReachable {
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

// HealthLive serves GET /api/v1/health/live: process liveness only,
// never touches the upstream.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HealthReady serves GET /api/v1/health/ready: readiness including
// upstream reachability.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	health := h.provider.HealthCheck(r.Context())
	if !health.UpstreamReachable {
		respondJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	respondJSON(w, http.StatusOK, health)
}

// parseFilter builds a models.Filter from query parameters. Defaults
// to the last 30 days when no window is given.
func parseFilter(r *http.Request) (models.Filter, error) {
	q := r.URL.Query()
	// Truncated to the minute so consecutive requests for the default
	// window derive the same cache key.
	now := time.Now().UTC().Truncate(time.Minute)

	filter := models.Filter{
		From: now.Add(-defaultWindow),
		To:   now,
	}

	if raw := q.Get("from"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return models.Filter{}, fmt.Errorf("invalid 'from' parameter: %v", err)
		}
		filter.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := parseTimestamp(raw)
		if err != nil {
			return models.Filter{}, fmt.Errorf("invalid 'to' parameter: %v", err)
		}
		filter.To = t
	}
	if !filter.To.After(filter.From) {
		return models.Filter{}, fmt.Errorf("'from' must precede 'to'")
	}

	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			kind := models.StatusKind(strings.TrimSpace(s))
			if !validStatus(kind) {
				return models.Filter{}, fmt.Errorf("unknown status %q", s)
			}
			filter.Statuses = append(filter.Statuses, kind)
		}
	}

	if raw := q.Get("level"); raw != "" {
		for _, l := range strings.Split(raw, ",") {
			kind := models.LevelKind(strings.TrimSpace(l))
			if !validLevel(kind) {
				return models.Filter{}, fmt.Errorf("unknown level %q", l)
			}
			filter.Levels = append(filter.Levels, kind)
		}
	}

	return filter, nil
}

func parseTimestamp(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

func validStatus(kind models.StatusKind) bool {
	for _, known := range models.Statuses {
		if kind == known {
			return true
		}
	}
	return kind == models.StatusUnknown
}

func validLevel(kind models.LevelKind) bool {
	for _, known := range models.Levels {
		if kind == known {
			return true
		}
	}
	return kind == models.LevelUnknown
}
