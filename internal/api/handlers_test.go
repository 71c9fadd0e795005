// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package api

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/glpidash/glpidash/internal/glpi"
	"github.com/glpidash/glpidash/internal/models"
)

// stubProvider returns canned facade results.
type stubProvider struct {
	metrics    models.DashboardMetrics
	metricsErr error
	rankings   []models.TechnicianRanking
	rankingErr error
	health     models.HealthStatus

	lastFilter models.Filter
}

func (s *stubProvider) GetDashboardMetrics(ctx context.Context, filter models.Filter) (models.DashboardMetrics, error) {
	s.lastFilter = filter
	return s.metrics, s.metricsErr
}

func (s *stubProvider) GetTechnicianRanking(ctx context.Context, filter models.Filter) ([]models.TechnicianRanking, error) {
	s.lastFilter = filter
	return s.rankings, s.rankingErr
}

func (s *stubProvider) HealthCheck(ctx context.Context) models.HealthStatus {
	return s.health
}

func newTestRouter(provider MetricsProvider) http.Handler {
	return NewRouter(
		NewHandler(provider),
		NewMiddleware(MiddlewareConfig{
			CORSAllowedOrigins: []string{"*"},
			RateLimitDisabled:  true,
		}),
	).Setup()
}

func doRequest(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) apiResponse {
	t.Helper()
	var envelope apiResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("Failed to decode response envelope: %v\nbody: %s", err, rec.Body.String())
	}
	return envelope
}

func TestDashboardEndpoint(t *testing.T) {
	provider := &stubProvider{
		metrics: models.DashboardMetrics{
			PerLevel: map[models.LevelKind]models.LevelMetrics{
				models.LevelN1: models.NewLevelMetrics(2, 1, 0, 3),
			},
			Totals:      models.NewLevelMetrics(2, 1, 0, 3),
			GeneratedAt: time.Now().UTC(),
		},
	}
	router := newTestRouter(provider)

	rec := doRequest(t, router, "/api/v1/dashboard")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	envelope := decodeEnvelope(t, rec)
	if envelope.Status != "success" {
		t.Errorf("Expected success status, got %q", envelope.Status)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("Expected X-Request-ID response header")
	}
}

func TestDashboardFilterParsing(t *testing.T) {
	provider := &stubProvider{}
	router := newTestRouter(provider)

	rec := doRequest(t, router,
		"/api/v1/dashboard?from=2026-08-01&to=2026-09-01&status=new,resolved&level=N1")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	f := provider.lastFilter
	if f.From != time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("Unexpected from: %v", f.From)
	}
	if len(f.Statuses) != 2 || f.Statuses[0] != models.StatusNew {
		t.Errorf("Unexpected statuses: %v", f.Statuses)
	}
	if len(f.Levels) != 1 || f.Levels[0] != models.LevelN1 {
		t.Errorf("Unexpected levels: %v", f.Levels)
	}
}

func TestDashboardRejectsBadParameters(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"bad from", "/api/v1/dashboard?from=notadate"},
		{"inverted window", "/api/v1/dashboard?from=2026-09-01&to=2026-08-01"},
		{"unknown status", "/api/v1/dashboard?status=sleeping"},
		{"unknown level", "/api/v1/dashboard?level=N9"},
	}

	router := newTestRouter(&stubProvider{})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, router, tt.path)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
			envelope := decodeEnvelope(t, rec)
			if envelope.Error == nil || envelope.Error.Code != "INVALID_PARAMETER" {
				t.Errorf("Expected INVALID_PARAMETER, got %+v", envelope.Error)
			}
		})
	}
}

func TestDashboardUpstreamErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unavailable", fmt.Errorf("%w: down", glpi.ErrUpstreamUnavailable), http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE"},
		{"auth failure", fmt.Errorf("%w: rejected", glpi.ErrAuthFailure), http.StatusServiceUnavailable, "UPSTREAM_AUTH_FAILURE"},
		{"not found", fmt.Errorf("%w: gone", glpi.ErrNotFound), http.StatusNotFound, "NOT_FOUND"},
		{"bad request", fmt.Errorf("%w: rejected", glpi.ErrBadRequest), http.StatusBadRequest, "UPSTREAM_BAD_REQUEST"},
		{"unexpected", fmt.Errorf("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&stubProvider{metricsErr: tt.err})
			rec := doRequest(t, router, "/api/v1/dashboard")
			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			envelope := decodeEnvelope(t, rec)
			if envelope.Error == nil || envelope.Error.Code != tt.wantCode {
				t.Errorf("Expected code %s, got %+v", tt.wantCode, envelope.Error)
			}
		})
	}
}

func TestRankingEndpoint(t *testing.T) {
	score := 75.0
	provider := &stubProvider{
		rankings: []models.TechnicianRanking{
			{TechnicianID: "53", Name: "Jane Doe", TicketCount: 4, ResolvedCount: 3, PerformanceScore: &score, Rank: 1},
		},
	}
	router := newTestRouter(provider)

	rec := doRequest(t, router, "/api/v1/ranking")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"technician_id":"53"`) {
		t.Errorf("Expected ranking entry in body: %s", rec.Body.String())
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(&stubProvider{
		health: models.HealthStatus{UpstreamReachable: true, SessionValid: true},
	})

	for _, path := range []string{"/api/v1/health", "/api/v1/health/ready", "/api/v1/health/live"} {
		rec := doRequest(t, router, path)
		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	// Unreachable upstream flips health and ready but never live.
	router = newTestRouter(&stubProvider{
		health: models.HealthStatus{UpstreamReachable: false, SessionValid: false},
	})
	for _, tt := range []struct {
		path string
		want int
	}{
		{"/api/v1/health", http.StatusServiceUnavailable},
		{"/api/v1/health/ready", http.StatusServiceUnavailable},
		{"/api/v1/health/live", http.StatusOK},
	} {
		rec := doRequest(t, router, tt.path)
		if rec.Code != tt.want {
			t.Errorf("%s: expected %d, got %d", tt.path, tt.want, rec.Code)
		}
	}
}

func TestMetricsEndpointExposed(t *testing.T) {
	router := newTestRouter(&stubProvider{})

	rec := doRequest(t, router, "/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 from /metrics, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Error("Expected Prometheus exposition output")
	}
}
