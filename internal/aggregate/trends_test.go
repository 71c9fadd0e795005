// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package aggregate

import (
	"math"
	"testing"

	"github.com/glpidash/glpidash/internal/models"
)

func TestTrendsPercentChange(t *testing.T) {
	prior := map[models.StatusKind]int{
		models.StatusNew:      10,
		models.StatusResolved: 4,
	}
	current := map[models.StatusKind]int{
		models.StatusNew:      15,
		models.StatusResolved: 2,
	}

	trends := Trends(current, prior)

	if got := trends[models.StatusNew].Value; got != 50 {
		t.Errorf("Expected +50%% for new, got %v", got)
	}
	if got := trends[models.StatusResolved].Value; got != -50 {
		t.Errorf("Expected -50%% for resolved, got %v", got)
	}
}

func TestTrendsZeroPriorZeroCurrent(t *testing.T) {
	trends := Trends(map[models.StatusKind]int{}, map[models.StatusKind]int{})

	for _, status := range models.Statuses {
		delta := trends[status]
		if delta.Value != 0 || delta.IsNew {
			t.Errorf("Status %s: expected zero delta for no activity, got %+v", status, delta)
		}
	}
}

func TestTrendsActivityFromNothing(t *testing.T) {
	prior := map[models.StatusKind]int{}
	current := map[models.StatusKind]int{models.StatusPending: 3}

	trends := Trends(current, prior)

	delta := trends[models.StatusPending]
	if !delta.IsNew {
		t.Error("Expected IsNew for activity appearing from nothing")
	}
	if !math.IsInf(delta.Value, 1) {
		t.Errorf("Expected +Inf sentinel, got %v", delta.Value)
	}
}

func TestTrendsMarshalRendersNew(t *testing.T) {
	delta := percentDelta(0, 5)

	data, err := delta.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(data) != `"new"` {
		t.Errorf(`Expected "new", got %s`, data)
	}

	data, err = percentDelta(4, 6).MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	if string(data) != "50.00" {
		t.Errorf("Expected 50.00, got %s", data)
	}
}
