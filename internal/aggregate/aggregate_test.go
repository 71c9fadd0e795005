// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package aggregate

import (
	"testing"

	"github.com/glpidash/glpidash/internal/models"
)

func ticket(id string, status models.StatusKind, level models.LevelKind, assignees ...string) models.CanonicalTicket {
	return models.CanonicalTicket{
		ID:          id,
		Status:      status,
		Level:       level,
		AssigneeIDs: assignees,
	}
}

func TestSummarizeBucketsByLevelAndStatus(t *testing.T) {
	tickets := []models.CanonicalTicket{
		ticket("1", models.StatusNew, models.LevelN1),
		ticket("2", models.StatusNew, models.LevelN1),
		ticket("3", models.StatusInProgress, models.LevelN1),
		ticket("4", models.StatusPending, models.LevelN2),
		ticket("5", models.StatusResolved, models.LevelN2),
		ticket("6", models.StatusClosed, models.LevelN2),
	}

	s := Summarize(tickets)

	n1 := s.PerLevel[models.LevelN1]
	if n1.New != 2 || n1.InProgress != 1 || n1.Total != 3 {
		t.Errorf("Unexpected N1 breakdown: %+v", n1)
	}

	// Closed folds into the Resolved column of the breakdown.
	n2 := s.PerLevel[models.LevelN2]
	if n2.Pending != 1 || n2.Resolved != 2 || n2.Total != 3 {
		t.Errorf("Unexpected N2 breakdown: %+v", n2)
	}

	if s.Totals.Total != 6 {
		t.Errorf("Expected grand total 6, got %d", s.Totals.Total)
	}

	// StatusCounts keeps Closed separate for trend purposes.
	if s.StatusCounts[models.StatusResolved] != 1 || s.StatusCounts[models.StatusClosed] != 1 {
		t.Errorf("Unexpected status counts: %+v", s.StatusCounts)
	}
}

func TestSummarizeInvariantHolds(t *testing.T) {
	tickets := []models.CanonicalTicket{
		ticket("1", models.StatusNew, models.LevelN1),
		ticket("2", models.StatusPending, models.LevelN3),
		ticket("3", models.StatusResolved, models.LevelUnknown),
	}

	s := Summarize(tickets)

	for level, lm := range s.PerLevel {
		if !lm.Consistent() {
			t.Errorf("Level %s breaks the total invariant: %+v", level, lm)
		}
	}
	if !s.Totals.Consistent() {
		t.Errorf("Totals break the invariant: %+v", s.Totals)
	}
}

func TestSummarizeUnknownLevelCountedSeparately(t *testing.T) {
	tickets := []models.CanonicalTicket{
		ticket("1", models.StatusNew, models.LevelN1),
		ticket("2", models.StatusNew, models.LevelUnknown),
	}

	s := Summarize(tickets)

	if s.PerLevel[models.LevelN1].New != 1 {
		t.Errorf("Expected 1 new ticket in N1, got %d", s.PerLevel[models.LevelN1].New)
	}
	unknown, ok := s.PerLevel[models.LevelUnknown]
	if !ok {
		t.Fatal("Expected an explicit bucket for unknown level")
	}
	if unknown.New != 1 {
		t.Errorf("Expected 1 new ticket in unknown bucket, got %d", unknown.New)
	}
	if s.Totals.Total != 2 {
		t.Errorf("Expected unknown level included in totals, got %d", s.Totals.Total)
	}
}

func TestSummarizeUnknownStatusExcludedFromBreakdown(t *testing.T) {
	tickets := []models.CanonicalTicket{
		ticket("1", models.StatusNew, models.LevelN1),
		ticket("2", models.StatusUnknown, models.LevelN1),
	}

	s := Summarize(tickets)

	if s.PerLevel[models.LevelN1].Total != 1 {
		t.Errorf("Expected unknown status excluded from breakdown, got total %d", s.PerLevel[models.LevelN1].Total)
	}
	if s.StatusCounts[models.StatusUnknown] != 1 {
		t.Errorf("Expected unknown status tracked in counts, got %d", s.StatusCounts[models.StatusUnknown])
	}
}

func TestSummarizeEmptyBatch(t *testing.T) {
	s := Summarize(nil)

	if len(s.PerLevel) != 0 {
		t.Errorf("Expected empty breakdown, got %+v", s.PerLevel)
	}
	if s.Totals.Total != 0 {
		t.Errorf("Expected zero totals, got %+v", s.Totals)
	}
}
