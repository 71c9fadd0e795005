// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package aggregate

import (
	"testing"

	"github.com/glpidash/glpidash/internal/models"
)

func TestRankOrdering(t *testing.T) {
	roster := []models.Technician{
		{ID: "1", DisplayName: "Alice"},
		{ID: "2", DisplayName: "Bob"},
		{ID: "3", DisplayName: "Carol"},
	}
	tickets := []models.CanonicalTicket{
		ticket("t1", models.StatusResolved, models.LevelN1, "1"),
		ticket("t2", models.StatusResolved, models.LevelN1, "1"),
		ticket("t3", models.StatusNew, models.LevelN1, "1"),
		ticket("t4", models.StatusResolved, models.LevelN1, "2"),
		ticket("t5", models.StatusNew, models.LevelN2, "2"),
	}

	rankings := Rank(tickets, roster)

	if len(rankings) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(rankings))
	}
	if rankings[0].TechnicianID != "1" || rankings[0].Rank != 1 {
		t.Errorf("Expected Alice first, got %+v", rankings[0])
	}
	if rankings[1].TechnicianID != "2" || rankings[1].Rank != 2 {
		t.Errorf("Expected Bob second, got %+v", rankings[1])
	}

	if got := *rankings[0].PerformanceScore; got < 66.6 || got > 66.7 {
		t.Errorf("Expected score ~66.67 for Alice, got %v", got)
	}
}

func TestRankZeroTicketsUndefinedScore(t *testing.T) {
	roster := []models.Technician{{ID: "9", DisplayName: "Idle"}}

	rankings := Rank(nil, roster)

	if len(rankings) != 1 {
		t.Fatalf("Expected the roster member present, got %d entries", len(rankings))
	}
	entry := rankings[0]
	if entry.TicketCount != 0 {
		t.Errorf("Expected zero tickets, got %d", entry.TicketCount)
	}
	if entry.PerformanceScore != nil {
		t.Errorf("Expected undefined score for zero tickets, got %v", *entry.PerformanceScore)
	}
}

func TestRankZeroResolutionIsNotUndefined(t *testing.T) {
	roster := []models.Technician{{ID: "1", DisplayName: "Alice"}}
	tickets := []models.CanonicalTicket{
		ticket("t1", models.StatusNew, models.LevelN1, "1"),
	}

	rankings := Rank(tickets, roster)

	score := rankings[0].PerformanceScore
	if score == nil {
		t.Fatal("Expected a defined score for a technician with tickets")
	}
	if *score != 0 {
		t.Errorf("Expected 0%% resolution rate, got %v", *score)
	}
}

func TestRankDeterministicTieBreak(t *testing.T) {
	roster := []models.Technician{
		{ID: "20", DisplayName: "Zed"},
		{ID: "10", DisplayName: "Amy"},
	}
	tickets := []models.CanonicalTicket{
		ticket("t1", models.StatusNew, models.LevelN1, "10"),
		ticket("t2", models.StatusNew, models.LevelN1, "20"),
	}

	for i := 0; i < 10; i++ {
		rankings := Rank(tickets, roster)
		if rankings[0].TechnicianID != "10" || rankings[1].TechnicianID != "20" {
			t.Fatalf("Iteration %d: expected ID ascending tie-break, got %s then %s",
				i, rankings[0].TechnicianID, rankings[1].TechnicianID)
		}
	}
}

func TestRankUnrosteredAssigneeGetsPlaceholder(t *testing.T) {
	tickets := []models.CanonicalTicket{
		ticket("t1", models.StatusResolved, models.LevelN1, "77"),
	}

	rankings := Rank(tickets, nil)

	if len(rankings) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(rankings))
	}
	if rankings[0].Name != "Technician #77" {
		t.Errorf("Expected placeholder name, got %q", rankings[0].Name)
	}
}

func TestRankSharedAssignmentCountsForBoth(t *testing.T) {
	tickets := []models.CanonicalTicket{
		ticket("t1", models.StatusResolved, models.LevelN1, "1", "2"),
	}

	rankings := Rank(tickets, nil)

	if len(rankings) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(rankings))
	}
	for _, entry := range rankings {
		if entry.TicketCount != 1 || entry.ResolvedCount != 1 {
			t.Errorf("Expected the shared ticket counted for %s, got %+v", entry.TechnicianID, entry)
		}
	}
}
