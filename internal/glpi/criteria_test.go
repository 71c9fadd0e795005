// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package glpi

import (
	"testing"
	"time"

	"github.com/glpidash/glpidash/internal/models"
)

func TestBuildTicketQueryDateRange(t *testing.T) {
	filter := models.Filter{
		From: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}

	q := buildTicketQuery(filter, nil)

	if got := q.Get("criteria[0][field]"); got != "15" {
		t.Errorf("Expected opening-date field 15, got %q", got)
	}
	if got := q.Get("criteria[0][searchtype]"); got != "morethan" {
		t.Errorf("Expected searchtype morethan, got %q", got)
	}
	if got := q.Get("criteria[0][value]"); got != "2026-08-01 00:00:00" {
		t.Errorf("Expected GLPI timestamp format, got %q", got)
	}
	if got := q.Get("criteria[1][link]"); got != "AND" {
		t.Errorf("Expected AND link on second criterion, got %q", got)
	}
	if got := q.Get("criteria[1][searchtype]"); got != "lessthan" {
		t.Errorf("Expected searchtype lessthan, got %q", got)
	}
}

func TestBuildTicketQueryStatusDisjunction(t *testing.T) {
	filter := models.Filter{
		Statuses: []models.StatusKind{models.StatusInProgress},
	}

	q := buildTicketQuery(filter, nil)

	// InProgress covers upstream codes 2 and 3, OR-linked inside one
	// nested group.
	if got := q.Get("criteria[0][criteria][0][field]"); got != "12" {
		t.Errorf("Expected status field 12, got %q", got)
	}
	if got := q.Get("criteria[0][criteria][0][value]"); got != "2" {
		t.Errorf("Expected first status code 2, got %q", got)
	}
	if got := q.Get("criteria[0][criteria][1][link]"); got != "OR" {
		t.Errorf("Expected OR link inside status group, got %q", got)
	}
	if got := q.Get("criteria[0][criteria][1][value]"); got != "3" {
		t.Errorf("Expected second status code 3, got %q", got)
	}
}

func TestBuildTicketQueryLevelGroups(t *testing.T) {
	levelGroups := map[models.LevelKind][]int{
		models.LevelN1: {89},
		models.LevelN2: {90, 95},
	}
	filter := models.Filter{
		Levels: []models.LevelKind{models.LevelN2},
	}

	q := buildTicketQuery(filter, levelGroups)

	if got := q.Get("criteria[0][criteria][0][field]"); got != "8" {
		t.Errorf("Expected assigned-group field 8, got %q", got)
	}
	if got := q.Get("criteria[0][criteria][0][value]"); got != "90" {
		t.Errorf("Expected group 90, got %q", got)
	}
	if got := q.Get("criteria[0][criteria][1][value]"); got != "95" {
		t.Errorf("Expected group 95, got %q", got)
	}
}

func TestBuildTicketQueryForcedisplay(t *testing.T) {
	q := buildTicketQuery(models.Filter{}, nil)

	// All columns the normalizer needs must be requested.
	wantFields := []string{"2", "5", "8", "12", "15", "17"}
	for i, field := range wantFields {
		key := "forcedisplay[" + string(rune('0'+i)) + "]"
		if got := q.Get(key); got != field {
			t.Errorf("Expected %s=%s, got %q", key, field, got)
		}
	}
}

func TestBuildTicketQueryUnknownLevelIgnored(t *testing.T) {
	filter := models.Filter{
		Levels: []models.LevelKind{models.LevelUnknown},
	}

	q := buildTicketQuery(filter, map[models.LevelKind][]int{models.LevelN1: {89}})

	if got := q.Get("criteria[0][criteria][0][field]"); got != "" {
		t.Errorf("Expected no upstream criterion for unknown level, got field %q", got)
	}
}

func TestRenameSearchRow(t *testing.T) {
	row := map[string]interface{}{
		"2":   float64(101),
		"12":  float64(2),
		"5":   "53",
		"15":  "2026-08-20 09:30:00",
		"999": "unrecognized column",
	}

	ticket := renameSearchRow(row)

	if ticket["id"] != float64(101) {
		t.Errorf("Expected id column, got %v", ticket["id"])
	}
	if ticket["status"] != float64(2) {
		t.Errorf("Expected status column, got %v", ticket["status"])
	}
	if ticket["users_id_assign"] != "53" {
		t.Errorf("Expected assignee column, got %v", ticket["users_id_assign"])
	}
	if ticket["date"] != "2026-08-20 09:30:00" {
		t.Errorf("Expected date column, got %v", ticket["date"])
	}
	if _, ok := ticket["999"]; ok {
		t.Error("Expected unrecognized columns to be dropped")
	}
}
