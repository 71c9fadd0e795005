// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package normalize

import (
	"errors"
	"reflect"
	"testing"

	"github.com/glpidash/glpidash/internal/models"
)

func TestNormalizeStringAssignee(t *testing.T) {
	n := New(nil)

	ticket, err := n.Normalize(models.RawTicket{
		"id":              float64(101),
		"status":          float64(2),
		"users_id_assign": "53",
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if !reflect.DeepEqual(ticket.AssigneeIDs, []string{"53"}) {
		t.Errorf("AssigneeIDs = %v, want [53]", ticket.AssigneeIDs)
	}
}

func TestNormalizeAssigneeShapes(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name    string
		raw     models.RawTicket
		want    []string
		wantErr bool
	}{
		{"absent", models.RawTicket{"id": "1", "status": float64(1)}, []string{}, false},
		{"null", models.RawTicket{"id": "1", "status": float64(1), "users_id_assign": nil}, []string{}, false},
		{"numeric scalar", models.RawTicket{"id": "1", "status": float64(1), "users_id_assign": float64(7)}, []string{"7"}, false},
		{"list", models.RawTicket{"id": "1", "status": float64(1), "users_id_assign": []interface{}{"12", float64(34)}}, []string{"12", "34"}, false},
		{"empty list", models.RawTicket{"id": "1", "status": float64(1), "users_id_assign": []interface{}{}}, []string{}, false},
		{"object shape", models.RawTicket{"id": "1", "status": float64(1), "users_id_assign": map[string]interface{}{"id": 5}}, nil, true},
		{"list of objects", models.RawTicket{"id": "1", "status": float64(1), "users_id_assign": []interface{}{map[string]interface{}{}}}, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticket, err := n.Normalize(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedRecord) {
					t.Fatalf("err = %v, want ErrMalformedRecord", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if !reflect.DeepEqual(ticket.AssigneeIDs, tt.want) {
				t.Errorf("AssigneeIDs = %v, want %v", ticket.AssigneeIDs, tt.want)
			}
		})
	}
}

func TestNormalizeStatusMapping(t *testing.T) {
	n := New(nil)

	tests := []struct {
		code interface{}
		want models.StatusKind
	}{
		{float64(1), models.StatusNew},
		{float64(2), models.StatusInProgress}, // assigned
		{float64(3), models.StatusInProgress}, // planned
		{float64(4), models.StatusPending},
		{float64(5), models.StatusResolved},
		{float64(6), models.StatusClosed},
		{"2", models.StatusInProgress},
		{float64(42), models.StatusUnknown},
		{nil, models.StatusUnknown},
		{"not-a-number", models.StatusUnknown},
	}

	for _, tt := range tests {
		ticket, err := n.Normalize(models.RawTicket{"id": "9", "status": tt.code})
		if err != nil {
			t.Fatalf("Normalize(status=%v): %v", tt.code, err)
		}
		if ticket.Status != tt.want {
			t.Errorf("status %v -> %v, want %v", tt.code, ticket.Status, tt.want)
		}
	}
}

func TestNormalizeLevelDerivation(t *testing.T) {
	n := New(nil)

	tests := []struct {
		group interface{}
		want  models.LevelKind
	}{
		{float64(89), models.LevelN1},
		{float64(90), models.LevelN2},
		{float64(91), models.LevelN3},
		{float64(92), models.LevelN4},
		{"91", models.LevelN3},
		{float64(999), models.LevelUnknown},
		{nil, models.LevelUnknown},
		{[]interface{}{float64(90), float64(89)}, models.LevelN2}, // first group wins
		{[]interface{}{}, models.LevelUnknown},
	}

	for _, tt := range tests {
		ticket, err := n.Normalize(models.RawTicket{"id": "3", "status": float64(1), "groups_id_assign": tt.group})
		if err != nil {
			t.Fatalf("Normalize(group=%v): %v", tt.group, err)
		}
		if ticket.Level != tt.want {
			t.Errorf("group %v -> %v, want %v", tt.group, ticket.Level, tt.want)
		}
	}
}

func TestNormalizeCustomLevelTable(t *testing.T) {
	n := New(map[int]models.LevelKind{7: models.LevelN4})

	ticket, err := n.Normalize(models.RawTicket{"id": "1", "status": float64(1), "groups_id_assign": float64(7)})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if ticket.Level != models.LevelN4 {
		t.Errorf("Level = %v, want N4", ticket.Level)
	}

	// The default table must not leak into a custom one.
	ticket, err = n.Normalize(models.RawTicket{"id": "2", "status": float64(1), "groups_id_assign": float64(89)})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if ticket.Level != models.LevelUnknown {
		t.Errorf("Level = %v, want unknown", ticket.Level)
	}
}

func TestNormalizeDates(t *testing.T) {
	n := New(nil)

	ticket, err := n.Normalize(models.RawTicket{
		"id":        "5",
		"status":    float64(5),
		"date":      "2026-02-10 09:30:00",
		"solvedate": "2026-02-12 17:45:00",
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if ticket.CreatedAt.IsZero() {
		t.Error("CreatedAt not parsed")
	}
	if ticket.ResolvedAt == nil {
		t.Fatal("ResolvedAt not parsed")
	}
	if !ticket.ResolvedAt.After(ticket.CreatedAt) {
		t.Error("ResolvedAt not after CreatedAt")
	}

	// Unparseable dates degrade, they do not fail the record.
	ticket, err = n.Normalize(models.RawTicket{"id": "6", "status": float64(1), "date": "garbage"})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if !ticket.CreatedAt.IsZero() {
		t.Error("expected zero CreatedAt for unparseable date")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	n := New(nil)
	raw := models.RawTicket{
		"id":               float64(42),
		"status":           float64(3),
		"users_id_assign":  []interface{}{"8", "9"},
		"groups_id_assign": float64(90),
		"date":             "2026-01-15 08:00:00",
	}

	first, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	second, err := n.Normalize(raw)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Errorf("normalize not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestNormalizeBatchSkipsMalformed(t *testing.T) {
	n := New(nil)

	raws := []models.RawTicket{
		{"id": "1", "status": float64(1)},
		{"status": float64(1)}, // missing id
		{"id": "3", "status": float64(2), "users_id_assign": map[string]interface{}{}}, // bad shape
		{"id": "4", "status": float64(4)},
	}

	tickets, skipped := n.NormalizeBatch(raws)

	if len(tickets) != 2 {
		t.Errorf("len(tickets) = %d, want 2", len(tickets))
	}
	if skipped != 2 {
		t.Errorf("skipped = %d, want 2", skipped)
	}
	if tickets[0].ID != "1" || tickets[1].ID != "4" {
		t.Errorf("unexpected surviving tickets: %+v", tickets)
	}
}

func TestCodesForStatusRoundTrip(t *testing.T) {
	for _, kind := range models.Statuses {
		codes := CodesForStatus(kind)
		if len(codes) == 0 {
			t.Errorf("no codes for %v", kind)
			continue
		}
		for _, code := range codes {
			if got := StatusFromCode(code); got != kind {
				t.Errorf("StatusFromCode(%d) = %v, want %v", code, got, kind)
			}
		}
	}

	if codes := CodesForStatus(models.StatusUnknown); codes != nil {
		t.Errorf("CodesForStatus(unknown) = %v, want nil", codes)
	}
}
