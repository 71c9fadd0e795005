// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package models defines the canonical domain types shared across the
// ingestion and aggregation pipeline.
package models

import "time"

// RawTicket is a ticket record exactly as returned by the GLPI REST API.
//
// Field presence and value types vary between GLPI installations and
// versions: the assignee field may be absent, a scalar ID, or a list of
// IDs. RawTicket is transient - it is consumed by the normalizer and
// never persisted or cached.
type RawTicket map[string]interface{}

// StatusKind is the canonical ticket status. Multiple upstream status
// codes may map onto the same kind (e.g. "Assigned" and "Planned" both
// become StatusInProgress).
type StatusKind string

const (
	StatusNew        StatusKind = "new"
	StatusInProgress StatusKind = "in_progress"
	StatusPending    StatusKind = "pending"
	StatusResolved   StatusKind = "resolved"
	StatusClosed     StatusKind = "closed"

	// StatusUnknown buckets upstream status codes this build has never
	// seen, so unseen codes degrade gracefully instead of failing a batch.
	StatusUnknown StatusKind = "unknown"
)

// LevelKind is the support-tier classification of a ticket, derived
// from its assigned support group.
type LevelKind string

const (
	LevelN1 LevelKind = "N1"
	LevelN2 LevelKind = "N2"
	LevelN3 LevelKind = "N3"
	LevelN4 LevelKind = "N4"

	// LevelUnknown is assigned when the ticket's group ID is not in the
	// configured group-to-level table. Unknown is counted separately,
	// never merged into an existing level.
	LevelUnknown LevelKind = "unknown"
)

// Levels lists the known support tiers in display order, excluding
// LevelUnknown.
var Levels = []LevelKind{LevelN1, LevelN2, LevelN3, LevelN4}

// Statuses lists the canonical statuses in display order, excluding
// StatusUnknown.
var Statuses = []StatusKind{StatusNew, StatusInProgress, StatusPending, StatusResolved, StatusClosed}

// CanonicalTicket is the normalized, upstream-agnostic ticket
// representation. Every canonical ticket has a StatusKind; Level
// defaults to LevelUnknown rather than failing when the group ID is
// unrecognized.
type CanonicalTicket struct {
	ID          string     `json:"id"`
	Status      StatusKind `json:"status"`
	Level       LevelKind  `json:"level"`
	AssigneeIDs []string   `json:"assignee_ids"`
	CreatedAt   time.Time  `json:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty"`
}

// Technician is a support agent resolved from an assignee ID.
type Technician struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}
