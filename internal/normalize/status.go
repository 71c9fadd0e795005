// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package normalize

import "github.com/glpidash/glpidash/internal/models"

// statusByCode is the explicit GLPI status code mapping. The mapping is
// many-to-one: "assigned" (2) and "planned" (3) both count as in
// progress. Codes not present here normalize to StatusUnknown so a new
// upstream code degrades gracefully instead of crashing aggregation.
var statusByCode = map[int]models.StatusKind{
	1: models.StatusNew,        // new
	2: models.StatusInProgress, // assigned
	3: models.StatusInProgress, // planned
	4: models.StatusPending,    // waiting
	5: models.StatusResolved,   // solved
	6: models.StatusClosed,     // closed
}

// StatusFromCode maps a GLPI numeric status code to its canonical kind.
func StatusFromCode(code int) models.StatusKind {
	if kind, ok := statusByCode[code]; ok {
		return kind
	}
	return models.StatusUnknown
}

// CodesForStatus returns the GLPI status codes that collapse into the
// given canonical kind. Used by the gateway to encode status filters;
// the result is in ascending code order for deterministic criteria.
func CodesForStatus(kind models.StatusKind) []int {
	switch kind {
	case models.StatusNew:
		return []int{1}
	case models.StatusInProgress:
		return []int{2, 3}
	case models.StatusPending:
		return []int{4}
	case models.StatusResolved:
		return []int{5}
	case models.StatusClosed:
		return []int{6}
	default:
		return nil
	}
}

// DefaultLevelTable is the fixed support group to level mapping used
// when the configuration does not override it.
var DefaultLevelTable = map[int]models.LevelKind{
	89: models.LevelN1,
	90: models.LevelN2,
	91: models.LevelN3,
	92: models.LevelN4,
}
