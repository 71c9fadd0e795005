// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package normalize converts raw GLPI ticket records into the
// canonical internal representation.
//
// GLPI payloads are not uniform: field presence varies between
// installations, numbers arrive as JSON numbers or strings, and the
// assignee field may be absent, a scalar, or a list. The normalizer
// handles every observed shape explicitly; a record with an
// unrecognizable shape yields ErrMalformedRecord and is skipped, never
// failing the batch.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/metrics"
	"github.com/glpidash/glpidash/internal/models"
)

// ErrMalformedRecord indicates a single upstream record could not be
// normalized. The record is skipped and counted; the batch continues.
var ErrMalformedRecord = errors.New("normalize: malformed record")

// glpiDateLayout is the timestamp format GLPI uses in ticket payloads.
const glpiDateLayout = "2006-01-02 15:04:05"

// Raw ticket field names as served by the GLPI REST API.
const (
	fieldID            = "id"
	fieldStatus        = "status"
	fieldAssignedUsers = "users_id_assign"
	fieldAssignedGroup = "groups_id_assign"
	fieldDateOpened    = "date"
	fieldDateSolved    = "solvedate"
)

// Normalizer maps raw tickets onto canonical ones using a fixed
// group-to-level table supplied at construction.
type Normalizer struct {
	levels map[int]models.LevelKind
}

// New creates a Normalizer. A nil or empty table falls back to
// DefaultLevelTable.
func New(levels map[int]models.LevelKind) *Normalizer {
	if len(levels) == 0 {
		levels = DefaultLevelTable
	}
	return &Normalizer{levels: levels}
}

// Normalize converts one raw ticket into its canonical form.
//
// Normalization is idempotent: the same raw record always yields the
// same canonical ticket. Unknown status codes and unmapped group IDs
// degrade to the Unknown buckets rather than erroring; only a missing
// ID or an unrecognizable assignee shape is malformed.
func (n *Normalizer) Normalize(raw models.RawTicket) (models.CanonicalTicket, error) {
	id, ok := scalarToID(raw[fieldID])
	if !ok || id == "" {
		return models.CanonicalTicket{}, fmt.Errorf("%w: missing or invalid id (%v)", ErrMalformedRecord, raw[fieldID])
	}

	assignees, err := decodeAssignees(raw[fieldAssignedUsers])
	if err != nil {
		return models.CanonicalTicket{}, fmt.Errorf("ticket %s: %w", id, err)
	}

	ticket := models.CanonicalTicket{
		ID:          id,
		Status:      decodeStatus(raw[fieldStatus]),
		Level:       n.decodeLevel(raw[fieldAssignedGroup]),
		AssigneeIDs: assignees,
	}

	if created, ok := decodeDate(raw[fieldDateOpened]); ok {
		ticket.CreatedAt = created
	}
	if solved, ok := decodeDate(raw[fieldDateSolved]); ok {
		ticket.ResolvedAt = &solved
	}

	return ticket, nil
}

// NormalizeBatch converts a batch of raw tickets, skipping malformed
// records. It returns the canonical tickets and the number skipped;
// per-record failures never abort the batch.
func (n *Normalizer) NormalizeBatch(raws []models.RawTicket) ([]models.CanonicalTicket, int) {
	tickets := make([]models.CanonicalTicket, 0, len(raws))
	skipped := 0

	for _, raw := range raws {
		ticket, err := n.Normalize(raw)
		if err != nil {
			logging.Warn().Err(err).Msg("skipping malformed ticket record")
			metrics.RecordsSkippedTotal.Inc()
			skipped++
			continue
		}
		tickets = append(tickets, ticket)
	}

	if skipped > 0 {
		logging.Info().Int("skipped", skipped).Int("total", len(raws)).Msg("normalization skipped malformed records")
	}

	return tickets, skipped
}

// decodeAssignees handles every shape GLPI serves for the assignee
// field: absent/null becomes an empty list, a scalar becomes a
// single-element list, a list is used as-is. Anything else is a
// malformed record.
func decodeAssignees(v interface{}) ([]string, error) {
	switch value := v.(type) {
	case nil:
		return []string{}, nil
	case string, float64, int, int64:
		id, ok := scalarToID(value)
		if !ok || id == "" {
			return []string{}, nil
		}
		return []string{id}, nil
	case []interface{}:
		ids := make([]string, 0, len(value))
		for _, elem := range value {
			id, ok := scalarToID(elem)
			if !ok {
				return nil, fmt.Errorf("%w: assignee list element %T", ErrMalformedRecord, elem)
			}
			if id != "" {
				ids = append(ids, id)
			}
		}
		return ids, nil
	default:
		return nil, fmt.Errorf("%w: assignee field shape %T", ErrMalformedRecord, v)
	}
}

func decodeStatus(v interface{}) models.StatusKind {
	code, ok := scalarToInt(v)
	if !ok {
		return models.StatusUnknown
	}
	return StatusFromCode(code)
}

// decodeLevel looks up the assigned support group in the level table.
// A list-valued group field uses the first element. Unmapped group IDs
// yield LevelUnknown - counted separately, never dropped or merged
// into an existing level.
func (n *Normalizer) decodeLevel(v interface{}) models.LevelKind {
	if list, ok := v.([]interface{}); ok {
		if len(list) == 0 {
			return models.LevelUnknown
		}
		v = list[0]
	}

	groupID, ok := scalarToInt(v)
	if !ok {
		return models.LevelUnknown
	}
	if level, ok := n.levels[groupID]; ok {
		return level
	}
	return models.LevelUnknown
}

func decodeDate(v interface{}) (time.Time, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(glpiDateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// scalarToID renders a JSON scalar as a string ID. GLPI serves IDs as
// numbers or strings depending on endpoint and version.
func scalarToID(v interface{}) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case float64:
		return strconv.FormatInt(int64(value), 10), true
	case int:
		return strconv.Itoa(value), true
	case int64:
		return strconv.FormatInt(value, 10), true
	default:
		return "", false
	}
}

func scalarToInt(v interface{}) (int, bool) {
	switch value := v.(type) {
	case float64:
		return int(value), true
	case int:
		return value, true
	case int64:
		return int(value), true
	case string:
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
