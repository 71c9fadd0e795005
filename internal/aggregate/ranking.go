// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package aggregate

import (
	"sort"

	"github.com/glpidash/glpidash/internal/models"
)

// Rank builds the technician leaderboard from a ticket batch.
//
// Every technician in the roster appears in the ranking even with zero
// assigned tickets; their PerformanceScore is nil since a score over
// zero tickets is undefined. Assignees found on tickets but missing
// from the roster are included with a placeholder name, so the board
// never silently drops work.
//
// Ordering is deterministic: TicketCount descending, then
// ResolvedCount descending, then TechnicianID ascending. Rank values
// are assigned 1..n in that order.
func Rank(tickets []models.CanonicalTicket, roster []models.Technician) []models.TechnicianRanking {
	type tally struct {
		tickets  int
		resolved int
	}
	tallies := make(map[string]*tally, len(roster))

	names := make(map[string]string, len(roster))
	for _, tech := range roster {
		names[tech.ID] = tech.DisplayName
		tallies[tech.ID] = &tally{}
	}

	for _, ticket := range tickets {
		resolved := ticket.Status == models.StatusResolved || ticket.Status == models.StatusClosed
		for _, assigneeID := range ticket.AssigneeIDs {
			t := tallies[assigneeID]
			if t == nil {
				t = &tally{}
				tallies[assigneeID] = t
			}
			t.tickets++
			if resolved {
				t.resolved++
			}
		}
	}

	rankings := make([]models.TechnicianRanking, 0, len(tallies))
	for id, t := range tallies {
		entry := models.TechnicianRanking{
			TechnicianID:  id,
			TicketCount:   t.tickets,
			ResolvedCount: t.resolved,
		}
		if name, ok := names[id]; ok && name != "" {
			entry.Name = name
		} else {
			entry.Name = "Technician #" + id
		}
		if t.tickets > 0 {
			score := float64(t.resolved) / float64(t.tickets) * 100
			entry.PerformanceScore = &score
		}
		rankings = append(rankings, entry)
	}

	sort.Slice(rankings, func(i, j int) bool {
		a, b := rankings[i], rankings[j]
		if a.TicketCount != b.TicketCount {
			return a.TicketCount > b.TicketCount
		}
		if a.ResolvedCount != b.ResolvedCount {
			return a.ResolvedCount > b.ResolvedCount
		}
		return a.TechnicianID < b.TechnicianID
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	return rankings
}
