// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package aggregate

import (
	"math"

	"github.com/glpidash/glpidash/internal/models"
)

// Trends computes the percentage change of each canonical status
// between a prior period and the current one.
//
// Division-by-zero cases are defined, not accidental:
//   - prior == 0 and current == 0: no activity either period, delta 0
//   - prior == 0 and current > 0: activity appeared from nothing, the
//     delta is marked IsNew and rendered as "new" downstream
func Trends(current, prior map[models.StatusKind]int) map[models.StatusKind]models.PercentDelta {
	trends := make(map[models.StatusKind]models.PercentDelta, len(models.Statuses))
	for _, status := range models.Statuses {
		trends[status] = percentDelta(prior[status], current[status])
	}
	return trends
}

func percentDelta(prior, current int) models.PercentDelta {
	if prior == 0 {
		if current == 0 {
			return models.PercentDelta{Value: 0}
		}
		return models.PercentDelta{Value: math.Inf(1), IsNew: true}
	}
	return models.PercentDelta{
		Value: float64(current-prior) / float64(prior) * 100,
	}
}
