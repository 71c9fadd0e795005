// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package models

import (
	"sort"
	"strings"
	"time"
)

// Filter is the abstract ticket selection callers supply. The upstream
// gateway translates it into GLPI's criteria syntax; callers never
// build that syntax directly.
type Filter struct {
	From     time.Time
	To       time.Time
	Statuses []StatusKind
	Levels   []LevelKind
}

// Window returns the filter's time span.
func (f Filter) Window() time.Duration {
	return f.To.Sub(f.From)
}

// PriorPeriod returns the filter shifted to the window of equal length
// immediately preceding this one, used for trend comparison.
func (f Filter) PriorPeriod() Filter {
	span := f.Window()
	prior := f
	prior.To = f.From
	prior.From = f.From.Add(-span)
	return prior
}

// CanonicalKey returns a deterministic encoding of the filter, suitable
// for cache key derivation. Status and level sets are sorted so that
// logically equal filters produce identical keys.
func (f Filter) CanonicalKey() string {
	statuses := make([]string, len(f.Statuses))
	for i, s := range f.Statuses {
		statuses[i] = string(s)
	}
	sort.Strings(statuses)

	levels := make([]string, len(f.Levels))
	for i, l := range f.Levels {
		levels[i] = string(l)
	}
	sort.Strings(levels)

	var b strings.Builder
	b.WriteString(f.From.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	b.WriteString(f.To.UTC().Format(time.RFC3339))
	b.WriteByte('|')
	b.WriteString(strings.Join(statuses, ","))
	b.WriteByte('|')
	b.WriteString(strings.Join(levels, ","))
	return b.String()
}
