// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

/*
criteria.go - GLPI Search Criteria Encoding

GLPI's search API filters through an indexed form encoding:

	criteria[0][field]=15&criteria[0][searchtype]=morethan&criteria[0][value]=...
	criteria[1][link]=AND&criteria[1][criteria][0][field]=12&...

and returns rows keyed by numeric search-option IDs rather than field
names. Both quirks are encapsulated here: callers supply an abstract
models.Filter and receive RawTickets with named fields; nothing outside
this file speaks the criteria syntax.
*/
package glpi

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/glpidash/glpidash/internal/models"
	"github.com/glpidash/glpidash/internal/normalize"
)

// GLPI search-option IDs for the Ticket item type.
const (
	searchFieldID            = 2
	searchFieldAssignedTech  = 5
	searchFieldAssignedGroup = 8
	searchFieldStatus        = 12
	searchFieldDateOpened    = 15
	searchFieldDateSolved    = 17
)

// searchColumnNames maps search-option IDs back to the field names the
// normalizer understands.
var searchColumnNames = map[string]string{
	"2":  "id",
	"5":  "users_id_assign",
	"8":  "groups_id_assign",
	"12": "status",
	"15": "date",
	"17": "solvedate",
}

// criteriaDateLayout is the timestamp format GLPI expects in criteria
// values.
const criteriaDateLayout = "2006-01-02 15:04:05"

// buildTicketQuery encodes a models.Filter into GLPI search criteria.
// levelGroups supplies the group IDs behind each level so a level
// filter can be expressed as a group filter upstream. LevelUnknown
// cannot be expressed upstream and is ignored here; the facade filters
// it after normalization.
func buildTicketQuery(f models.Filter, levelGroups map[models.LevelKind][]int) url.Values {
	q := url.Values{}
	block := 0

	addCriterion := func(field int, searchType, value string) {
		prefix := fmt.Sprintf("criteria[%d]", block)
		if block > 0 {
			q.Set(prefix+"[link]", "AND")
		}
		q.Set(prefix+"[field]", strconv.Itoa(field))
		q.Set(prefix+"[searchtype]", searchType)
		q.Set(prefix+"[value]", value)
		block++
	}

	// Disjunctions (status sets, level sets) go into a nested criteria
	// group: AND ( a OR b OR ... ).
	addGroup := func(field int, values []string) {
		if len(values) == 0 {
			return
		}
		prefix := fmt.Sprintf("criteria[%d]", block)
		if block > 0 {
			q.Set(prefix+"[link]", "AND")
		}
		for i, value := range values {
			nested := fmt.Sprintf("%s[criteria][%d]", prefix, i)
			if i > 0 {
				q.Set(nested+"[link]", "OR")
			}
			q.Set(nested+"[field]", strconv.Itoa(field))
			q.Set(nested+"[searchtype]", "equals")
			q.Set(nested+"[value]", value)
		}
		block++
	}

	if !f.From.IsZero() {
		addCriterion(searchFieldDateOpened, "morethan", f.From.Format(criteriaDateLayout))
	}
	if !f.To.IsZero() {
		addCriterion(searchFieldDateOpened, "lessthan", f.To.Format(criteriaDateLayout))
	}

	var statusValues []string
	for _, kind := range f.Statuses {
		for _, code := range normalize.CodesForStatus(kind) {
			statusValues = append(statusValues, strconv.Itoa(code))
		}
	}
	addGroup(searchFieldStatus, statusValues)

	var groupValues []string
	for _, level := range f.Levels {
		for _, groupID := range levelGroups[level] {
			groupValues = append(groupValues, strconv.Itoa(groupID))
		}
	}
	addGroup(searchFieldAssignedGroup, groupValues)

	for i, field := range []int{
		searchFieldID,
		searchFieldAssignedTech,
		searchFieldAssignedGroup,
		searchFieldStatus,
		searchFieldDateOpened,
		searchFieldDateSolved,
	} {
		q.Set(fmt.Sprintf("forcedisplay[%d]", i), strconv.Itoa(field))
	}

	return q
}

// renameSearchRow converts one numeric-keyed search row into a
// RawTicket with named fields. Columns this build does not know are
// dropped.
func renameSearchRow(row map[string]interface{}) models.RawTicket {
	ticket := make(models.RawTicket, len(row))
	for key, value := range row {
		if name, ok := searchColumnNames[key]; ok {
			ticket[name] = value
		}
	}
	return ticket
}
