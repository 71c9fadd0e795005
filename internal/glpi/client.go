// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

/*
client.go - GLPI Upstream Gateway

High-level, endpoint-aware access to the GLPI REST API on top of the
resilient executor. The gateway owns the wire details the rest of the
service must never see: search criteria encoding, Range-header
pagination with Content-Range accounting, the 206 partial-content
convention, and numeric-keyed search rows.
*/
package glpi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/models"
)

// API is the consumer-side contract for upstream access. The dashboard
// service depends on this interface, not on the concrete client, so
// tests can substitute fakes and the circuit breaker can wrap it
// transparently.
type API interface {
	// ListTickets returns raw tickets matching the filter, in upstream
	// order. limit <= 0 means no limit.
	ListTickets(ctx context.Context, filter models.Filter, limit int) ([]models.RawTicket, error)

	// GetUser resolves a single user by ID.
	GetUser(ctx context.Context, id string) (*User, error)

	// GetGroupMembership returns the user IDs belonging to a group.
	GetGroupMembership(ctx context.Context, groupID string) ([]string, error)

	// Ping verifies the upstream is reachable with a cheap
	// authenticated call.
	Ping(ctx context.Context) error
}

// User is a resolved GLPI user account.
type User struct {
	ID        string
	Login     string
	FirstName string
	RealName  string
}

// DisplayName prefers the human name and falls back to the login.
func (u User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.RealName)
	if name != "" {
		return name
	}
	if u.Login != "" {
		return u.Login
	}
	return "Technician #" + u.ID
}

// ClientConfig holds gateway tuning.
type ClientConfig struct {
	// PageSize is the page window requested per search call.
	PageSize int

	// LevelGroups maps each support level to the GLPI group IDs that
	// staff it. Used to express level filters upstream.
	LevelGroups map[models.LevelKind][]int

	// MaxPages bounds a single listing as a runaway guard. Zero means
	// DefaultMaxPages.
	MaxPages int
}

const (
	// DefaultPageSize matches GLPI's own default list window.
	DefaultPageSize = 50

	// DefaultMaxPages caps a listing at 200k rows with the default
	// page size.
	DefaultMaxPages = 4000
)

// Client implements API against a live GLPI instance.
type Client struct {
	exec        *Executor
	pageSize    int
	maxPages    int
	levelGroups map[models.LevelKind][]int
}

var _ API = (*Client)(nil)

// NewClient builds a gateway over the given executor.
func NewClient(exec *Executor, cfg ClientConfig) *Client {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	return &Client{
		exec:        exec,
		pageSize:    cfg.PageSize,
		maxPages:    cfg.MaxPages,
		levelGroups: cfg.LevelGroups,
	}
}

// searchResponse is the envelope GLPI wraps search results in.
type searchResponse struct {
	TotalCount int                      `json:"totalcount"`
	Count      int                      `json:"count"`
	Data       []map[string]interface{} `json:"data"`
}

// ListTickets pages through /search/Ticket until the filter is
// exhausted or limit is reached. Upstream signals an incomplete window
// with HTTP 206 and a Content-Range header; a 200 means the final page.
// Row order within and across pages is preserved.
func (c *Client) ListTickets(ctx context.Context, filter models.Filter, limit int) ([]models.RawTicket, error) {
	query := buildTicketQuery(filter, c.levelGroups)

	var tickets []models.RawTicket
	start := 0
	for page := 0; page < c.maxPages; page++ {
		query.Set("range", fmt.Sprintf("%d-%d", start, start+c.pageSize-1))

		res, err := c.exec.Do(ctx, Request{
			Method: http.MethodGet,
			Path:   "/search/Ticket",
			Query:  query,
		})
		if err != nil {
			// A deadline hit mid-pagination still has usable pages.
			// Hand them back with the partial sentinel instead of
			// discarding fetched work.
			if len(tickets) > 0 && errors.Is(err, context.DeadlineExceeded) {
				logging.Warn().
					Int("rows", len(tickets)).
					Int("pages", page).
					Msg("Deadline hit mid-pagination, returning partial result")
				return tickets, fmt.Errorf("%w: deadline hit after %d rows", ErrPartialResult, len(tickets))
			}
			return nil, err
		}

		var sr searchResponse
		fallback, err := res.Decode(&sr)
		if err != nil {
			return nil, err
		}
		if fallback != nil {
			return nil, fmt.Errorf("%w: ticket search returned %s instead of JSON", ErrUpstreamUnavailable, fallback.ContentType)
		}

		for _, row := range sr.Data {
			tickets = append(tickets, renameSearchRow(row))
			if limit > 0 && len(tickets) >= limit {
				return tickets, nil
			}
		}

		// Content-Range is the authoritative total ("start-end/total");
		// the body's totalcount is the fallback when the header is
		// absent or malformed.
		total := sr.TotalCount
		if parsed, ok := contentRangeTotal(res.ContentRange()); ok {
			total = parsed
		}

		got := len(sr.Data)
		start += got
		if res.StatusCode != http.StatusPartialContent || got == 0 || start >= total {
			return tickets, nil
		}
	}

	logging.Warn().
		Int("pages", c.maxPages).
		Int("rows", len(tickets)).
		Msg("Ticket listing hit page cap, returning partial result")
	return tickets, nil
}

// contentRangeTotal extracts the total row count from a GLPI
// Content-Range header, formatted "start-end/total". Returns false for
// a missing or malformed header.
func contentRangeTotal(cr string) (int, bool) {
	_, totalPart, found := strings.Cut(cr, "/")
	if !found {
		return 0, false
	}
	total, err := strconv.Atoi(totalPart)
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}

// glpiUser matches the /User/{id} payload. GLPI serializes the ID as a
// number.
type glpiUser struct {
	ID        interface{} `json:"id"`
	Name      string      `json:"name"`
	RealName  string      `json:"realname"`
	FirstName string      `json:"firstname"`
}

// GetUser fetches /User/{id}. Unknown users yield ErrNotFound.
func (c *Client) GetUser(ctx context.Context, id string) (*User, error) {
	res, err := c.exec.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/User/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, err
	}

	var raw glpiUser
	fallback, err := res.Decode(&raw)
	if err != nil {
		return nil, err
	}
	if fallback != nil {
		return nil, fmt.Errorf("%w: user lookup returned %s instead of JSON", ErrUpstreamUnavailable, fallback.ContentType)
	}

	user := &User{
		Login:     raw.Name,
		FirstName: raw.FirstName,
		RealName:  raw.RealName,
	}
	if s, ok := scalarToID(raw.ID); ok {
		user.ID = s
	} else {
		user.ID = id
	}
	return user, nil
}

// groupUserLink matches one row of /Group/{id}/Group_User.
type groupUserLink struct {
	UserID interface{} `json:"users_id"`
}

// GetGroupMembership lists the user IDs assigned to a group.
func (c *Client) GetGroupMembership(ctx context.Context, groupID string) ([]string, error) {
	res, err := c.exec.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/Group/" + url.PathEscape(groupID) + "/Group_User",
	})
	if err != nil {
		return nil, err
	}

	var links []groupUserLink
	fallback, err := res.Decode(&links)
	if err != nil {
		return nil, err
	}
	if fallback != nil {
		return nil, fmt.Errorf("%w: group membership returned %s instead of JSON", ErrUpstreamUnavailable, fallback.ContentType)
	}

	userIDs := make([]string, 0, len(links))
	for _, link := range links {
		if s, ok := scalarToID(link.UserID); ok {
			userIDs = append(userIDs, s)
		}
	}
	return userIDs, nil
}

// Ping issues the cheapest authenticated call GLPI offers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.exec.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   "/getActiveEntities",
	})
	return err
}

// scalarToID renders a JSON scalar ID as a string. GLPI serializes IDs
// sometimes as numbers and sometimes as strings depending on version.
func scalarToID(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		if s == "" {
			return "", false
		}
		return s, true
	case float64:
		return strconv.FormatInt(int64(s), 10), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	default:
		return "", false
	}
}
