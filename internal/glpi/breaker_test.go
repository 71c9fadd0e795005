// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package glpi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glpidash/glpidash/internal/models"
)

// fakeAPI scripts upstream outcomes per method.
type fakeAPI struct {
	tickets    []models.RawTicket
	ticketsErr error
	user       *User
	userErr    error
	members    []string
	membersErr error
	pingErr    error

	calls int
}

func (f *fakeAPI) ListTickets(ctx context.Context, filter models.Filter, limit int) ([]models.RawTicket, error) {
	f.calls++
	return f.tickets, f.ticketsErr
}

func (f *fakeAPI) GetUser(ctx context.Context, id string) (*User, error) {
	f.calls++
	return f.user, f.userErr
}

func (f *fakeAPI) GetGroupMembership(ctx context.Context, groupID string) ([]string, error) {
	f.calls++
	return f.members, f.membersErr
}

func (f *fakeAPI) Ping(ctx context.Context) error {
	f.calls++
	return f.pingErr
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := &fakeAPI{
		tickets: []models.RawTicket{{"id": float64(1)}},
		user:    &User{ID: "53", Login: "jdoe"},
		members: []string{"53"},
	}
	bc := NewBreakerClient(inner)

	tickets, err := bc.ListTickets(context.Background(), models.Filter{}, 0)
	if err != nil {
		t.Fatalf("ListTickets failed: %v", err)
	}
	if len(tickets) != 1 {
		t.Errorf("Expected 1 ticket, got %d", len(tickets))
	}

	user, err := bc.GetUser(context.Background(), "53")
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.ID != "53" {
		t.Errorf("Expected user 53, got %q", user.ID)
	}

	members, err := bc.GetGroupMembership(context.Background(), "89")
	if err != nil {
		t.Fatalf("GetGroupMembership failed: %v", err)
	}
	if len(members) != 1 {
		t.Errorf("Expected 1 member, got %d", len(members))
	}

	if err := bc.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
}

func TestBreakerOpensOnRepeatedUpstreamFailures(t *testing.T) {
	inner := &fakeAPI{
		pingErr: fmt.Errorf("%w: connection refused", ErrUpstreamUnavailable),
	}
	bc := NewBreakerClient(inner)

	// Drive the failure rate past the 60%/10-request threshold.
	for i := 0; i < 15; i++ {
		_ = bc.Ping(context.Background())
	}

	before := inner.calls
	err := bc.Ping(context.Background())
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("Expected ErrUpstreamUnavailable from open circuit, got %v", err)
	}
	if inner.calls != before {
		t.Error("Expected open circuit to reject without calling upstream")
	}
}

func TestBreakerPassesThroughPartialResults(t *testing.T) {
	inner := &fakeAPI{
		tickets:    []models.RawTicket{{"id": float64(1)}, {"id": float64(2)}},
		ticketsErr: fmt.Errorf("%w: deadline hit after 2 rows", ErrPartialResult),
	}
	bc := NewBreakerClient(inner)

	// The rows fetched before the deadline must survive the breaker
	// alongside the sentinel.
	tickets, err := bc.ListTickets(context.Background(), models.Filter{}, 0)
	if !errors.Is(err, ErrPartialResult) {
		t.Fatalf("Expected ErrPartialResult, got %v", err)
	}
	if len(tickets) != 2 {
		t.Errorf("Expected 2 partial rows through the breaker, got %d", len(tickets))
	}

	// Caller-imposed deadlines must not open the circuit.
	for i := 0; i < 20; i++ {
		_, _ = bc.ListTickets(context.Background(), models.Filter{}, 0)
	}
	if inner.calls != 21 {
		t.Errorf("Expected all calls to reach upstream, got %d", inner.calls)
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	inner := &fakeAPI{
		userErr: fmt.Errorf("%w: no such user", ErrNotFound),
	}
	bc := NewBreakerClient(inner)

	// Caller mistakes must never trip the circuit.
	for i := 0; i < 20; i++ {
		_, err := bc.GetUser(context.Background(), "999")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("Call %d: expected ErrNotFound, got %v", i, err)
		}
	}
	if inner.calls != 20 {
		t.Errorf("Expected all 20 calls to reach upstream, got %d", inner.calls)
	}
}
