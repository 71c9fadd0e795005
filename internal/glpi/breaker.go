// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

package glpi

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/glpidash/glpidash/internal/logging"
	"github.com/glpidash/glpidash/internal/metrics"
	"github.com/glpidash/glpidash/internal/models"
)

// BreakerClient wraps an API with a circuit breaker so a struggling
// GLPI instance is not hammered while it recovers. Only upstream and
// auth failures count against the circuit; caller mistakes (bad
// request, not found) pass through without tripping it.
type BreakerClient struct {
	inner API
	cb    *gobreaker.CircuitBreaker[interface{}]
	name  string
}

var _ API = (*BreakerClient)(nil)

// NewBreakerClient wraps api with circuit breaker protection.
// Configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func NewBreakerClient(api API) *BreakerClient {
	cbName := "glpi-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}

			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6

			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}

			return shouldTrip
		},

		// Caller-side errors do not indicate upstream trouble.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Caller mistakes and caller-imposed deadlines say nothing
			// about upstream health and must not trip the breaker.
			return errors.Is(err, ErrBadRequest) ||
				errors.Is(err, ErrNotFound) ||
				errors.Is(err, ErrPartialResult)
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &BreakerClient{
		inner: api,
		cb:    cb,
		name:  cbName,
	}
}

// execute runs one upstream call through the breaker and records the
// outcome.
func (bc *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := bc.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			// Callers classify on the sentinel, not on gobreaker
			// internals.
			return nil, fmt.Errorf("%w: circuit open: %v", ErrUpstreamUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "failure").Inc()
		// Keep the result: a partial listing rides alongside its error.
		return result, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(bc.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts the circuit breaker result. The typed
// value passes through even with a non-nil error, so partial results
// survive the breaker.
func castResult[T any](result interface{}, err error) (T, error) {
	typed, ok := result.(T)
	if !ok {
		var zero T
		if err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, err
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// ListTickets lists tickets with circuit breaker protection.
func (bc *BreakerClient) ListTickets(ctx context.Context, filter models.Filter, limit int) ([]models.RawTicket, error) {
	return castResult[[]models.RawTicket](bc.execute(func() (interface{}, error) {
		return bc.inner.ListTickets(ctx, filter, limit)
	}))
}

// GetUser resolves a user with circuit breaker protection.
func (bc *BreakerClient) GetUser(ctx context.Context, id string) (*User, error) {
	return castResult[*User](bc.execute(func() (interface{}, error) {
		return bc.inner.GetUser(ctx, id)
	}))
}

// GetGroupMembership lists group members with circuit breaker protection.
func (bc *BreakerClient) GetGroupMembership(ctx context.Context, groupID string) ([]string, error) {
	return castResult[[]string](bc.execute(func() (interface{}, error) {
		return bc.inner.GetGroupMembership(ctx, groupID)
	}))
}

// Ping checks upstream reachability with circuit breaker protection.
func (bc *BreakerClient) Ping(ctx context.Context) error {
	_, err := bc.execute(func() (interface{}, error) {
		return nil, bc.inner.Ping(ctx)
	})
	return err
}
