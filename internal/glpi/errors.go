// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package glpi implements the authenticated access layer for the GLPI
// REST API: session lifecycle, resilient request execution, and the
// typed gateway the rest of the pipeline consumes.
//
// errors.go - error taxonomy for upstream access
//
// Retry policy is driven entirely by these classifications: transient
// failures (429, 5xx, network) are absorbed by the executor's retry
// loop and only surface as ErrUpstreamUnavailable once exhausted;
// authentication failures surface as ErrAuthFailure only after the
// re-auth cap; caller errors (400, 404) are never retried.
package glpi

import "errors"

var (
	// ErrAuthFailure indicates authentication was exhausted: the session
	// could not be (re-)established within the configured attempt cap.
	// Fatal to the current request chain; requires operator intervention
	// (credential or config fix), not auto-recovered.
	ErrAuthFailure = errors.New("glpi: authentication failed")

	// ErrUpstreamUnavailable indicates the upstream API stayed
	// unreachable or erroring through the full retry budget.
	ErrUpstreamUnavailable = errors.New("glpi: upstream unavailable")

	// ErrBadRequest indicates the upstream rejected the request as
	// malformed (HTTP 400). Surfaced immediately, never retried.
	ErrBadRequest = errors.New("glpi: bad request")

	// ErrNotFound indicates the requested resource does not exist
	// (HTTP 404). Surfaced immediately, never retried.
	ErrNotFound = errors.New("glpi: not found")

	// ErrPartialResult marks a listing cut short by the caller's
	// deadline. The rows gathered before the cutoff accompany the
	// error; callers decide whether the partial snapshot is usable
	// (the dashboard serves it flagged Degraded).
	ErrPartialResult = errors.New("glpi: partial result")
)
