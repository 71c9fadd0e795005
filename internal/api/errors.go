// glpidash - GLPI Service Desk Metrics Dashboard
// Copyright 2026 glpidash contributors
// SPDX-License-Identifier: MIT
// https://github.com/glpidash/glpidash

// Package api provides the HTTP surface of the dashboard: routing,
// middleware, and handlers over the metrics facade.
//
// errors.go - error envelope and upstream error mapping
package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/glpidash/glpidash/internal/glpi"
	"github.com/glpidash/glpidash/internal/logging"
)

// apiResponse is the uniform JSON envelope for every endpoint.
type apiResponse struct {
	Status    string      `json:"status"` // "success" or "error"
	Data      interface{} `json:"data,omitempty"`
	Error     *apiError   `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// apiError is the error half of the envelope.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON sends a success envelope.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(apiResponse{
		Status:    "success",
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends an error envelope.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}

	w.Header().Set("Content-Type", "application/json")
	body, marshalErr := json.Marshal(apiResponse{
		Status:    "error",
		Error:     &apiError{Code: code, Message: message},
		Timestamp: time.Now().UTC(),
	})
	if marshalErr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondUpstreamError maps facade errors onto HTTP statuses. The
// sentinel taxonomy keeps the mapping a pure errors.Is dispatch.
func respondUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, glpi.ErrAuthFailure):
		respondError(w, http.StatusServiceUnavailable, "UPSTREAM_AUTH_FAILURE",
			"Upstream authentication failed; operator intervention required", err)
	case errors.Is(err, glpi.ErrUpstreamUnavailable):
		respondError(w, http.StatusServiceUnavailable, "UPSTREAM_UNAVAILABLE",
			"The ticketing system is currently unreachable", err)
	case errors.Is(err, glpi.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND",
			"The requested resource does not exist upstream", err)
	case errors.Is(err, glpi.ErrBadRequest):
		respondError(w, http.StatusBadRequest, "UPSTREAM_BAD_REQUEST",
			"The upstream rejected the request", err)
	default:
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An internal error occurred", err)
	}
}
