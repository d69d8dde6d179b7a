// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package apperr carries the engine's HTTP-boundary error envelope,
// matching the teacher's internal/api errors.go+response.go pattern:
// sentinel errors, an APIError{Code, Message} envelope and a
// respondError/respondJSON pair using goccy/go-json for the wire
// codec. Maps directly onto spec §7's error kinds: invalid input
// (400), not found (404), storage transient (503), invariant
// violation (500). Conflict (duplicate document id) is not an error
// kind here — §7 resolves it as first-write-wins, silently.
package apperr

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/interestengine/internal/obslog"
)

// Sentinel errors a handler can return; Respond maps each to its §7 status.
var (
	ErrInvalidInput       = errors.New("apperr: invalid input")
	ErrNotFound           = errors.New("apperr: not found")
	ErrStorageTransient   = errors.New("apperr: storage transient failure")
	ErrInvariantViolation = errors.New("apperr: invariant violation")
)

// Error codes, mirroring the teacher's ErrCode* constants.
const (
	CodeBadRequest         = "BAD_REQUEST"
	CodeNotFound           = "NOT_FOUND"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// APIError is the error half of an API response envelope.
type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Envelope is the standardized response wrapper for every endpoint.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
	Meta    *Meta       `json:"meta,omitempty"`
}

// Meta carries response metadata, per the teacher's APIMeta.
type Meta struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	DurationMs    int64     `json:"duration_ms,omitempty"`
}

// statusAndCode maps a sentinel error to its §7 HTTP status and code.
// Unrecognized errors are treated as invariant violations (500), since
// anything reaching the boundary without a sentinel wrap is itself a
// bug, not a handled error kind.
func statusAndCode(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest, CodeBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, ErrStorageTransient):
		return http.StatusServiceUnavailable, CodeServiceUnavailable
	default:
		return http.StatusInternalServerError, CodeInternalError
	}
}

// RespondJSON writes a successful envelope.
func RespondJSON(w http.ResponseWriter, start time.Time, correlationID string, data interface{}) {
	writeEnvelope(w, http.StatusOK, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Meta{CorrelationID: correlationID, Timestamp: time.Now().UTC(), DurationMs: time.Since(start).Milliseconds()},
	})
}

// RespondCreated writes a 201 envelope, for document ingestion.
func RespondCreated(w http.ResponseWriter, start time.Time, correlationID string, data interface{}) {
	writeEnvelope(w, http.StatusCreated, Envelope{
		Success: true,
		Data:    data,
		Meta:    &Meta{CorrelationID: correlationID, Timestamp: time.Now().UTC(), DurationMs: time.Since(start).Milliseconds()},
	})
}

// RespondError writes err as a §7-mapped error envelope, logging
// invariant violations at Error per the ambient-stack logging policy.
func RespondError(w http.ResponseWriter, start time.Time, correlationID string, err error) {
	status, code := statusAndCode(err)
	if status == http.StatusInternalServerError {
		obslog.Logger().Error().Err(err).Str("correlation_id", correlationID).Msg("invariant violation reaching HTTP boundary")
	}

	writeEnvelope(w, status, Envelope{
		Success: false,
		Error:   &APIError{Code: code, Message: err.Error()},
		Meta:    &Meta{CorrelationID: correlationID, Timestamp: time.Now().UTC(), DurationMs: time.Since(start).Milliseconds()},
	})
}

// RespondValidationError writes a 400 with structured validation
// details (e.g. go-playground/validator field errors).
func RespondValidationError(w http.ResponseWriter, start time.Time, correlationID string, details interface{}) {
	writeEnvelope(w, http.StatusBadRequest, Envelope{
		Success: false,
		Error:   &APIError{Code: CodeBadRequest, Message: "validation failed", Details: details},
		Meta:    &Meta{CorrelationID: correlationID, Timestamp: time.Now().UTC(), DurationMs: time.Since(start).Milliseconds()},
	})
}

func writeEnvelope(w http.ResponseWriter, status int, env Envelope) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		obslog.Logger().Error().Err(err).Msg("apperr: failed to encode response envelope")
	}
}
