// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/interestengine/internal/apperr"
	"github.com/tomtom215/interestengine/internal/httpvalidate"
	"github.com/tomtom215/interestengine/internal/models"
	"github.com/tomtom215/interestengine/internal/obslog"
)

// issueToken mints a bearer token for a (tenant, user) pair. This is
// the thin stand-in SPEC_FULL's ambient-auth scope calls for, not a
// full login flow: the caller is trusted to have already authenticated
// the (tenant, user) pair through some external mechanism.
func (rt *Router) issueToken(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())

	var req models.IssueTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if verrs := httpvalidate.ValidateStruct(req); verrs != nil {
		apperr.RespondValidationError(w, start, correlationID, verrs.Errors)
		return
	}

	token, err := rt.auth.IssueToken(req.Tenant, req.User)
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvariantViolation, err))
		return
	}

	claims, err := rt.auth.Authenticate(token)
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvariantViolation, err))
		return
	}

	apperr.RespondCreated(w, start, correlationID, models.IssueTokenResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	})
}
