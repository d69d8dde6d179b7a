// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/interestengine/internal/apperr"
	"github.com/tomtom215/interestengine/internal/docstore"
	"github.com/tomtom215/interestengine/internal/engine"
	"github.com/tomtom215/interestengine/internal/httpvalidate"
	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/models"
	"github.com/tomtom215/interestengine/internal/obslog"
)

func marketFromRequest(ref models.MarketRef) interest.Market {
	return interest.Market{Lang: ref.Lang, Country: ref.Country}.OrDefault()
}

// interactionHandler implements the /users/{id}/... endpoints of
// spec §6: interaction recording and personalized recommendations.
type interactionHandler struct {
	registry *engine.Registry
}

func (h *interactionHandler) record(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	userID := chi.URLParam(r, "id")
	tenant := tenantFromContext(r.Context())

	var req models.RecordInteractionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if verrs := httpvalidate.ValidateStruct(req); verrs != nil {
		apperr.RespondValidationError(w, start, correlationID, verrs.Errors)
		return
	}

	eng, err := h.registry.ForTenant(r.Context(), tenant)
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}

	err = eng.RecordInteraction(r.Context(), tenant, userID, req.DocumentID, docstore.Sentiment(req.Sentiment), time.Duration(req.ViewTimeMs)*time.Millisecond, marketFromRequest(req.Market))
	if err != nil {
		apperr.RespondError(w, start, correlationID, mapEngineErr(err))
		return
	}
	apperr.RespondCreated(w, start, correlationID, nil)
}

func (h *interactionHandler) recommend(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	userID := chi.URLParam(r, "id")
	tenant := tenantFromContext(r.Context())

	var req models.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if verrs := httpvalidate.ValidateStruct(req); verrs != nil {
		apperr.RespondValidationError(w, start, correlationID, verrs.Errors)
		return
	}

	eng, err := h.registry.ForTenant(r.Context(), tenant)
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}

	results, err := eng.Recommend(r.Context(), tenant, userID, req.Count, marketFromRequest(req.Market))
	if err != nil {
		apperr.RespondError(w, start, correlationID, mapEngineErr(err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, toRankedResponse(results))
}

func (h *interactionHandler) deleteUser(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	userID := chi.URLParam(r, "id")
	tenant := tenantFromContext(r.Context())

	eng, err := h.registry.ForTenant(r.Context(), tenant)
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	if err := eng.DeleteUser(userID); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, nil)
}

func mapEngineErr(err error) error {
	if err == docstore.ErrDocumentNotFound {
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err)
}

func toRankedResponse(results []docstore.ScoredDocument) models.RankedDocumentsResponse {
	out := make([]models.ScoredDocumentResponse, 0, len(results))
	for _, r := range results {
		out = append(out, models.ScoredDocumentResponse{ID: r.ID, Score: float64(r.Score)})
	}
	return models.RankedDocumentsResponse{Results: out}
}
