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
	"github.com/tomtom215/interestengine/internal/docstore"
	"github.com/tomtom215/interestengine/internal/engine"
	"github.com/tomtom215/interestengine/internal/httpvalidate"
	"github.com/tomtom215/interestengine/internal/models"
	"github.com/tomtom215/interestengine/internal/obslog"
)

// searchHandler implements POST /semantic_search of spec §6.
type searchHandler struct {
	registry  *engine.Registry
	filterCfg httpvalidate.FilterConfig
}

func (h *searchHandler) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	tenant := tenantFromContext(r.Context())

	var req models.SemanticSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if verrs := httpvalidate.ValidateStruct(req); verrs != nil {
		apperr.RespondValidationError(w, start, correlationID, verrs.Errors)
		return
	}
	if req.Document.ID == "" && req.Document.Query == "" {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: document must carry an id or a query", apperr.ErrInvalidInput))
		return
	}
	if err := httpvalidate.ValidateFilter(h.filterCfg, req.Filter); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}

	eng, err := h.registry.ForTenant(r.Context(), tenant)
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}

	var filter docstore.Filter
	if req.Filter != nil {
		filter = docstore.Filter(req.Filter)
	}

	results, err := eng.SemanticSearch(r.Context(), tenant, req.Personalize, req.Document.Query, req.Document.ID, req.Count, filter, req.Personalize != "", req.EnableHybridSearch)
	if err != nil {
		apperr.RespondError(w, start, correlationID, mapEngineErr(err))
		return
	}

	out := make([]models.ScoredDocumentResponse, 0, len(results))
	for _, res := range results {
		item := models.ScoredDocumentResponse{ID: res.ID, Score: float64(res.Score)}
		if req.IncludeProperties {
			if props, err := eng.Storage().GetProperties(r.Context(), res.ID); err == nil {
				item.Properties = props
			}
		}
		if req.IncludeSnippet {
			if snippet, ok, err := eng.Storage().GetSnippet(r.Context(), res.ID); err == nil && ok {
				item.Snippet = snippet
			}
		}
		out = append(out, item)
	}
	apperr.RespondJSON(w, start, correlationID, models.RankedDocumentsResponse{Results: out})
}
