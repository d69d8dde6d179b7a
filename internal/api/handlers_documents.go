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
	"github.com/tomtom215/interestengine/internal/interest/embedding"
	"github.com/tomtom215/interestengine/internal/models"
	"github.com/tomtom215/interestengine/internal/obslog"
)

// documentHandler implements POST/DELETE /documents and the
// /documents/{id}/properties subtree of spec §6.
type documentHandler struct {
	registry  *engine.Registry
	filterCfg httpvalidate.FilterConfig
}

// upsert handles POST /documents: embeds each snippet, inserts the
// batch, and returns 201 (all succeeded) or 207 (partial failure) per
// spec §6, with conflicts (duplicate id within the batch) resolved
// first-write-wins per spec §7 rather than surfaced as an error.
func (h *documentHandler) upsert(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())

	var req models.UpsertDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if verrs := httpvalidate.ValidateStruct(req); verrs != nil {
		apperr.RespondValidationError(w, start, correlationID, verrs.Errors)
		return
	}

	eng, err := h.registry.ForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}

	seen := make(map[string]bool, len(req.Documents))
	docs := make([]docstore.Document, 0, len(req.Documents))
	embeddings := make(map[string]embedding.Embedding, len(req.Documents))
	results := make([]models.UpsertResult, 0, len(req.Documents))

	for _, d := range req.Documents {
		if seen[d.ID] {
			// First write wins; later writes in the same batch are
			// elided without error, per spec §7's conflict policy.
			continue
		}
		seen[d.ID] = true

		emb, err := eng.Embedder().Embed(r.Context(), d.Snippet)
		if err != nil {
			results = append(results, models.UpsertResult{ID: d.ID, Error: err.Error()})
			continue
		}
		docs = append(docs, docstore.Document{ID: d.ID, Snippet: d.Snippet, Properties: d.Properties})
		embeddings[d.ID] = emb
	}

	storeResults, err := eng.Storage().InsertDocuments(r.Context(), docs, embeddings)
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	for _, res := range storeResults {
		item := models.UpsertResult{ID: res.ID}
		if res.Error != nil {
			item.Error = res.Error.Error()
		}
		results = append(results, item)
	}

	allOK := true
	for _, res := range results {
		if res.Error != "" {
			allOK = false
			break
		}
	}
	if allOK {
		apperr.RespondCreated(w, start, correlationID, results)
	} else {
		writeMultiStatus(w, start, correlationID, results)
	}
}

// deleteOne handles DELETE /documents/{id}.
func (h *documentHandler) deleteOne(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	eng, err := h.registry.ForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	if err := eng.Storage().DeleteDocuments(r.Context(), []string{id}); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, nil)
}

// deleteBatch handles the batch DELETE /documents.
func (h *documentHandler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())

	var req models.DeleteDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if verrs := httpvalidate.ValidateStruct(req); verrs != nil {
		apperr.RespondValidationError(w, start, correlationID, verrs.Errors)
		return
	}

	eng, err := h.registry.ForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	if err := eng.Storage().DeleteDocuments(r.Context(), req.IDs); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, nil)
}

func (h *documentHandler) getProperties(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	eng, err := h.registry.ForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	props, err := eng.Storage().GetProperties(r.Context(), id)
	if err != nil {
		apperr.RespondError(w, start, correlationID, mapNotFound(err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, models.PropertiesResponse{DocumentID: id, Properties: props})
}

func (h *documentHandler) putProperties(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	var req models.PutPropertiesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrInvalidInput, err))
		return
	}
	if verrs := httpvalidate.ValidateStruct(req); verrs != nil {
		apperr.RespondValidationError(w, start, correlationID, verrs.Errors)
		return
	}

	eng, err := h.registry.ForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	if err := eng.Storage().PutProperties(r.Context(), id, req.Properties); err != nil {
		apperr.RespondError(w, start, correlationID, mapNotFound(err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, nil)
}

func (h *documentHandler) deleteProperty(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	propertyID := chi.URLParam(r, "propertyID")

	eng, err := h.registry.ForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	if err := eng.Storage().DeleteProperty(r.Context(), id, propertyID); err != nil {
		apperr.RespondError(w, start, correlationID, mapNotFound(err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, nil)
}

func (h *documentHandler) deleteAllProperties(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	correlationID := obslog.CorrelationIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	eng, err := h.registry.ForTenant(r.Context(), tenantFromContext(r.Context()))
	if err != nil {
		apperr.RespondError(w, start, correlationID, fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err))
		return
	}
	if err := eng.Storage().DeleteAllProperties(r.Context(), id); err != nil {
		apperr.RespondError(w, start, correlationID, mapNotFound(err))
		return
	}
	apperr.RespondJSON(w, start, correlationID, nil)
}

func mapNotFound(err error) error {
	if err == docstore.ErrDocumentNotFound || err == docstore.ErrPropertyNotFound {
		return fmt.Errorf("%w: %v", apperr.ErrNotFound, err)
	}
	return fmt.Errorf("%w: %v", apperr.ErrStorageTransient, err)
}

func writeMultiStatus(w http.ResponseWriter, start time.Time, correlationID string, results []models.UpsertResult) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusMultiStatus)
	_ = json.NewEncoder(w).Encode(struct {
		Success bool                  `json:"success"`
		Data    []models.UpsertResult `json:"data"`
		Meta    apperr.Meta           `json:"meta"`
	}{
		Success: true,
		Data:    results,
		Meta:    apperr.Meta{CorrelationID: correlationID, Timestamp: time.Now().UTC(), DurationMs: time.Since(start).Milliseconds()},
	})
}
