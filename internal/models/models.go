// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package models holds the HTTP request and response DTOs for the
// interest engine's surface (spec §6), separate from the domain types
// in internal/interest and internal/docstore so the wire shape can
// evolve independently of the storage and scoring contracts.
package models

import "time"

// DocumentUpsert is one entry of a POST /documents batch.
type DocumentUpsert struct {
	ID         string                 `json:"id" validate:"required"`
	Snippet    string                 `json:"snippet" validate:"required"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// UpsertDocumentsRequest is the body of POST /documents.
type UpsertDocumentsRequest struct {
	Documents []DocumentUpsert `json:"documents" validate:"required,min=1,dive"`
}

// UpsertResult reports one document's outcome in a batch upsert, letting
// the handler return 207 Multi-Status per spec §6.
type UpsertResult struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

// DeleteDocumentsRequest is the body of the batch DELETE /documents.
type DeleteDocumentsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=1000"`
}

// PutPropertiesRequest is the body of PUT /documents/{id}/properties.
type PutPropertiesRequest struct {
	Properties map[string]interface{} `json:"properties" validate:"required"`
}

// MarketRef is the (language, country) partition key spec §3 names for
// key phrases, carried on the request bodies that drive C5/C6.
type MarketRef struct {
	Lang    string `json:"lang,omitempty"`
	Country string `json:"country,omitempty"`
}

// RecordInteractionRequest is the body of POST /users/{id}/interactions.
type RecordInteractionRequest struct {
	DocumentID string    `json:"document_id" validate:"required"`
	Sentiment  string    `json:"sentiment" validate:"required,oneof=liked disliked neutral"`
	ViewTimeMs int64     `json:"view_time_ms,omitempty"`
	Market     MarketRef `json:"market,omitempty"`
}

// RecommendationRequest is the body of POST /users/{id}/recommendations.
type RecommendationRequest struct {
	Count  int       `json:"count" validate:"required,gte=1,lte=100"`
	Market MarketRef `json:"market,omitempty"`
}

// SearchDocumentRef selects either a reference document id or free text,
// per spec §6's `{document: {id|query}}` shape.
type SearchDocumentRef struct {
	ID    string `json:"id,omitempty"`
	Query string `json:"query,omitempty"`
}

// SemanticSearchRequest is the body of POST /semantic_search.
type SemanticSearchRequest struct {
	Document SearchDocumentRef      `json:"document" validate:"required"`
	Count    int                    `json:"count" validate:"required,gte=1,lte=100"`
	Filter   map[string]interface{} `json:"filter,omitempty"`
	// EnableHybridSearch additionally ranks by Okapi BM25 over each
	// candidate's snippet (using the query text, or the reference
	// document's own snippet when searching by id) and fuses it with the
	// KNN ranking via reciprocal rank fusion (docscore.HybridMerge).
	EnableHybridSearch bool   `json:"enable_hybrid_search,omitempty"`
	IncludeProperties  bool   `json:"include_properties,omitempty"`
	IncludeSnippet     bool   `json:"include_snippet,omitempty"`
	Personalize        string `json:"personalize,omitempty"`
}

// ScoredDocumentResponse is one ranked result, shared by recommendations
// and semantic search responses.
type ScoredDocumentResponse struct {
	ID         string                 `json:"id"`
	Score      float64                `json:"score"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Snippet    string                 `json:"snippet,omitempty"`
}

// RankedDocumentsResponse wraps a ranked list, returned by both the
// recommendations and semantic search endpoints.
type RankedDocumentsResponse struct {
	Results []ScoredDocumentResponse `json:"results"`
}

// PropertiesResponse is the body of GET /documents/{id}/properties.
type PropertiesResponse struct {
	DocumentID string                 `json:"document_id"`
	Properties map[string]interface{} `json:"properties"`
}

// IssueTokenRequest requests a bearer token for a (tenant, user) pair.
// A thin stand-in per SPEC_FULL's ambient-auth scope, not a full OIDC flow.
type IssueTokenRequest struct {
	Tenant string `json:"tenant" validate:"required"`
	User   string `json:"user" validate:"required"`
}

// IssueTokenResponse carries the signed bearer token.
type IssueTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
