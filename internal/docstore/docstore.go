// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package docstore defines the storage contract the interest engine
// consumes, per spec §6: embeddings, a KNN vector index, document and
// property CRUD, and an interaction log. The shape is grounded on
// philippgille-chromem-go's normalized cosine-similarity vector math
// and on the VectorStore/SearchConfig contract of
// other_examples/204f59fd_lookatitude-beluga-ai's vectorstore package,
// adapted to the id/filter/excluded shape spec §6 names directly.
// Two implementations satisfy Storage: duckdbstore (durable) and
// memstore (in-memory, for unit tests).
package docstore

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// ErrDocumentNotFound is returned when a document id has no matching row.
var ErrDocumentNotFound = errors.New("docstore: document not found")

// ErrPropertyNotFound is returned when a property id has no matching entry.
var ErrPropertyNotFound = errors.New("docstore: property not found")

// Document is a unit of ingested content: an opaque id, the text it was
// embedded from, and an arbitrary property bag used for filtering.
type Document struct {
	ID         string
	Snippet    string
	Properties map[string]interface{}
}

// ScoredDocument is a KNN result: a document id and its similarity score.
type ScoredDocument struct {
	ID    string
	Score float32
}

// Sentiment mirrors pipeline.Sentiment's vocabulary, widened to the
// neutral case the HTTP interaction endpoint also accepts.
type Sentiment string

const (
	SentimentLiked    Sentiment = "liked"
	SentimentDisliked Sentiment = "disliked"
	SentimentNeutral  Sentiment = "neutral"
)

// Interaction is one recorded (user, document) event, as appended to the
// interaction log and replayed by LastNInteractions.
type Interaction struct {
	User      string
	DocID     string
	Sentiment Sentiment
	ViewTime  time.Duration
	Timestamp time.Time
}

// InsertResult reports the per-document outcome of a batch InsertDocuments
// call, letting the HTTP layer return 207 Multi-Status per spec §6.
type InsertResult struct {
	ID    string
	Error error
}

// Filter is the recursive filter-grammar value of spec §6, already
// shape-validated by httpvalidate.ValidateFilter before it reaches
// Storage. It is evaluated against a Document's Properties by Match.
type Filter = map[string]interface{}

// Storage is the contract the interest engine's core packages consume,
// matching spec §6 exactly: embedding lookup, KNN, document and property
// CRUD, and the interaction log. All operations are fallible and every
// insert/delete is idempotent by document id, per §6's "idempotent for
// document insert-by-id" requirement.
type Storage interface {
	// GetEmbedding returns doc's embedding, or ok=false if doc is unknown.
	GetEmbedding(ctx context.Context, docID string) (emb embedding.Embedding, ok bool, err error)

	// GetSnippet returns doc's source text, or ok=false if doc is unknown.
	// Used by the semantic search surface's include_snippet option.
	GetSnippet(ctx context.Context, docID string) (snippet string, ok bool, err error)

	// KNN returns up to k documents most similar to query, excluding any
	// id in excluded and matching filter (nil matches everything).
	KNN(ctx context.Context, query embedding.Embedding, k int, filter Filter, excluded []string) ([]ScoredDocument, error)

	// LexicalSearch returns up to k documents ranked by Okapi BM25 against
	// query's terms over each document's snippet, excluding any id in
	// excluded and matching filter (nil matches everything). This is the
	// keyword-search leg of semantic_search's hybrid mode.
	LexicalSearch(ctx context.Context, query string, k int, filter Filter, excluded []string) ([]ScoredDocument, error)

	// InsertDocuments upserts docs with their embeddings, by id. Inserting
	// a document with an id that already exists and an unchanged snippet
	// and properties is a no-op, per spec §6's re-ingest invariant.
	InsertDocuments(ctx context.Context, docs []Document, embeddings map[string]embedding.Embedding) ([]InsertResult, error)

	// DeleteDocuments removes documents (and their properties and
	// embeddings) by id. Deleting an unknown id is not an error.
	DeleteDocuments(ctx context.Context, ids []string) error

	// GetProperties returns doc's full property map.
	GetProperties(ctx context.Context, docID string) (map[string]interface{}, error)

	// PutProperties merges props into doc's property map, overwriting any
	// keys in common.
	PutProperties(ctx context.Context, docID string, props map[string]interface{}) error

	// DeleteProperty removes a single property by id.
	DeleteProperty(ctx context.Context, docID, propertyID string) error

	// DeleteAllProperties clears doc's entire property map.
	DeleteAllProperties(ctx context.Context, docID string) error

	// AppendInteraction records a single interaction event.
	AppendInteraction(ctx context.Context, in Interaction) error

	// LastNInteractions returns user's most recent n interactions, most
	// recent first.
	LastNInteractions(ctx context.Context, user string, n int) ([]Interaction, error)
}
