// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package duckdbstore is the durable docstore.Storage implementation,
// grounded on the teacher's internal/audit.DuckDBStore (database/sql
// against github.com/duckdb/duckdb-go/v2, JSON columns cast to VARCHAR
// for scanning, batched statement execution for schema setup). KNN and
// embedding lookups run behind a gobreaker circuit breaker, per
// SPEC_FULL's domain-stack wiring for the storage-transient failure
// path of spec §7.
package duckdbstore

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/goccy/go-json"
	"github.com/sony/gobreaker/v2"

	"github.com/tomtom215/interestengine/internal/docstore"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
	"github.com/tomtom215/interestengine/internal/obsmetrics"
)

// Config tunes the breaker guarding reads against the database.
type Config struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
}

// DefaultConfig mirrors embedclient's breaker tuning, reused here since
// both guard a fallible external dependency behind the same retry policy.
func DefaultConfig() Config {
	return Config{Name: "duckdbstore", MaxRequests: 5, Interval: 30 * time.Second, Timeout: 30 * time.Second}
}

// Store is the DuckDB-backed Storage implementation.
type Store struct {
	db *sql.DB
	cb *gobreaker.CircuitBreaker[any]
}

// Open opens (or creates) a DuckDB database at path and ensures its
// schema exists. path may be ":memory:" for ephemeral use.
func Open(ctx context.Context, path string, cfg Config) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("duckdbstore: open %s: %w", path, err)
	}
	s := New(db, cfg)
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already-open DuckDB handle. The caller owns db's lifecycle.
func New(db *sql.DB, cfg Config) *Store {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			obsmetrics.ObserveCircuitBreakerTransition(name, int(from), int(to))
		},
	}
	return &Store{db: db, cb: gobreaker.NewCircuitBreaker[any](settings)}
}

var _ docstore.Storage = (*Store)(nil)

// Close closes the underlying database handle. Only call this when the
// Store owns its handle's lifecycle (i.e. it was built via Open).
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			snippet TEXT NOT NULL,
			embedding JSON NOT NULL,
			properties JSON NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			user_id TEXT NOT NULL,
			doc_id TEXT NOT NULL,
			sentiment TEXT NOT NULL,
			view_time_ns BIGINT NOT NULL,
			ts TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_user_ts ON interactions(user_id, ts DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("duckdbstore: create schema: %w", err)
		}
	}
	return nil
}

func (s *Store) GetEmbedding(ctx context.Context, docID string) (embedding.Embedding, bool, error) {
	result, err := s.cb.Execute(func() (any, error) {
		var raw string
		row := s.db.QueryRowContext(ctx, `SELECT CAST(embedding AS VARCHAR) FROM documents WHERE id = ?`, docID)
		if err := row.Scan(&raw); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, fmt.Errorf("duckdbstore: get embedding: %w", err)
		}
		return raw, nil
	})
	if err != nil {
		return embedding.Embedding{}, false, mapBreakerErr(err)
	}
	if result == nil {
		return embedding.Embedding{}, false, nil
	}
	var v []float32
	if err := json.Unmarshal([]byte(result.(string)), &v); err != nil {
		return embedding.Embedding{}, false, fmt.Errorf("duckdbstore: decode embedding: %w", err)
	}
	emb, err := embedding.New(v)
	if err != nil {
		return embedding.Embedding{}, false, err
	}
	return emb, true, nil
}

// GetSnippet returns doc's source text, or ok=false if doc is unknown.
func (s *Store) GetSnippet(ctx context.Context, docID string) (string, bool, error) {
	result, err := s.cb.Execute(func() (any, error) {
		var snippet string
		row := s.db.QueryRowContext(ctx, `SELECT snippet FROM documents WHERE id = ?`, docID)
		if err := row.Scan(&snippet); err != nil {
			if err == sql.ErrNoRows {
				return nil, nil
			}
			return nil, fmt.Errorf("duckdbstore: get snippet: %w", err)
		}
		return snippet, nil
	})
	if err != nil {
		return "", false, mapBreakerErr(err)
	}
	if result == nil {
		return "", false, nil
	}
	return result.(string), true, nil
}

func (s *Store) KNN(ctx context.Context, query embedding.Embedding, k int, filter docstore.Filter, excluded []string) ([]docstore.ScoredDocument, error) {
	result, err := s.cb.Execute(func() (any, error) {
		excludeSet := make(map[string]bool, len(excluded))
		for _, id := range excluded {
			excludeSet[id] = true
		}

		rows, err := s.db.QueryContext(ctx, `SELECT id, CAST(embedding AS VARCHAR), CAST(properties AS VARCHAR) FROM documents`)
		if err != nil {
			return nil, fmt.Errorf("duckdbstore: knn scan: %w", err)
		}
		defer rows.Close()

		var scored []docstore.ScoredDocument
		for rows.Next() {
			var id, rawEmb, rawProps string
			if err := rows.Scan(&id, &rawEmb, &rawProps); err != nil {
				return nil, fmt.Errorf("duckdbstore: scan row: %w", err)
			}
			if excludeSet[id] {
				continue
			}
			var v []float32
			if err := json.Unmarshal([]byte(rawEmb), &v); err != nil {
				return nil, fmt.Errorf("duckdbstore: decode embedding for %s: %w", id, err)
			}
			emb, err := embedding.New(v)
			if err != nil {
				return nil, fmt.Errorf("duckdbstore: invalid embedding for %s: %w", id, err)
			}
			var props map[string]interface{}
			if err := json.Unmarshal([]byte(rawProps), &props); err != nil {
				return nil, fmt.Errorf("duckdbstore: decode properties for %s: %w", id, err)
			}
			matched, err := docstore.Match(filter, props)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
			sim, err := embedding.Cosine(query, emb)
			if err != nil {
				return nil, err
			}
			scored = append(scored, docstore.ScoredDocument{ID: id, Score: sim})
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return scored, nil
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	scored := result.([]docstore.ScoredDocument)
	sortByScoreDesc(scored)
	if k >= 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func sortByScoreDesc(scored []docstore.ScoredDocument) {
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && (scored[j].Score > scored[j-1].Score || (scored[j].Score == scored[j-1].Score && scored[j].ID < scored[j-1].ID)); j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
}

// LexicalSearch scores every document's snippet against query with Okapi
// BM25, the keyword-search leg of semantic_search's hybrid mode. Like
// KNN, this is a full-table scan with scoring done in Go: the pack
// carries no DuckDB full-text-search extension or lexical-search
// library, so the query runs the same way the vector path already does.
func (s *Store) LexicalSearch(ctx context.Context, query string, k int, filter docstore.Filter, excluded []string) ([]docstore.ScoredDocument, error) {
	result, err := s.cb.Execute(func() (any, error) {
		excludeSet := make(map[string]bool, len(excluded))
		for _, id := range excluded {
			excludeSet[id] = true
		}

		rows, err := s.db.QueryContext(ctx, `SELECT id, snippet, CAST(properties AS VARCHAR) FROM documents`)
		if err != nil {
			return nil, fmt.Errorf("duckdbstore: lexical scan: %w", err)
		}
		defer rows.Close()

		corpus := make(map[string]string)
		for rows.Next() {
			var id, snippet, rawProps string
			if err := rows.Scan(&id, &snippet, &rawProps); err != nil {
				return nil, fmt.Errorf("duckdbstore: scan row: %w", err)
			}
			var props map[string]interface{}
			if err := json.Unmarshal([]byte(rawProps), &props); err != nil {
				return nil, fmt.Errorf("duckdbstore: decode properties for %s: %w", id, err)
			}
			matched, err := docstore.Match(filter, props)
			if err != nil {
				return nil, err
			}
			if !matched {
				continue
			}
			corpus[id] = snippet
		}
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return docstore.BM25Rank(corpus, query, excludeSet), nil
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	scored := result.([]docstore.ScoredDocument)
	if k >= 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Store) InsertDocuments(ctx context.Context, docs []docstore.Document, embeddings map[string]embedding.Embedding) ([]docstore.InsertResult, error) {
	results := make([]docstore.InsertResult, 0, len(docs))
	for _, d := range docs {
		emb, ok := embeddings[d.ID]
		if !ok {
			results = append(results, docstore.InsertResult{ID: d.ID, Error: embedding.ErrEmptyVector})
			continue
		}
		if err := s.upsertOne(ctx, d, emb); err != nil {
			results = append(results, docstore.InsertResult{ID: d.ID, Error: err})
			continue
		}
		results = append(results, docstore.InsertResult{ID: d.ID})
	}
	return results, nil
}

func (s *Store) upsertOne(ctx context.Context, d docstore.Document, emb embedding.Embedding) error {
	existing, err := s.GetProperties(ctx, d.ID)
	if err != nil && err != docstore.ErrDocumentNotFound {
		return err
	}
	if err == nil {
		var prevSnippet string
		row := s.db.QueryRowContext(ctx, `SELECT snippet FROM documents WHERE id = ?`, d.ID)
		if scanErr := row.Scan(&prevSnippet); scanErr == nil && prevSnippet == d.Snippet && propsEqual(existing, d.Properties) {
			return nil
		}
	}

	embJSON, err := json.Marshal(emb.Values())
	if err != nil {
		return fmt.Errorf("duckdbstore: marshal embedding: %w", err)
	}
	propsJSON, err := json.Marshal(d.Properties)
	if err != nil {
		return fmt.Errorf("duckdbstore: marshal properties: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (id, snippet, embedding, properties, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			snippet = EXCLUDED.snippet,
			embedding = EXCLUDED.embedding,
			properties = EXCLUDED.properties,
			updated_at = EXCLUDED.updated_at
	`, d.ID, d.Snippet, string(embJSON), string(propsJSON), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("duckdbstore: upsert document %s: %w", d.ID, err)
	}
	return nil
}

func propsEqual(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if !reflect.DeepEqual(b[k], v) {
			return false
		}
	}
	return true
}

func (s *Store) DeleteDocuments(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM documents WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("duckdbstore: delete documents: %w", err)
	}
	return nil
}

func (s *Store) GetProperties(ctx context.Context, docID string) (map[string]interface{}, error) {
	var raw string
	row := s.db.QueryRowContext(ctx, `SELECT CAST(properties AS VARCHAR) FROM documents WHERE id = ?`, docID)
	if err := row.Scan(&raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, docstore.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("duckdbstore: get properties: %w", err)
	}
	var props map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("duckdbstore: decode properties: %w", err)
	}
	return props, nil
}

func (s *Store) PutProperties(ctx context.Context, docID string, patch map[string]interface{}) error {
	props, err := s.GetProperties(ctx, docID)
	if err != nil {
		return err
	}
	for k, v := range patch {
		props[k] = v
	}
	return s.writeProperties(ctx, docID, props)
}

func (s *Store) DeleteProperty(ctx context.Context, docID, propertyID string) error {
	props, err := s.GetProperties(ctx, docID)
	if err != nil {
		return err
	}
	if _, ok := props[propertyID]; !ok {
		return docstore.ErrPropertyNotFound
	}
	delete(props, propertyID)
	return s.writeProperties(ctx, docID, props)
}

func (s *Store) DeleteAllProperties(ctx context.Context, docID string) error {
	if _, err := s.GetProperties(ctx, docID); err != nil {
		return err
	}
	return s.writeProperties(ctx, docID, map[string]interface{}{})
}

func (s *Store) writeProperties(ctx context.Context, docID string, props map[string]interface{}) error {
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("duckdbstore: marshal properties: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE documents SET properties = ?, updated_at = ? WHERE id = ?`, string(data), time.Now().UTC(), docID)
	if err != nil {
		return fmt.Errorf("duckdbstore: write properties: %w", err)
	}
	return nil
}

func (s *Store) AppendInteraction(ctx context.Context, in docstore.Interaction) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (user_id, doc_id, sentiment, view_time_ns, ts) VALUES (?, ?, ?, ?, ?)
	`, in.User, in.DocID, string(in.Sentiment), int64(in.ViewTime), in.Timestamp)
	if err != nil {
		return fmt.Errorf("duckdbstore: append interaction: %w", err)
	}
	return nil
}

func (s *Store) LastNInteractions(ctx context.Context, user string, n int) ([]docstore.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id, sentiment, view_time_ns, ts FROM interactions
		WHERE user_id = ? ORDER BY ts DESC LIMIT ?
	`, user, n)
	if err != nil {
		return nil, fmt.Errorf("duckdbstore: last n interactions: %w", err)
	}
	defer rows.Close()

	var out []docstore.Interaction
	for rows.Next() {
		var docID, sentiment string
		var viewTimeNs int64
		var ts time.Time
		if err := rows.Scan(&docID, &sentiment, &viewTimeNs, &ts); err != nil {
			return nil, fmt.Errorf("duckdbstore: scan interaction: %w", err)
		}
		out = append(out, docstore.Interaction{
			User:      user,
			DocID:     docID,
			Sentiment: docstore.Sentiment(sentiment),
			ViewTime:  time.Duration(viewTimeNs),
			Timestamp: ts,
		})
	}
	return out, rows.Err()
}

func mapBreakerErr(err error) error {
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return fmt.Errorf("duckdbstore: %w", err)
	}
	return err
}
