// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package memstore is an in-memory docstore.Storage fake, used by unit
// tests for the interest engine's core packages so they don't need a
// live DuckDB handle. It implements the same contract as duckdbstore.
package memstore

import (
	"context"
	"reflect"
	"sort"
	"sync"

	"github.com/tomtom215/interestengine/internal/docstore"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

type docRecord struct {
	doc        docstore.Document
	embedding  embedding.Embedding
	properties map[string]interface{}
}

// Store is a goroutine-safe, in-memory Storage implementation.
type Store struct {
	mu           sync.RWMutex
	docs         map[string]docRecord
	interactions map[string][]docstore.Interaction
}

// New builds an empty Store.
func New() *Store {
	return &Store{
		docs:         make(map[string]docRecord),
		interactions: make(map[string][]docstore.Interaction),
	}
}

var _ docstore.Storage = (*Store)(nil)

func (s *Store) GetEmbedding(_ context.Context, docID string) (embedding.Embedding, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[docID]
	if !ok {
		return embedding.Embedding{}, false, nil
	}
	return rec.embedding, true, nil
}

func (s *Store) GetSnippet(_ context.Context, docID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[docID]
	if !ok {
		return "", false, nil
	}
	return rec.doc.Snippet, true, nil
}

func (s *Store) KNN(_ context.Context, query embedding.Embedding, k int, filter docstore.Filter, excluded []string) ([]docstore.ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excludeSet := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		excludeSet[id] = true
	}

	var scored []docstore.ScoredDocument
	for id, rec := range s.docs {
		if excludeSet[id] {
			continue
		}
		matched, err := docstore.Match(filter, rec.properties)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		sim, err := embedding.Cosine(query, rec.embedding)
		if err != nil {
			return nil, err
		}
		scored = append(scored, docstore.ScoredDocument{ID: id, Score: sim})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if k >= 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Store) LexicalSearch(_ context.Context, query string, k int, filter docstore.Filter, excluded []string) ([]docstore.ScoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	excludeSet := make(map[string]bool, len(excluded))
	for _, id := range excluded {
		excludeSet[id] = true
	}

	corpus := make(map[string]string, len(s.docs))
	for id, rec := range s.docs {
		matched, err := docstore.Match(filter, rec.properties)
		if err != nil {
			return nil, err
		}
		if !matched {
			continue
		}
		corpus[id] = rec.doc.Snippet
	}

	scored := docstore.BM25Rank(corpus, query, excludeSet)
	if k >= 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *Store) InsertDocuments(_ context.Context, docs []docstore.Document, embeddings map[string]embedding.Embedding) ([]docstore.InsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	results := make([]docstore.InsertResult, 0, len(docs))
	for _, d := range docs {
		emb, ok := embeddings[d.ID]
		if !ok {
			results = append(results, docstore.InsertResult{ID: d.ID, Error: embedding.ErrEmptyVector})
			continue
		}
		if existing, ok := s.docs[d.ID]; ok && unchanged(existing.doc, d) {
			results = append(results, docstore.InsertResult{ID: d.ID})
			continue
		}
		props := make(map[string]interface{}, len(d.Properties))
		for k, v := range d.Properties {
			props[k] = v
		}
		s.docs[d.ID] = docRecord{doc: d, embedding: emb, properties: props}
		results = append(results, docstore.InsertResult{ID: d.ID})
	}
	return results, nil
}

func unchanged(existing, incoming docstore.Document) bool {
	if existing.Snippet != incoming.Snippet {
		return false
	}
	if len(existing.Properties) != len(incoming.Properties) {
		return false
	}
	for k, v := range existing.Properties {
		if !reflect.DeepEqual(incoming.Properties[k], v) {
			return false
		}
	}
	return true
}

func (s *Store) DeleteDocuments(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.docs, id)
	}
	return nil
}

func (s *Store) GetProperties(_ context.Context, docID string) (map[string]interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.docs[docID]
	if !ok {
		return nil, docstore.ErrDocumentNotFound
	}
	out := make(map[string]interface{}, len(rec.properties))
	for k, v := range rec.properties {
		out[k] = v
	}
	return out, nil
}

func (s *Store) PutProperties(_ context.Context, docID string, props map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[docID]
	if !ok {
		return docstore.ErrDocumentNotFound
	}
	for k, v := range props {
		rec.properties[k] = v
	}
	s.docs[docID] = rec
	return nil
}

func (s *Store) DeleteProperty(_ context.Context, docID, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[docID]
	if !ok {
		return docstore.ErrDocumentNotFound
	}
	if _, ok := rec.properties[propertyID]; !ok {
		return docstore.ErrPropertyNotFound
	}
	delete(rec.properties, propertyID)
	return nil
}

func (s *Store) DeleteAllProperties(_ context.Context, docID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.docs[docID]
	if !ok {
		return docstore.ErrDocumentNotFound
	}
	rec.properties = make(map[string]interface{})
	s.docs[docID] = rec
	return nil
}

func (s *Store) AppendInteraction(_ context.Context, in docstore.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions[in.User] = append(s.interactions[in.User], in)
	return nil
}

func (s *Store) LastNInteractions(_ context.Context, user string, n int) ([]docstore.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.interactions[user]
	if len(all) <= n {
		out := make([]docstore.Interaction, len(all))
		for i := range all {
			out[i] = all[len(all)-1-i]
		}
		return out, nil
	}
	out := make([]docstore.Interaction, n)
	for i := 0; i < n; i++ {
		out[i] = all[len(all)-1-i]
	}
	return out, nil
}
