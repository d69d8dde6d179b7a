// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package embedclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
)

func TestHTTPModelEmbedParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" || req.Input != "hello" {
			t.Fatalf("unexpected request: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float32{0.6, 0.8, 0}})
	}))
	defer srv.Close()

	m := NewHTTPModel(HTTPModelConfig{BaseURL: srv.URL, Model: "test-model"})
	emb, err := m.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if emb.Dim() != 3 {
		t.Fatalf("expected dim 3, got %d", emb.Dim())
	}
}

func TestHTTPModelEmbedRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m := NewHTTPModel(HTTPModelConfig{BaseURL: srv.URL, Model: "test-model"})
	if _, err := m.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestHTTPModelEmbedRejectsEmptyVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(embedResponse{})
	}))
	defer srv.Close()

	m := NewHTTPModel(HTTPModelConfig{BaseURL: srv.URL, Model: "test-model"})
	if _, err := m.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected an error for an empty embedding vector")
	}
}
