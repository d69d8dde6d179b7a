// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

//go:build integration

package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/interestengine/internal/docstore"
	"github.com/tomtom215/interestengine/internal/interest/embedclient"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

type stubRegistryModel struct{}

func (stubRegistryModel) Embed(_ context.Context, _ string) (embedding.Embedding, error) {
	return embedding.MustNew([]float32{1, 0, 0}), nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	embedder := embedclient.New(stubRegistryModel{}, embedclient.DefaultConfig(), nil)
	return NewRegistry(Config{}, t.TempDir(), embedder)
}

func TestForTenantIsLazyAndMemoized(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Close()

	e1, err := r.ForTenant(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ForTenant: %v", err)
	}
	e2, err := r.ForTenant(context.Background(), "acme")
	if err != nil {
		t.Fatalf("ForTenant (second call): %v", err)
	}
	if e1 != e2 {
		t.Fatal("expected the same Engine instance on repeated ForTenant calls")
	}
}

func TestForTenantIsolatesTenantDirectories(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Close()

	if _, err := r.ForTenant(context.Background(), "acme"); err != nil {
		t.Fatalf("ForTenant: %v", err)
	}
	if _, err := r.ForTenant(context.Background(), "globex"); err != nil {
		t.Fatalf("ForTenant: %v", err)
	}

	for _, tenant := range []string{"acme", "globex"} {
		if _, err := os.Stat(filepath.Join(r.dataDir, "badger", tenant)); err != nil {
			t.Fatalf("expected badger dir for %s: %v", tenant, err)
		}
		if _, err := os.Stat(filepath.Join(r.dataDir, "duckdb", tenant)); err != nil {
			t.Fatalf("expected duckdb dir for %s: %v", tenant, err)
		}
	}
}

func TestRemoveTenantClosesAndDeletesState(t *testing.T) {
	ctx := context.Background()
	r := newTestRegistry(t)
	defer r.Close()

	eng, err := r.ForTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("ForTenant: %v", err)
	}
	doc := docstore.Document{ID: "d1", Snippet: "hello"}
	emb := embedding.MustNew([]float32{1, 0, 0})
	if _, err := eng.Storage().InsertDocuments(ctx, []docstore.Document{doc}, map[string]embedding.Embedding{"d1": emb}); err != nil {
		t.Fatalf("InsertDocuments: %v", err)
	}

	if err := r.RemoveTenant("acme"); err != nil {
		t.Fatalf("RemoveTenant: %v", err)
	}
	if _, err := os.Stat(filepath.Join(r.dataDir, "badger", "acme")); !os.IsNotExist(err) {
		t.Fatalf("expected badger dir to be removed, stat err=%v", err)
	}

	eng2, err := r.ForTenant(ctx, "acme")
	if err != nil {
		t.Fatalf("ForTenant after removal: %v", err)
	}
	if _, ok, err := eng2.Storage().GetEmbedding(ctx, "d1"); err != nil || ok {
		t.Fatalf("expected a fresh store after RemoveTenant, ok=%v err=%v", ok, err)
	}
}

func TestRemoveTenantOnUnknownTenantIsNoop(t *testing.T) {
	r := newTestRegistry(t)
	defer r.Close()
	if err := r.RemoveTenant("never-opened"); err != nil {
		t.Fatalf("RemoveTenant: %v", err)
	}
}
