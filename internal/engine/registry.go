// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/interestengine/internal/docstore/duckdbstore"
	"github.com/tomtom215/interestengine/internal/interest/coistore"
	"github.com/tomtom215/interestengine/internal/interest/embedclient"
	"github.com/tomtom215/interestengine/internal/interest/pipeline"
	"github.com/tomtom215/interestengine/internal/obsmetrics"
)

// tenantState is everything the Registry owns on behalf of one tenant:
// the Engine plus the durable handles backing it, so teardown can close
// them cleanly instead of leaking file descriptors.
type tenantState struct {
	engine *Engine
	badger *badger.DB
	duck   *duckdbstore.Store
	bus    *pipeline.Bus
	cancel context.CancelFunc
}

// Registry lazily constructs and tears down per-tenant Engine instances,
// per spec §9's "global mutable state" design note: the engine holds
// per-tenant process state with lifecycle "init at first request for
// tenant / teardown on tenant deletion" rather than a process-wide
// singleton. Grounded on coistore.Store's per-user lockFor pattern,
// widened here to per-tenant granularity.
type Registry struct {
	cfg      Config
	dataDir  string
	embedder *embedclient.Client
	busCfg   pipeline.Config
	logger   watermill.LoggerAdapter

	mu      sync.Mutex
	tenants map[string]*tenantState
}

// NewRegistry builds an empty Registry. dataDir is the root directory
// under which each tenant gets its own Badger and DuckDB subdirectory.
func NewRegistry(cfg Config, dataDir string, embedder *embedclient.Client) *Registry {
	return &Registry{
		cfg:      cfg,
		dataDir:  dataDir,
		embedder: embedder,
		busCfg:   pipeline.DefaultConfig(),
		logger:   watermill.NopLogger{},
		tenants:  make(map[string]*tenantState),
	}
}

// ForTenant returns tenant's Engine, constructing its backing stores on
// first use.
func (r *Registry) ForTenant(ctx context.Context, tenant string) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st, ok := r.tenants[tenant]; ok {
		return st.engine, nil
	}

	st, err := r.openTenant(ctx, tenant)
	if err != nil {
		return nil, err
	}
	r.tenants[tenant] = st
	return st.engine, nil
}

func (r *Registry) openTenant(ctx context.Context, tenant string) (*tenantState, error) {
	badgerPath := filepath.Join(r.dataDir, "badger", tenant)
	duckPath := filepath.Join(r.dataDir, "duckdb", tenant)
	if err := os.MkdirAll(duckPath, 0o755); err != nil {
		return nil, fmt.Errorf("engine: create duckdb dir for tenant %s: %w", tenant, err)
	}

	bdb, err := badger.Open(badger.DefaultOptions(badgerPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("engine: open badger for tenant %s: %w", tenant, err)
	}

	ddb, err := duckdbstore.Open(ctx, filepath.Join(duckPath, "documents.duckdb"), duckdbstore.DefaultConfig())
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("engine: open duckdb for tenant %s: %w", tenant, err)
	}

	bus, err := pipeline.New(r.busCfg, r.logger)
	if err != nil {
		ddb.Close()
		bdb.Close()
		return nil, fmt.Errorf("engine: build event bus for tenant %s: %w", tenant, err)
	}
	bus.AddHandler("coi-metrics-worker", metricsHandler(tenant))

	runCtx, cancel := context.WithCancel(context.Background())
	go func() {
		_ = bus.Run(runCtx)
	}()

	cois := coistore.New(bdb)
	eng := New(r.cfg, ddb, cois, r.embedder, bus)

	return &tenantState{engine: eng, badger: bdb, duck: ddb, bus: bus, cancel: cancel}, nil
}

// RemoveTenant tears down and deletes tenant's state entirely,
// matching spec §9's lifecycle. A tenant with no open state is a no-op.
func (r *Registry) RemoveTenant(tenant string) error {
	r.mu.Lock()
	st, ok := r.tenants[tenant]
	if ok {
		delete(r.tenants, tenant)
	}
	r.mu.Unlock()
	if !ok {
		return nil
	}

	st.cancel()
	if err := st.bus.Close(); err != nil {
		return fmt.Errorf("engine: close event bus for tenant %s: %w", tenant, err)
	}
	if err := st.duck.Close(); err != nil {
		return fmt.Errorf("engine: close duckdb for tenant %s: %w", tenant, err)
	}
	if err := st.badger.Close(); err != nil {
		return fmt.Errorf("engine: close badger for tenant %s: %w", tenant, err)
	}

	if err := os.RemoveAll(filepath.Join(r.dataDir, "badger", tenant)); err != nil {
		return err
	}
	return os.RemoveAll(filepath.Join(r.dataDir, "duckdb", tenant))
}

// Close tears down every open tenant, for process shutdown.
func (r *Registry) Close() error {
	r.mu.Lock()
	tenants := make([]string, 0, len(r.tenants))
	for t := range r.tenants {
		tenants = append(tenants, t)
	}
	r.mu.Unlock()

	var firstErr error
	for _, t := range tenants {
		r.mu.Lock()
		st, ok := r.tenants[t]
		if ok {
			delete(r.tenants, t)
		}
		r.mu.Unlock()
		if !ok {
			continue
		}
		st.cancel()
		if err := st.bus.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := st.duck.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		if err := st.badger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// metricsHandler builds the asynchronous consumer spec §2 describes as
// "C4's statistics tick": it does not redo the C3 update (RecordInteraction
// already committed it synchronously under the user lock), it only
// records the observability side effect of that commit.
func metricsHandler(tenant string) pipeline.HandlerFunc {
	return func(_ context.Context, ev pipeline.Event) error {
		kind := "positive"
		if ev.Sentiment == pipeline.SentimentNegative {
			kind = "negative"
		}
		obsmetrics.ObserveCoiUpdate(kind, "recorded")
		_ = tenant
		return nil
	}
}
