// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package main is the entry point for interestd, the interest-and-
// key-phrase recommendation engine's HTTP process.
//
// # Application Architecture
//
// The process initializes components in the following order:
//
//  1. Configuration: layered koanf load (engineconfig.Load)
//  2. Logging: zerolog, JSON by default (obslog.Init)
//  3. Tenant auth: JWT issuance/verification (tenantauth.NewManager)
//  4. Embedding model: HTTP client behind a circuit breaker (embedclient)
//  5. Engine registry: lazy per-tenant Engine construction (engine.Registry)
//  6. HTTP server: Chi router exposing spec's §6 surface (internal/api)
//
// # Signal Handling
//
// interestd handles graceful shutdown on SIGINT and SIGTERM: the HTTP
// server stops accepting connections, in-flight requests get a bounded
// window to finish, then every open tenant's Badger and DuckDB handles
// are closed via Registry.Close.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/interestengine/internal/api"
	"github.com/tomtom215/interestengine/internal/engine"
	"github.com/tomtom215/interestengine/internal/engineconfig"
	"github.com/tomtom215/interestengine/internal/interest/embedclient"
	"github.com/tomtom215/interestengine/internal/obslog"
	"github.com/tomtom215/interestengine/internal/obsmetrics"
	"github.com/tomtom215/interestengine/internal/tenantauth"
)

func main() {
	cfg, err := engineconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "interestd: load configuration: %v\n", err)
		os.Exit(1)
	}

	obslog.Init(obslog.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})
	log := obslog.WithComponent("interestd")
	log.Info().Msg("starting interestd")

	auth, err := tenantauth.NewManager(cfg.Security.JWTSecret, time.Duration(cfg.Security.TokenTimeoutHours)*time.Hour)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build tenant auth manager")
	}

	httpModel := embedclient.NewHTTPModel(embedclient.HTTPModelConfig{
		BaseURL: cfg.Embedding.BaseURL,
		Model:   cfg.Embedding.Model,
		Timeout: time.Duration(cfg.Embedding.TimeoutSec) * time.Second,
	})
	embedder := embedclient.New(httpModel, embedclient.DefaultConfig(), func(name string, from, to gobreaker.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("embedding model breaker transition")
		obsmetrics.ObserveCircuitBreakerTransition(name, int(from), int(to))
	})

	registry := engine.NewRegistry(engine.FromEngineConfig(cfg), cfg.Storage.DataDir, embedder)

	router := api.NewRouter(registry, auth, cfg.Security.CORSOrigins, cfg.Security.RateLimitPerSecond)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := &sutureslog.Handler{Logger: obslog.NewSlogLogger()}
	tree := suture.New("interestd", suture.Spec{
		EventHook:      handler.MustHook(),
		FailureBackoff: 15 * time.Second,
		Timeout:        10 * time.Second,
	})
	tree.Add(newHTTPServerService(server, 10*time.Second))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	log.Info().Str("addr", server.Addr).Msg("serving")
	errCh := tree.ServeBackground(ctx)

	<-ctx.Done()
	if err := <-errCh; err != nil {
		log.Error().Err(err).Msg("supervisor shutdown error")
	}

	if err := registry.Close(); err != nil {
		log.Error().Err(err).Msg("error closing tenant registry")
	}
	log.Info().Msg("interestd stopped")
}
