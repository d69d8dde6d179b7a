// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package embedclient wraps a text-embedding model behind a circuit
// breaker, grounded on the teacher's internal/sync.CircuitBreakerClient
// (github.com/sony/gobreaker/v2). The engine calls out to an embedding
// model at several boundaries (document ingestion, key-phrase
// candidate embedding, semantic search queries); this package is the
// one seam all of them share, so a failing model backend degrades
// predictably instead of each caller hammering it under its own retry
// loop, per spec §7's storage/backend failure policy.
package embedclient

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// Model is the minimal contract an embedding backend must satisfy.
// Production wiring points this at whatever model server spec §1 treats
// as an external collaborator; tests supply a stub.
type Model interface {
	Embed(ctx context.Context, text string) (embedding.Embedding, error)
}

// ErrCircuitOpen is returned in place of gobreaker's own sentinels so
// callers outside this package never need to import gobreaker directly.
var ErrCircuitOpen = errors.New("embedclient: circuit open, embedding model unavailable")

// Config mirrors the teacher's circuit breaker tuning.
type Config struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// MinRequests is the sample size ReadyToTrip requires before it will
	// consider tripping the circuit, avoiding a trip on a cold start's
	// first few failures.
	MinRequests uint32
	// FailureRatio is the fraction of failures within the measurement
	// window that trips the circuit open.
	FailureRatio float64
}

// DefaultConfig mirrors the teacher's Tautulli breaker tuning, scaled
// down for a lower-latency embedding call: 5 concurrent half-open
// probes, a 30s closed-state window, 30s open-state timeout, tripping
// at a 50% failure rate once at least 5 requests have been observed.
func DefaultConfig() Config {
	return Config{
		Name:         "embedding-model",
		MaxRequests:  5,
		Interval:     30 * time.Second,
		Timeout:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 0.5,
	}
}

// StateChangeFunc is notified whenever the breaker transitions state;
// obslog/obsmetrics wiring hangs off this the way the teacher's
// OnStateChange hangs off logging and metrics.
type StateChangeFunc func(name string, from, to gobreaker.State)

// Client is a Model wrapped in a circuit breaker.
type Client struct {
	model Model
	cb    *gobreaker.CircuitBreaker[embedding.Embedding]
}

// New builds a Client. onStateChange may be nil.
func New(model Model, cfg Config, onStateChange StateChangeFunc) *Client {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
	}
	if onStateChange != nil {
		settings.OnStateChange = func(name string, from, to gobreaker.State) {
			onStateChange(name, from, to)
		}
	}

	return &Client{
		model: model,
		cb:    gobreaker.NewCircuitBreaker[embedding.Embedding](settings),
	}
}

// Embed runs the embedding call through the circuit breaker. When the
// breaker is open or the half-open probe budget is exhausted, it
// returns ErrCircuitOpen instead of gobreaker's own sentinel so callers
// have one error to check regardless of which breaker library backs
// this package.
func (c *Client) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	out, err := c.cb.Execute(func() (embedding.Embedding, error) {
		return c.model.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return embedding.Embedding{}, ErrCircuitOpen
		}
		return embedding.Embedding{}, err
	}
	return out, nil
}

// State reports the breaker's current state, for health checks.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}
