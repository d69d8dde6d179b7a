// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package obslog provides the engine's structured logging, a
// zerolog wrapper matching the teacher's internal/logging package:
// package-level Init/Logger/Ctx, JSON output by default, console
// output in development, and correlation-id propagation via
// context.Context. Request-boundary events log at Info (the API
// middleware) and invariant violations reaching the HTTP boundary at
// Error with the correlation id (apperr); the core packages under
// internal/interest do not log.
package obslog

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	Level string
	// Format is the output format: json or console.
	Format string
	Caller bool
	Output io.Writer
}

// DefaultConfig returns the engine's default logging configuration.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Caller: false, Output: os.Stderr}
}

var (
	log zerolog.Logger
	mu  sync.RWMutex
)

func init() {
	initLogger(DefaultConfig())
}

// Init (re)configures the global logger. Safe to call more than once;
// typically called once from cmd/interestd/main.go at startup.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	initLogger(cfg)
}

func initLogger(cfg Config) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))
	zerolog.TimeFieldFormat = time.RFC3339

	output := cfg.Output
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: "15:04:05"}
	}

	builder := zerolog.New(output).With().Timestamp()
	if cfg.Caller {
		builder = builder.Caller()
	}
	log = builder.Logger()
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the global logger instance.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return log
}

// correlationIDKey carries a request-scoped correlation id through
// context.Context, the way the teacher propagates it across handler
// and pipeline boundaries.
type correlationIDKey struct{}

// ContextWithCorrelationID attaches id to ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// ContextWithNewCorrelationID attaches a freshly generated correlation id.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, uuid.NewString())
}

// CorrelationIDFromContext returns the correlation id stored in ctx, or
// "" if none was attached.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// Ctx returns a logger annotated with ctx's correlation id, the
// recommended way to log from request handlers and pipeline workers.
func Ctx(ctx context.Context) *zerolog.Logger {
	logger := Logger()
	if id := CorrelationIDFromContext(ctx); id != "" {
		logger = logger.With().Str("correlation_id", id).Logger()
	}
	return &logger
}

// WithComponent returns a child logger tagged with a component field,
// for package-scoped loggers (e.g. obslog.WithComponent("coiupdate")).
func WithComponent(component string) zerolog.Logger {
	return Logger().With().Str("component", component).Logger()
}
