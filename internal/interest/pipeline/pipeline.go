// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package pipeline is the in-process interaction event bus: after
// engine.RecordInteraction has applied the C3 update rule and written
// the result to the CoI store, it publishes an interaction.recorded
// event here, and registered handlers consume it on a background
// goroutine (the engine registers one, which records metrics). It uses
// github.com/ThreeDotsLabs/watermill's GoChannel pubsub in place of the
// teacher's NATS transport (no broker to deploy for a single-tenant
// engine), wrapped in the same Recoverer/Retry middleware stack the
// teacher's internal/eventprocessor/router.go builds around NATS.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// TopicInteractionRecorded is the single topic this bus carries. A
// second topic would only matter with more than one downstream
// consumer; the engine has exactly one (the registry's metrics handler).
const TopicInteractionRecorded = "interaction.recorded"

// Sentiment distinguishes a positive engagement signal (merges into or
// seeds a PositiveCoi) from a negative one (NegativeCoi), per spec §4.3.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
)

// Event is the wire payload of an interaction.recorded message: enough
// to run the C3 update rule against a tenant's user without the
// publisher knowing anything about CoI storage.
type Event struct {
	Tenant    string    `json:"tenant"`
	User      string    `json:"user"`
	Sentiment Sentiment `json:"sentiment"`
	Point     []float32 `json:"point"`
	ViewTime  int64     `json:"view_time_ns"`
	Timestamp time.Time `json:"timestamp"`
}

// Config carries the router's retry/backoff tuning, grounded on the
// teacher's RouterConfig but trimmed to what a single-process,
// single-topic bus needs: no throttle, dedup or poison queue, since
// there is no multi-tenant fan-in here to protect against.
type Config struct {
	CloseTimeout    time.Duration
	RetryMaxRetries int
	RetryInitial    time.Duration
	RetryMax        time.Duration
	RetryMultiplier float64
}

// DefaultConfig mirrors the teacher's DefaultRouterConfig values.
func DefaultConfig() Config {
	return Config{
		CloseTimeout:    10 * time.Second,
		RetryMaxRetries: 3,
		RetryInitial:    100 * time.Millisecond,
		RetryMax:        5 * time.Second,
		RetryMultiplier: 2.0,
	}
}

// HandlerFunc processes one decoded Event. An error triggers the
// Retry middleware; once retries are exhausted the message is nacked
// and dropped, per watermill's default at-least-once semantics.
type HandlerFunc func(ctx context.Context, ev Event) error

// Bus is the interaction-event pipeline: a GoChannel pub/sub pair plus
// a watermill Router pre-configured with panic recovery and retry.
type Bus struct {
	pubsub *gochannel.GoChannel
	router *message.Router
	logger watermill.LoggerAdapter
}

// New builds an idle Bus. Call AddHandler to register a consumer,
// then Run to start consuming.
func New(cfg Config, logger watermill.LoggerAdapter) (*Bus, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer:            256,
		Persistent:                     false,
		BlockPublishUntilSubscriberAck: false,
	}, logger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, logger)
	if err != nil {
		return nil, fmt.Errorf("pipeline: create router: %w", err)
	}

	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitial,
		MaxInterval:     cfg.RetryMax,
		Multiplier:      cfg.RetryMultiplier,
		Logger:          logger,
	}
	router.AddMiddleware(retry.Middleware)

	return &Bus{pubsub: pubsub, router: router, logger: logger}, nil
}

// Publish marshals and publishes ev to TopicInteractionRecorded. It
// returns as soon as the event is handed to the in-memory channel —
// the handlers run on the consumer side, off the caller's request path.
func (b *Bus) Publish(ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("pipeline: marshal event: %w", err)
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	return b.pubsub.Publish(TopicInteractionRecorded, msg)
}

// AddHandler registers fn as the consumer of TopicInteractionRecorded.
// Only one handler is registered in practice (the registry's metrics
// handler), but nothing here prevents registering more under distinct
// names.
func (b *Bus) AddHandler(name string, fn HandlerFunc) {
	b.router.AddNoPublisherHandler(name, TopicInteractionRecorded, b.pubsub, func(msg *message.Message) error {
		var ev Event
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			// A malformed payload can never succeed on retry; ack it away
			// instead of looping the router on a poison message.
			b.logger.Error("pipeline: dropping malformed event", err, nil)
			return nil
		}
		return fn(msg.Context(), ev)
	})
}

// Run blocks until ctx is canceled or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	return b.router.Run(ctx)
}

// Close shuts down the router and the underlying pub/sub.
func (b *Bus) Close() error {
	if err := b.router.Close(); err != nil {
		return err
	}
	return b.pubsub.Close()
}

// Running reports whether the router's Run loop has started accepting
// messages; useful for tests and startup health checks.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}
