// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package retry implements spec §7's bounded retry schedule for
// storage-transient failures: jittered exponential backoff between
// attempts, plus a golang.org/x/time/rate limiter (grounded on the
// teacher's internal/auth.RateLimiter) capping how often this process
// as a whole retries against a struggling backend, so a burst of
// concurrent requests hitting the same outage doesn't turn into a
// retry storm.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"golang.org/x/time/rate"
)

// Config bounds the retry schedule.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	// JitterFraction randomizes each delay by +/- this fraction, so
	// concurrent callers backing off from the same failure don't retry
	// in lockstep.
	JitterFraction float64
	// RatePerSecond and Burst bound the total retry rate across every
	// caller sharing this Retrier, independent of each call's own
	// backoff schedule.
	RatePerSecond float64
	Burst         int
}

// DefaultConfig mirrors the teacher's backoff tuning: 3 attempts,
// 100ms base delay doubling up to 2s, 20% jitter, capped at 10
// retries/second process-wide.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      100 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2,
		RatePerSecond:  10,
		Burst:          10,
	}
}

// Transient, when wrapped around an error with fmt.Errorf("%w", ...),
// marks it as retryable. Non-transient errors abort immediately, per
// §7's "recoverable errors are retried in-band; non-recoverable
// errors abort the request" policy.
var Transient = errors.New("retry: transient failure")

// Retrier runs a bounded, jittered, rate-limited retry schedule.
type Retrier struct {
	cfg     Config
	limiter *rate.Limiter
	rng     *rand.Rand
}

// New builds a Retrier from cfg.
func New(cfg Config) *Retrier {
	return &Retrier{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		rng:     rand.New(rand.NewSource(1)),
	}
}

// Do runs fn, retrying while it returns an error wrapping Transient,
// up to Config.MaxAttempts, backing off between attempts and honoring
// the process-wide rate limiter. It returns the last error seen (or
// ctx.Err() if ctx is canceled while waiting) once attempts are
// exhausted or fn returns a non-transient error.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	delay := r.cfg.BaseDelay

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := r.limiter.Wait(ctx); err != nil {
				return err
			}
			if err := r.sleep(ctx, r.jitter(delay)); err != nil {
				return err
			}
			delay = nextDelay(delay, r.cfg.Multiplier, r.cfg.MaxDelay)
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, Transient) {
			return lastErr
		}
	}
	return lastErr
}

func (r *Retrier) jitter(d time.Duration) time.Duration {
	if r.cfg.JitterFraction <= 0 {
		return d
	}
	delta := float64(d) * r.cfg.JitterFraction * (2*r.rng.Float64() - 1)
	return time.Duration(float64(d) + delta)
}

func (r *Retrier) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func nextDelay(d time.Duration, multiplier float64, max time.Duration) time.Duration {
	next := time.Duration(float64(d) * multiplier)
	if next > max {
		return max
	}
	return next
}
