// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package relevance implements the time-decayed CoI relevance scorer
// (C4): relevance = decay(age, horizon) * intensity(view_count, view_time),
// per spec §4.4.
package relevance

import (
	"math"
	"time"

	"github.com/tomtom215/interestengine/internal/interest"
)

// Config carries the coi.horizon named value from spec §6.
type Config struct {
	Horizon time.Duration
}

// DefaultConfig returns the spec §6 default horizon of 30 days.
func DefaultConfig() Config {
	return Config{Horizon: 30 * 24 * time.Hour}
}

// Score computes a single CoI's relevance at the instant now.
//
// decay = exp(-age / horizon), where age = now - coi.Stats.LastView,
// clamped to 0 for a future LastView (clock skew).
// intensity = view_count * log(1 + view_time_seconds).
// relevance = decay * intensity.
//
// A CoI that was never viewed (ViewCount 0) scores 0, since it cannot
// have been the subject of any interaction under spec §4.3/§3.
func Score(cfg Config, coi interest.PositiveCoi, now time.Time) float64 {
	if coi.Stats.ViewCount == 0 {
		return 0
	}

	age := now.Sub(coi.Stats.LastView)
	if age < 0 {
		age = 0
	}

	horizon := cfg.Horizon
	if horizon <= 0 {
		horizon = time.Nanosecond
	}
	decay := math.Exp(-float64(age) / float64(horizon))

	viewTimeSeconds := coi.Stats.ViewTime.Seconds()
	if viewTimeSeconds < 0 {
		viewTimeSeconds = 0
	}
	intensity := float64(coi.Stats.ViewCount) * math.Log1p(viewTimeSeconds)

	return decay * intensity
}

// ScoreAll computes relevance for a batch of CoIs, preserving input order.
// This is the form used by the key-phrase taker (C6), which needs every
// CoI's relevance simultaneously to build its penalty-ordered queue.
func ScoreAll(cfg Config, cois []interest.PositiveCoi, now time.Time) []float64 {
	out := make([]float64, len(cois))
	for i, c := range cois {
		out[i] = Score(cfg, c, now)
	}
	return out
}

// Rank returns the indices of cois sorted by descending relevance, ties
// keeping their input order.
func Rank(cfg Config, cois []interest.PositiveCoi, now time.Time) []int {
	scores := ScoreAll(cfg, cois, now)
	idx := make([]int, len(cois))
	for i := range idx {
		idx[i] = i
	}
	// Simple insertion sort: CoI counts per user are small (tens, not
	// thousands), so O(n^2) is not a concern and keeps the tie-break
	// (stable, preserving input order) obvious without importing sort
	// comparator boilerplate.
	for i := 1; i < len(idx); i++ {
		j := i
		for j > 0 && scores[idx[j]] > scores[idx[j-1]] {
			idx[j], idx[j-1] = idx[j-1], idx[j]
			j--
		}
	}
	return idx
}
