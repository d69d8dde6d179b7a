// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package coiupdate implements the Center of Interest update rule (C3):
// an interaction either merges into the nearest existing CoI above a
// similarity threshold, or seeds a new one, per spec §4.3.
package coiupdate

import (
	"time"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// Config holds the named values from spec §6's coi.* namespace.
type Config struct {
	// Threshold is theta: the minimum cosine similarity for an interaction
	// to merge into an existing CoI rather than spawn a new one.
	Threshold float32
	// ShiftFactor is s: how far the CoI centroid moves toward the
	// interaction on a merge, in [0, 1].
	ShiftFactor float32
	// Horizon bounds the time-decay window used by the relevance scorer
	// (C4); carried here because Stats bookkeeping and relevance share it.
	Horizon time.Duration
	// MaxViewTimePerInteraction clamps a single interaction's contribution
	// to accumulated view time, preventing one outlier session from
	// dominating a CoI's intensity.
	MaxViewTimePerInteraction time.Duration
}

// DefaultConfig returns spec §6's named defaults for the coi.* namespace.
func DefaultConfig() Config {
	return Config{
		Threshold:                 0.67,
		ShiftFactor:               0.1,
		Horizon:                   30 * 24 * time.Hour,
		MaxViewTimePerInteraction: 10 * time.Minute,
	}
}

// Interaction is the input to a single CoI update: a document embedding
// plus the engagement signal observed for it.
type Interaction struct {
	Point     embedding.Embedding
	ViewTime  time.Duration
	Timestamp time.Time
}

// clampViewTime bounds a single interaction's view time contribution.
func (c Config) clampViewTime(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if d > c.MaxViewTimePerInteraction {
		return c.MaxViewTimePerInteraction
	}
	return d
}

// UpdatePositive applies an interaction to a user's positive CoI set,
// returning the updated (or newly created) set. cois is never mutated in
// place; the caller owns persisting the result (coistore.UpsertPositive).
//
// The nearest CoI above Threshold is chosen; ties (exactly equal
// similarity) are broken by the lowest CoI id, matching
// spec §4.3's determinism requirement. If no CoI qualifies, a new one is
// created at the interaction's point with ViewCount 1.
func UpdatePositive(cfg Config, cois []interest.PositiveCoi, in Interaction) ([]interest.PositiveCoi, interest.CoiID, error) {
	idx, sim, err := closest(cois, in.Point)
	if err != nil {
		return nil, "", err
	}

	if idx < 0 || sim < cfg.Threshold {
		created := interest.PositiveCoi{
			ID:    interest.NewCoiID(),
			Point: in.Point,
			Stats: interest.Stats{
				ViewCount: 1,
				ViewTime:  cfg.clampViewTime(in.ViewTime),
				LastView:  in.Timestamp,
			},
		}
		out := append(append([]interest.PositiveCoi(nil), cois...), created)
		return out, created.ID, nil
	}

	out := append([]interest.PositiveCoi(nil), cois...)
	existing := out[idx]
	merged, err := embedding.WeightedSum(existing.Point, in.Point, cfg.ShiftFactor)
	if err != nil {
		return nil, "", err
	}
	out[idx] = interest.PositiveCoi{
		ID:    existing.ID,
		Point: merged,
		Stats: interest.Stats{
			ViewCount: existing.Stats.ViewCount + 1,
			ViewTime:  existing.Stats.ViewTime + cfg.clampViewTime(in.ViewTime),
			LastView:  in.Timestamp,
		},
	}
	return out, existing.ID, nil
}

// UpdateNegative is UpdatePositive's analogue for the negative CoI set.
// Negative CoIs have no view-time/count bookkeeping (spec §3): a merge
// only shifts the centroid and bumps LastView.
func UpdateNegative(cfg Config, cois []interest.NegativeCoi, point embedding.Embedding, timestamp time.Time) ([]interest.NegativeCoi, interest.CoiID, error) {
	idx, sim, err := closestNegative(cois, point)
	if err != nil {
		return nil, "", err
	}

	if idx < 0 || sim < cfg.Threshold {
		created := interest.NegativeCoi{ID: interest.NewCoiID(), Point: point, LastView: timestamp}
		out := append(append([]interest.NegativeCoi(nil), cois...), created)
		return out, created.ID, nil
	}

	out := append([]interest.NegativeCoi(nil), cois...)
	existing := out[idx]
	merged, err := embedding.WeightedSum(existing.Point, point, cfg.ShiftFactor)
	if err != nil {
		return nil, "", err
	}
	out[idx] = interest.NegativeCoi{ID: existing.ID, Point: merged, LastView: timestamp}
	return out, existing.ID, nil
}

// closest returns the index of the CoI with the highest similarity to
// point, breaking ties by the lowest CoiID. Returns idx=-1 if cois is empty.
func closest(cois []interest.PositiveCoi, point embedding.Embedding) (idx int, sim float32, err error) {
	idx = -1
	sim = -2
	for i, c := range cois {
		s, cerr := embedding.Cosine(c.Point, point)
		if cerr != nil {
			return -1, 0, cerr
		}
		if s > sim || (s == sim && idx >= 0 && c.ID < cois[idx].ID) {
			sim = s
			idx = i
		}
	}
	return idx, sim, nil
}

func closestNegative(cois []interest.NegativeCoi, point embedding.Embedding) (idx int, sim float32, err error) {
	idx = -1
	sim = -2
	for i, c := range cois {
		s, cerr := embedding.Cosine(c.Point, point)
		if cerr != nil {
			return -1, 0, cerr
		}
		if s > sim || (s == sim && idx >= 0 && c.ID < cois[idx].ID) {
			sim = s
			idx = i
		}
	}
	return idx, sim, nil
}
