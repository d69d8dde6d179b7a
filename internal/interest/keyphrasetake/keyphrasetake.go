// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package keyphrasetake implements the penalty-scheduled key-phrase taker
// (C6): the top key phrases across all of a user's CoIs are surfaced in
// relevance order, with each successive take from the same CoI penalized
// so phrase diversity spreads across CoIs, per spec §4.6. When every
// selected key phrase has been taken, the removed set is swapped back in
// and refreshed before the next take proceeds.
package keyphrasetake

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
	"github.com/tomtom215/interestengine/internal/interest/keyphrase"
	"github.com/tomtom215/interestengine/internal/interest/relevance"
)

// Taker wraps a keyphrase.Table with the "removed" side of the
// selected/removed swap that the take operation needs, partitioned by
// (CoI id, Market) exactly as the table itself is.
type Taker struct {
	table   *keyphrase.Table
	removed map[keyphrase.Key][]interest.KeyPhrase
}

// NewTaker wraps table, which the caller continues to use for Update calls.
func NewTaker(table *keyphrase.Table) *Taker {
	return &Taker{table: table, removed: make(map[keyphrase.Key][]interest.KeyPhrase)}
}

// Take returns the top `top` key phrases across cois within market,
// sorted by descending penalized relevance. Each CoI's selected key
// phrases are scored in their existing (already relevance-sorted) order
// against penalty[i] for the i-th phrase taken from that CoI; per spec
// §4.6 step 3, at most len(penalty) phrases are scored per CoI — ranks
// beyond that are not emitted from this round, mirroring how the
// original zips penalty against a CoI's selected phrases and stops at
// the shorter sequence.
//
// If the table's selection is empty for market when Take is called,
// selected and removed are swapped for that market and every CoI's
// selection is recomputed from its (now-restored) phrases before
// scoring, so previously taken phrases become eligible again exactly
// once per full cycle.
func (t *Taker) Take(cois []interest.PositiveCoi, market interest.Market, top int, horizonCfg relevance.Config, penalty []float64, gamma float32, now time.Time) []interest.KeyPhrase {
	if t.table.IsEmptyForMarket(market) {
		t.swapAndRefresh(cois, market, len(penalty), gamma)
	}

	type candidate struct {
		penalizedRelevance float64
		coiID              interest.CoiID
		keyPhrase          interest.KeyPhrase
	}

	relevances := relevance.ScoreAll(horizonCfg, cois, now)
	var candidates []candidate
	for i, coi := range cois {
		kps := t.table.Selected(coi.ID, market)
		if len(kps) == 0 {
			continue
		}
		limit := len(kps)
		if len(penalty) < limit {
			limit = len(penalty)
		}
		for rank := 0; rank < limit; rank++ {
			pr := relevances[i] * penalty[rank]
			pr = clamp(pr, -math.MaxFloat64, math.MaxFloat64)
			candidates = append(candidates, candidate{penalizedRelevance: pr, coiID: coi.ID, keyPhrase: kps[rank]})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].penalizedRelevance > candidates[j].penalizedRelevance
	})

	if top > len(candidates) {
		top = len(candidates)
	}

	taken := make([]interest.KeyPhrase, 0, top)
	for _, c := range candidates[:top] {
		taken = append(taken, c.keyPhrase)
		t.moveToRemoved(c.coiID, market, c.keyPhrase)
	}
	return taken
}

func (t *Taker) moveToRemoved(coiID interest.CoiID, market interest.Market, kp interest.KeyPhrase) {
	remaining := t.table.Selected(coiID, market)
	key := keyphrase.Key{CoiID: coiID, Market: market}
	for i, candidate := range remaining {
		if candidate.Equal(kp) {
			remaining = append(remaining[:i], remaining[i+1:]...)
			t.removed[key] = append(t.removed[key], kp)
			break
		}
	}
	t.table.SetSelected(coiID, market, remaining)
}

// swapAndRefresh exchanges selected and removed for market, then
// recomputes each CoI's selection from the (now current) phrase set
// with no new candidates, restoring the table's sort-by-relevance
// invariant that `removed` does not maintain.
func (t *Taker) swapAndRefresh(cois []interest.PositiveCoi, market interest.Market, maxKeyPhrases int, gamma float32) {
	for _, coi := range cois {
		key := keyphrase.Key{CoiID: coi.ID, Market: market}
		kps := t.removed[key]
		if len(kps) == 0 {
			continue
		}
		delete(t.removed, key)
		// SetSelected first so Update treats kps as the existing set.
		t.table.SetSelected(coi.ID, market, kps)
		noCandidates := func(string) (embedding.Embedding, error) { return embedding.Embedding{}, nil }
		_ = t.table.Update(coi.ID, market, coi.Point, nil, noCandidates, maxKeyPhrases, gamma)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

