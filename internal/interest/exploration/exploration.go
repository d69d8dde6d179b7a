// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package exploration implements the exploration stack's document
// selector (C9): a randomized, two-phase subset pick that favors
// documents far from every CoI, so the user keeps seeing material
// outside their established interests, per spec §4.9.
package exploration

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

// Config carries the named values from spec §6's exploration.* namespace.
type Config struct {
	NumberOfCandidates int
	MaxSelectedDocs    int
	MaxSimilarity      float32
}

// DefaultConfig returns spec §6's defaults: number_of_candidates=40,
// max_selected_docs=20, max_similarity=0.7.
func DefaultConfig() Config {
	return Config{NumberOfCandidates: 40, MaxSelectedDocs: 20, MaxSimilarity: 0.7}
}

// ErrNotEnoughCois is returned when the user has no CoIs at all
// (positive or negative), since there is then nothing to explore away from.
var ErrNotEnoughCois = errors.New("exploration: user has no cois")

// Select runs the exploration pick over docs, given all of the user's
// CoI points (positive and negative combined — both pull a document
// toward "already known", per the original algorithm). rng drives both
// randomized phases and should be seeded per-request for reproducible
// testing, per-process otherwise.
func Select(cfg Config, docs []embedding.Embedding, cois []embedding.Embedding, rng *rand.Rand) ([]int, error) {
	if len(cois) == 0 {
		return nil, ErrNotEnoughCois
	}
	if len(docs) == 0 {
		return nil, nil
	}

	nearestCoiSim := maxCosineSimilarityPerDoc(docs, cois)
	docSimilarities, err := embedding.PairwiseSimilarity(docs)
	if err != nil {
		return nil, err
	}

	return selectByRandomizationWithThreshold(docSimilarities, nearestCoiSim, cfg.NumberOfCandidates, cfg.MaxSelectedDocs, rng), nil
}

// maxCosineSimilarityPerDoc returns, for every doc, its maximum cosine
// similarity to any point in cois.
func maxCosineSimilarityPerDoc(docs, cois []embedding.Embedding) []float32 {
	out := make([]float32, len(docs))
	for i, d := range docs {
		best, _, _ := embedding.MaxCosine(d, cois)
		out[i] = best
	}
	return out
}

// selectInitialCandidates sorts doc indices ascending by nearestCoiSim
// (farthest from any CoI first) and takes the first numberOfCandidates of
// them. The similarity value at the boundary of that window becomes the
// removal threshold for phase two: any doc at least that similar to a
// chosen pick is considered redundant with it and dropped from
// contention.
func selectInitialCandidates(nearestCoiSim []float32, numberOfCandidates int) (threshold float32, candidates map[int]bool) {
	n := len(nearestCoiSim)
	if numberOfCandidates > n {
		numberOfCandidates = n
	}
	if numberOfCandidates == 0 {
		return 0, map[int]bool{}
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return nearestCoiSim[order[i]] < nearestCoiSim[order[j]] })

	candidates = make(map[int]bool, numberOfCandidates)
	for i := 0; i < numberOfCandidates; i++ {
		candidates[order[i]] = true
	}
	threshold = nearestCoiSim[order[numberOfCandidates-1]]
	return threshold, candidates
}

// selectByRandomizationWithThreshold repeatedly picks a uniformly random
// surviving candidate, keeps it, then drops every remaining candidate
// whose document-to-document similarity with the pick is at or above
// threshold (so near-duplicates of an already-picked document are never
// picked again), until maxSelectedDocs is reached or candidates run out.
func selectByRandomizationWithThreshold(docSimilarities [][]float32, nearestCoiSim []float32, numberOfCandidates, maxSelectedDocs int, rng *rand.Rand) []int {
	threshold, candidates := selectInitialCandidates(nearestCoiSim, numberOfCandidates)

	selected := make([]int, 0, maxSelectedDocs)
	for len(candidates) > 0 && len(selected) < maxSelectedDocs {
		chosen := pickRandom(candidates, rng)
		selected = append(selected, chosen)
		delete(candidates, chosen)
		for idx := range candidates {
			if docSimilarities[chosen][idx] >= threshold {
				delete(candidates, idx)
			}
		}
	}

	sort.Ints(selected)
	return selected
}

// pickRandom returns a uniformly random member of a non-empty set,
// iterating in a deterministic (sorted) order first so the draw is
// reproducible for a fixed rng seed despite Go's randomized map order.
func pickRandom(set map[int]bool, rng *rand.Rand) int {
	keys := make([]int, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys[rng.Intn(len(keys))]
}
