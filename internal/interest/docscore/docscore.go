// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package docscore implements the document scorer (C7): candidate
// documents are scored by closeness to the user's positive CoIs, filtered
// when too close to a negative CoI, semantically deduplicated by
// average-linkage clustering over a blended cosine/recency distance, and
// finally merged with a BM25-style lexical score into one ranking, per
// spec §4.7.
package docscore

import (
	"math"
	"sort"
	"time"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
	"github.com/tomtom215/interestengine/internal/interest/relevance"
)

// Config carries the named values from spec §6 relevant to document
// scoring and the semantic-dedup supplement described in SPEC_FULL.md.
type Config struct {
	// MaxNegativeSimilarity: documents this close to the nearest negative
	// CoI are rejected outright.
	MaxNegativeSimilarity float32
	// DedupMaxDissimilarity: average-linkage clusters merge while the
	// nearest-cluster normalized distance stays below this threshold.
	DedupMaxDissimilarity float32
	// RecencyHalfLifeDays scales how quickly two documents' publish dates
	// stop being treated as "the same moment" for dedup purposes; higher
	// values make date proximity matter less.
	RecencyHalfLifeDays float64
	// RecencyThreshold floors the decay factor so that very old pairs of
	// documents are still merge-eligible on pure topical similarity.
	RecencyThreshold float64
}

// DefaultConfig returns spec §6's stack.max_negative_similarity=0.7 plus
// the dedup defaults carried over from the original_source semantic
// filter (max_days=10, threshold=0.5).
func DefaultConfig() Config {
	return Config{
		MaxNegativeSimilarity: 0.7,
		DedupMaxDissimilarity: 0.5,
		RecencyHalfLifeDays:   10,
		RecencyThreshold:      0.5,
	}
}

// ClosestPositiveSimilarity returns the document's similarity to its
// nearest positive CoI, the base relevance signal for C7's score. ok is
// false if cois is empty (the caller should fall back to a pure-negative
// filtering role per the negative-only-CoI-user Open Question decision).
func ClosestPositiveSimilarity(doc interest.Document, cois []interest.PositiveCoi) (sim float32, ok bool) {
	points := make([]embedding.Embedding, len(cois))
	for i, c := range cois {
		points[i] = c.Point
	}
	sim, _, ok = embedding.MaxCosine(doc.Point, points)
	return sim, ok
}

// RejectedByNegative reports whether doc is too similar to the closest
// negative CoI to keep, per spec's repulsion rule.
func RejectedByNegative(cfg Config, doc interest.Document, cois []interest.NegativeCoi) bool {
	if len(cois) == 0 {
		return false
	}
	points := make([]embedding.Embedding, len(cois))
	for i, c := range cois {
		points[i] = c.Point
	}
	sim, _, ok := embedding.MaxCosine(doc.Point, points)
	return ok && sim >= cfg.MaxNegativeSimilarity
}

// Score combines the positive and negative CoI signals into a single
// document score: closest-positive-similarity weighted by that specific
// CoI's C4 relevance (per spec §4.7, "weighted by C4 relevance"), or 0
// for a user with no positive CoIs (they are filtered by
// RejectedByNegative alone, never ranked by it, per the
// negative-only-CoI Open Question decision). An extinct CoI (relevance
// decayed near 0 per §4.4) therefore contributes near-zero score even
// when its cosine similarity to doc is high.
func Score(cfg Config, relevanceCfg relevance.Config, doc interest.Document, positive []interest.PositiveCoi, negative []interest.NegativeCoi, now time.Time) (score float64, rejected bool) {
	if RejectedByNegative(cfg, doc, negative) {
		return 0, true
	}
	points := make([]embedding.Embedding, len(positive))
	for i, c := range positive {
		points[i] = c.Point
	}
	sim, idx, ok := embedding.MaxCosine(doc.Point, points)
	if !ok {
		return 0, false
	}
	rel := relevance.Score(relevanceCfg, positive[idx], now)
	return float64(sim) * rel, false
}

// dayDistance returns the absolute number of days between two publish
// timestamps.
func dayDistance(a, b interest.Document) float64 {
	diff := a.PublishedAt.Sub(b.PublishedAt)
	if diff < 0 {
		diff = -diff
	}
	return diff.Hours() / 24
}

func decayFactor(cfg Config, days float64) float64 {
	expMaxDays := math.Exp(-0.1 * cfg.RecencyHalfLifeDays)
	if expMaxDays == 1 {
		return cfg.RecencyThreshold
	}
	raw := (expMaxDays - math.Exp(-0.1*days)) / (expMaxDays - 1)
	if raw < 0 {
		raw = 0
	}
	return raw*(1-cfg.RecencyThreshold) + cfg.RecencyThreshold
}

// blendedSimilarity combines topical cosine similarity with a recency
// decay factor: two documents on the same topic published far apart in
// time are treated as progressively less alike.
func blendedSimilarity(cfg Config, a, b interest.Document) (float64, error) {
	sim, err := embedding.Cosine(a.Point, b.Point)
	if err != nil {
		return 0, err
	}
	decay := decayFactor(cfg, dayDistance(a, b))
	return float64(sim) * decay, nil
}

// SemanticDedup removes near-duplicate documents via average-linkage
// agglomerative clustering over the blended cosine/recency distance,
// keeping the heaviest-SourceWeight document in each resulting cluster.
// Fewer than two documents are returned as-is.
func SemanticDedup(cfg Config, docs []interest.Document) ([]interest.Document, error) {
	n := len(docs)
	if n < 2 {
		return docs, nil
	}

	blended := make([][]float64, n)
	for i := range blended {
		blended[i] = make([]float64, n)
	}
	var minV, maxV float64
	first := true
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			b, err := blendedSimilarity(cfg, docs[i], docs[j])
			if err != nil {
				return nil, err
			}
			blended[i][j] = b
			blended[j][i] = b
			if first {
				minV, maxV = b, b
				first = false
			} else {
				if b < minV {
					minV = b
				}
				if b > maxV {
					maxV = b
				}
			}
		}
	}

	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	span := maxV - minV
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			var d float64
			if span > 0 {
				d = 1 - (blended[i][j]-minV)/span
			}
			dist[i][j] = d
			dist[j][i] = d
		}
	}

	labels := averageLinkageClusters(dist, n, float64(cfg.DedupMaxDissimilarity))

	bestByLabel := make(map[int]int) // label -> doc index with heaviest source weight
	for i, label := range labels {
		cur, ok := bestByLabel[label]
		if !ok || docs[i].SourceWeight > docs[cur].SourceWeight {
			bestByLabel[label] = i
		}
	}

	keep := make([]int, 0, len(bestByLabel))
	for _, idx := range bestByLabel {
		keep = append(keep, idx)
	}
	sort.Ints(keep)

	out := make([]interest.Document, len(keep))
	for i, idx := range keep {
		out[i] = docs[idx]
	}
	return out, nil
}

// averageLinkageClusters runs greedy average-linkage agglomeration,
// merging the two closest clusters until the minimum remaining
// inter-cluster distance reaches maxDissimilarity, then returns a label
// per original index.
func averageLinkageClusters(dist [][]float64, n int, maxDissimilarity float64) []int {
	clusters := make([]map[int]bool, n)
	for i := range clusters {
		clusters[i] = map[int]bool{i: true}
	}
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}

	for {
		bestI, bestJ := -1, -1
		bestD := math.MaxFloat64
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !active[j] {
					continue
				}
				d := averageClusterDistance(dist, clusters[i], clusters[j])
				if d < bestD {
					bestD = d
					bestI, bestJ = i, j
				}
			}
		}
		if bestI < 0 || bestD >= maxDissimilarity {
			break
		}
		for k := range clusters[bestJ] {
			clusters[bestI][k] = true
		}
		active[bestJ] = false
	}

	labels := make([]int, n)
	label := 0
	for i := 0; i < n; i++ {
		if !active[i] {
			continue
		}
		for member := range clusters[i] {
			labels[member] = label
		}
		label++
	}
	return labels
}

func averageClusterDistance(dist [][]float64, a, b map[int]bool) float64 {
	var sum float64
	var count int
	for i := range a {
		for j := range b {
			sum += dist[i][j]
			count++
		}
	}
	if count == 0 {
		return math.MaxFloat64
	}
	return sum / float64(count)
}
