// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package docscore

import "sort"

// HybridMode selects how the KNN (embedding) and BM25 (lexical) candidate
// rankings for semantic_search are merged into one, per the corresponding
// Open Question decision recorded in DESIGN.md.
type HybridMode int

const (
	// SumOfNormalized min-max normalizes each ranking to [0,1] and sums.
	SumOfNormalized HybridMode = iota
	// ReciprocalRankFusion scores by 1/(k+rank) per ranking and sums;
	// the default, since it needs no score-scale assumptions across the
	// two very different underlying metrics (cosine vs BM25).
	ReciprocalRankFusion
)

// RRFConstant is RRF's k smoothing term; 60 is the value used throughout
// the information-retrieval literature this technique originates from.
const RRFConstant = 60.0

// RankedScore pairs a document id with its score under one ranking.
type RankedScore struct {
	ID    string
	Score float64
}

// HybridMerge combines a KNN ranking and a BM25 ranking into one ordered
// result set. Documents present in only one ranking are still included,
// treated as rank-absent (score 0 for sum-of-normalized, or omitted from
// that ranking's RRF term).
func HybridMerge(mode HybridMode, knn, bm25 []RankedScore) []RankedScore {
	switch mode {
	case SumOfNormalized:
		return mergeSumOfNormalized(knn, bm25)
	default:
		return mergeRRF(knn, bm25)
	}
}

func mergeSumOfNormalized(knn, bm25 []RankedScore) []RankedScore {
	knnNorm := minMaxNormalize(knn)
	bm25Norm := minMaxNormalize(bm25)

	combined := make(map[string]float64)
	for id, s := range knnNorm {
		combined[id] += s
	}
	for id, s := range bm25Norm {
		combined[id] += s
	}
	return sortedScores(combined)
}

func minMaxNormalize(ranking []RankedScore) map[string]float64 {
	out := make(map[string]float64, len(ranking))
	if len(ranking) == 0 {
		return out
	}
	minV, maxV := ranking[0].Score, ranking[0].Score
	for _, r := range ranking {
		if r.Score < minV {
			minV = r.Score
		}
		if r.Score > maxV {
			maxV = r.Score
		}
	}
	span := maxV - minV
	for _, r := range ranking {
		if span > 0 {
			out[r.ID] = (r.Score - minV) / span
		} else {
			out[r.ID] = 0
		}
	}
	return out
}

func mergeRRF(knn, bm25 []RankedScore) []RankedScore {
	combined := make(map[string]float64)
	addRRF(combined, knn)
	addRRF(combined, bm25)
	return sortedScores(combined)
}

// addRRF assumes ranking is already sorted by descending relevance
// (the order the KNN/BM25 storage adapters return candidates in).
func addRRF(combined map[string]float64, ranking []RankedScore) {
	for i, r := range ranking {
		combined[r.ID] += 1.0 / (RRFConstant + float64(i+1))
	}
}

func sortedScores(combined map[string]float64) []RankedScore {
	out := make([]RankedScore, 0, len(combined))
	for id, s := range combined {
		out = append(out, RankedScore{ID: id, Score: s})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
