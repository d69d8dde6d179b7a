// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

package docstore

import (
	"math"
	"strings"
	"unicode"
)

// bm25K1 and bm25B are the standard Okapi BM25 tuning constants (term
// frequency saturation and document-length normalization), the defaults
// used throughout the information-retrieval literature the formula
// originates from.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// Tokenize lowercases text and splits it on runs of non-alphanumeric
// characters, the shared tokenizer for BM25 indexing and querying.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// BM25Rank scores corpus (doc id -> full text) against query with Okapi
// BM25 and returns every document with a positive score, most relevant
// first. This mirrors the KNN methods' full-scan-then-score-in-Go
// convention: the pack carries no lexical-search extension or library,
// so ranking happens the same way cosine similarity does, over whatever
// snippets the caller hands it.
func BM25Rank(corpus map[string]string, query string, excluded map[string]bool) []ScoredDocument {
	queryTerms := uniqueTerms(Tokenize(query))
	if len(queryTerms) == 0 || len(corpus) == 0 {
		return nil
	}

	tf := make(map[string]map[string]int, len(corpus))
	lengths := make(map[string]float64, len(corpus))
	var totalLen float64
	for id, text := range corpus {
		tokens := Tokenize(text)
		counts := make(map[string]int, len(tokens))
		for _, t := range tokens {
			counts[t]++
		}
		tf[id] = counts
		lengths[id] = float64(len(tokens))
		totalLen += float64(len(tokens))
	}
	n := float64(len(corpus))
	avgLen := totalLen / n

	df := make(map[string]int, len(queryTerms))
	for _, counts := range tf {
		for _, term := range queryTerms {
			if counts[term] > 0 {
				df[term]++
			}
		}
	}

	var scored []ScoredDocument
	for id, counts := range tf {
		if excluded[id] {
			continue
		}
		var score float64
		for _, term := range queryTerms {
			f := counts[term]
			if f == 0 {
				continue
			}
			nq := float64(df[term])
			idf := math.Log(1 + (n-nq+0.5)/(nq+0.5))
			numerator := float64(f) * (bm25K1 + 1)
			denominator := float64(f) + bm25K1*(1-bm25B+bm25B*lengths[id]/avgLen)
			score += idf * numerator / denominator
		}
		if score > 0 {
			scored = append(scored, ScoredDocument{ID: id, Score: float32(score)})
		}
	}
	sortByScoreDesc(scored)
	return scored
}

func uniqueTerms(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

// sortByScoreDesc sorts scored documents by descending score, ties
// broken by id for deterministic ordering — matching the duckdbstore and
// memstore KNN tie-break convention exactly.
func sortByScoreDesc(scored []ScoredDocument) {
	for i := 1; i < len(scored); i++ {
		for j := i; j > 0 && (scored[j].Score > scored[j-1].Score || (scored[j].Score == scored[j-1].Score && scored[j].ID < scored[j-1].ID)); j-- {
			scored[j], scored[j-1] = scored[j-1], scored[j]
		}
	}
}
