// interestengine - Personalized Content Recommendation and Semantic Search
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/interestengine

// Package embedding implements the pure vector operations the interest
// engine is built on: unit-norm embeddings, cosine similarity and pairwise
// similarity matrices. Every function here is deterministic and side-effect
// free given identical inputs.
package embedding

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyVector is returned when constructing an Embedding from a zero-length slice.
var ErrEmptyVector = errors.New("embedding: vector must not be empty")

// ErrZeroVector is returned when constructing an Embedding from an all-zero vector.
var ErrZeroVector = errors.New("embedding: vector must not be all-zero")

// ErrNonFinite is returned when a vector contains NaN or +/-Inf components.
var ErrNonFinite = errors.New("embedding: vector contains a non-finite component")

// ErrDimensionMismatch is returned when two embeddings have different dimensions.
var ErrDimensionMismatch = errors.New("embedding: dimension mismatch")

// isNormalizedTolerance bounds how far from norm 1.0 a vector can be to be
// treated as already normalized, avoiding a redundant sqrt+divide pass.
const isNormalizedTolerance = 1e-6

// Embedding is a dense, L2-normalized vector of fixed dimension.
// The zero value is not valid; construct with New.
type Embedding struct {
	v []float32
}

// New constructs an Embedding by validating and L2-normalizing v.
// v is not retained; New copies it.
func New(v []float32) (Embedding, error) {
	if len(v) == 0 {
		return Embedding{}, ErrEmptyVector
	}
	for _, x := range v {
		if !isFinite(x) {
			return Embedding{}, ErrNonFinite
		}
	}

	out := make([]float32, len(v))
	copy(out, v)

	var sumSquares float64
	for _, x := range out {
		sumSquares += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSquares)
	if norm == 0 {
		return Embedding{}, ErrZeroVector
	}

	if math.Abs(norm-1) > isNormalizedTolerance {
		invNorm := float32(1 / norm)
		for i := range out {
			out[i] *= invNorm
		}
	}

	return Embedding{v: out}, nil
}

// MustNew is like New but panics on error. Intended for tests and seeded
// fixtures, never for data arriving from an external collaborator.
func MustNew(v []float32) Embedding {
	e, err := New(v)
	if err != nil {
		panic(fmt.Sprintf("embedding.MustNew: %v", err))
	}
	return e
}

// Dim returns the embedding's dimension.
func (e Embedding) Dim() int {
	return len(e.v)
}

// Values returns the underlying components. The returned slice must not be
// mutated by the caller.
func (e Embedding) Values() []float32 {
	return e.v
}

// IsZero reports whether e is the zero value (never constructed via New).
func (e Embedding) IsZero() bool {
	return e.v == nil
}

func isFinite(x float32) bool {
	return !math.IsNaN(float64(x)) && !math.IsInf(float64(x), 0)
}

// Cosine returns the cosine similarity of two unit-norm embeddings, clamped
// to [-1, 1] to absorb floating-point drift. Since both vectors are already
// unit-norm, this is exactly their dot product.
func Cosine(a, b Embedding) (float32, error) {
	if a.Dim() != b.Dim() {
		return 0, ErrDimensionMismatch
	}

	var dot float32
	av, bv := a.v, b.v
	for i := range av {
		dot += av[i] * bv[i]
	}

	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return dot, nil
}

// MustCosine is like Cosine but panics on a dimension mismatch. Safe to use
// once dimensions have been validated at ingest time.
func MustCosine(a, b Embedding) float32 {
	s, err := Cosine(a, b)
	if err != nil {
		panic(fmt.Sprintf("embedding.MustCosine: %v", err))
	}
	return s
}

// PairwiseSimilarity returns the symmetric N x N matrix of cosine
// similarities between the given embeddings, with a unit diagonal.
func PairwiseSimilarity(points []Embedding) ([][]float32, error) {
	n := len(points)
	m := make([][]float32, n)
	for i := range m {
		m[i] = make([]float32, n)
	}

	for i := 0; i < n; i++ {
		m[i][i] = 1
		for j := i + 1; j < n; j++ {
			s, err := Cosine(points[i], points[j])
			if err != nil {
				return nil, fmt.Errorf("pairwise similarity[%d,%d]: %w", i, j, err)
			}
			m[i][j] = s
			m[j][i] = s
		}
	}
	return m, nil
}

// MaxCosine returns the maximum cosine similarity between target and any
// point in pool, along with the index of the closest point. It reports
// false if pool is empty.
func MaxCosine(target Embedding, pool []Embedding) (best float32, idx int, ok bool) {
	best = -2 // lower than any valid cosine similarity
	idx = -1
	for i, p := range pool {
		s := MustCosine(target, p)
		if s > best {
			best = s
			idx = i
		}
	}
	return best, idx, idx >= 0
}

// Normalize is a convenience wrapper around New for callers that already
// have a []float32 and want the zero-value-free Embedding directly.
func Normalize(v []float32) (Embedding, error) {
	return New(v)
}

// WeightedSum computes normalize((1-weight)*a + weight*b), the centroid
// shift used by the CoI update rule (C3). Both inputs must share dimension.
func WeightedSum(a, b Embedding, weight float32) (Embedding, error) {
	if a.Dim() != b.Dim() {
		return Embedding{}, ErrDimensionMismatch
	}
	out := make([]float32, a.Dim())
	for i := range out {
		out[i] = (1-weight)*a.v[i] + weight*b.v[i]
	}
	return New(out)
}
