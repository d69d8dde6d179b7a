package embedding

import (
	"math"
	"testing"
)

const tolerance = 1e-5

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < tolerance
}

func TestNewNormalizes(t *testing.T) {
	e, err := New([]float32{3, 4, 0})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var norm float64
	for _, x := range e.Values() {
		norm += float64(x) * float64(x)
	}
	if !almostEqual(float32(math.Sqrt(norm)), 1) {
		t.Fatalf("expected unit norm, got %v", math.Sqrt(norm))
	}
}

func TestNewRejectsZeroVector(t *testing.T) {
	if _, err := New([]float32{0, 0, 0}); err != ErrZeroVector {
		t.Fatalf("expected ErrZeroVector, got %v", err)
	}
}

func TestNewRejectsEmpty(t *testing.T) {
	if _, err := New(nil); err != ErrEmptyVector {
		t.Fatalf("expected ErrEmptyVector, got %v", err)
	}
}

func TestNewRejectsNonFinite(t *testing.T) {
	if _, err := New([]float32{1, float32(math.NaN()), 0}); err != ErrNonFinite {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
	if _, err := New([]float32{1, float32(math.Inf(1)), 0}); err != ErrNonFinite {
		t.Fatalf("expected ErrNonFinite, got %v", err)
	}
}

func TestCosineIdentical(t *testing.T) {
	a := MustNew([]float32{1, 2, 3})
	s, err := Cosine(a, a)
	if err != nil {
		t.Fatalf("Cosine: %v", err)
	}
	if !almostEqual(s, 1) {
		t.Fatalf("expected cosine 1, got %v", s)
	}
}

func TestCosineOrthogonal(t *testing.T) {
	a := MustNew([]float32{1, 0, 0})
	b := MustNew([]float32{0, 1, 0})
	s := MustCosine(a, b)
	if !almostEqual(s, 0) {
		t.Fatalf("expected cosine 0, got %v", s)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	a := MustNew([]float32{1, 0})
	b := MustNew([]float32{1, 0, 0})
	if _, err := Cosine(a, b); err != ErrDimensionMismatch {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestPairwiseSimilarityUnitDiagonal(t *testing.T) {
	points := []Embedding{
		MustNew([]float32{1, 0, 0}),
		MustNew([]float32{0, 1, 0}),
		MustNew([]float32{1, 1, 0}),
	}
	m, err := PairwiseSimilarity(points)
	if err != nil {
		t.Fatalf("PairwiseSimilarity: %v", err)
	}
	for i := range m {
		if !almostEqual(m[i][i], 1) {
			t.Fatalf("diagonal[%d] = %v, want 1", i, m[i][i])
		}
	}
	if !almostEqual(m[0][1], m[1][0]) {
		t.Fatalf("matrix not symmetric: %v vs %v", m[0][1], m[1][0])
	}
}

func TestMaxCosineEmptyPool(t *testing.T) {
	target := MustNew([]float32{1, 0, 0})
	_, _, ok := MaxCosine(target, nil)
	if ok {
		t.Fatal("expected ok=false for empty pool")
	}
}

func TestMaxCosinePicksClosest(t *testing.T) {
	target := MustNew([]float32{1, 0, 0})
	pool := []Embedding{
		MustNew([]float32{0, 1, 0}),
		MustNew([]float32{1, 0.01, 0}),
		MustNew([]float32{-1, 0, 0}),
	}
	best, idx, ok := MaxCosine(target, pool)
	if !ok {
		t.Fatal("expected ok=true")
	}
	if idx != 1 {
		t.Fatalf("expected idx 1, got %d (best=%v)", idx, best)
	}
}

// TestCoiMergeScenario grounds spec §8 scenario 4: merging (1,0,0) with
// view_count=1 against an interaction at 10 degrees, theta=0.9, s=0.1.
func TestCoiMergeScenario(t *testing.T) {
	existing := MustNew([]float32{1, 0, 0})
	rad := 10.0 * math.Pi / 180.0
	interaction := MustNew([]float32{float32(math.Cos(rad)), float32(math.Sin(rad)), 0})

	sim := MustCosine(existing, interaction)
	if sim < 0.9 {
		t.Fatalf("expected similarity >= 0.9 (merge case), got %v", sim)
	}

	merged, err := WeightedSum(existing, interaction, 0.1)
	if err != nil {
		t.Fatalf("WeightedSum: %v", err)
	}

	// Expected pre-normalization point is approximately (0.998, 0.0174, 0);
	// after normalization the x component dominates.
	vals := merged.Values()
	if vals[0] <= vals[1] {
		t.Fatalf("expected x-dominant merged point, got %v", vals)
	}
}

func TestCoiCreateScenario(t *testing.T) {
	existing := MustNew([]float32{1, 0, 0})
	interaction := MustNew([]float32{0, 1, 0})
	sim := MustCosine(existing, interaction)
	if sim >= 0.9 {
		t.Fatalf("expected similarity < 0.9 (create case), got %v", sim)
	}
}
