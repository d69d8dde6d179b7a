package keyphrase

import (
	"math"
	"sort"
	"testing"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

const tolerance = 1e-4

func almostEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) < tolerance
}

func TestCleanCollapsesSymbolsAndSpaces(t *testing.T) {
	got := Clean("hello,,,   world!!  foo")
	if got != "hello world foo" {
		t.Fatalf("unexpected clean result: %q", got)
	}
}

func TestUnifyNoCandidatesReturnsExisting(t *testing.T) {
	existing := []interest.KeyPhrase{
		mustKP(t, "key", []float32{1, 0, 0}),
		mustKP(t, "phrase", []float32{1, 1, 0}),
	}
	embed := func(string) (embedding.Embedding, error) { t.Fatal("embed should not be called"); return embedding.Embedding{}, nil }

	got := Unify(existing, nil, embed)
	if len(got) != 2 {
		t.Fatalf("expected existing key phrases unchanged, got %d", len(got))
	}
}

func TestUnifyOnlyCandidates(t *testing.T) {
	embed := func(words string) (embedding.Embedding, error) {
		switch words {
		case "key":
			return embedding.MustNew([]float32{1, 0, 0}), nil
		case "phrase":
			return embedding.MustNew([]float32{1, 1, 0}), nil
		}
		t.Fatalf("unexpected embed call for %q", words)
		return embedding.Embedding{}, nil
	}

	got := Unify(nil, []string{"key", "phrase"}, embed)
	words := wordsOf(got)
	sort.Strings(words)
	if len(words) != 2 || words[0] != "key" || words[1] != "phrase" {
		t.Fatalf("unexpected unify result: %v", words)
	}
}

func TestUnifyDropsDuplicatesAndExistingWords(t *testing.T) {
	existing := []interest.KeyPhrase{
		mustKP(t, "key", []float32{1, 0, 0}),
		mustKP(t, "phrase", []float32{1, 1, 0}),
	}
	embed := func(words string) (embedding.Embedding, error) {
		switch words {
		case "phrase":
			return embedding.MustNew([]float32{1, 1, 0}), nil
		case "words":
			return embedding.MustNew([]float32{1, 1, 1}), nil
		}
		t.Fatalf("unexpected embed call for %q", words)
		return embedding.Embedding{}, nil
	}

	got := Unify(existing, []string{"phrase", "words", "words"}, embed)
	words := wordsOf(got)
	sort.Strings(words)
	if len(words) != 3 || words[0] != "key" || words[1] != "phrase" || words[2] != "words" {
		t.Fatalf("expected [key phrase words], got %v", words)
	}
}

// TestSimilaritiesSingleKeyPhrase grounds the Rust reference test
// test_similarites_single: a lone key phrase has an undefined column
// variance, so both entries fall back to the neutral 0.5.
func TestSimilaritiesSingleKeyPhrase(t *testing.T) {
	points := []embedding.Embedding{embedding.MustNew([]float32{1, 1, 0})}
	coi := embedding.MustNew([]float32{1, 0, 0})

	sim, err := Similarities(points, coi)
	if err != nil {
		t.Fatalf("Similarities: %v", err)
	}
	if len(sim) != 1 || len(sim[0]) != 2 {
		t.Fatalf("expected shape 1x2, got %dx%d", len(sim), len(sim[0]))
	}
	if !almostEqual(sim[0][0], 0.5) || !almostEqual(sim[0][1], 0.5) {
		t.Fatalf("expected [0.5, 0.5], got %v", sim[0])
	}
}

// TestSimilaritiesTwoKeyPhrases grounds the same reference test's second
// case: exact expected values [[0.5, 0.5, 1.5], [0.5, 0.5, -0.5]].
func TestSimilaritiesTwoKeyPhrases(t *testing.T) {
	points := []embedding.Embedding{
		embedding.MustNew([]float32{1, 1, 0}),
		embedding.MustNew([]float32{1, 1, 1}),
	}
	coi := embedding.MustNew([]float32{1, 0, 0})

	sim, err := Similarities(points, coi)
	if err != nil {
		t.Fatalf("Similarities: %v", err)
	}
	want := [][]float32{{0.5, 0.5, 1.5}, {0.5, 0.5, -0.5}}
	for i := range want {
		for j := range want[i] {
			if !almostEqual(sim[i][j], want[i][j]) {
				t.Fatalf("sim[%d][%d] = %v, want %v (full=%v)", i, j, sim[i][j], want[i][j], sim)
			}
		}
	}
}

func TestIsSelectedKeepsAllWhenUnderLimit(t *testing.T) {
	sim := [][]float32{{1, 0.5}, {0.5, 1}}
	selected := IsSelected(sim, 5, 0.9)
	for i, s := range selected {
		if !s {
			t.Fatalf("expected all kept when n <= max, index %d not selected", i)
		}
	}
}

func TestIsSelectedZeroMaxSelectsNone(t *testing.T) {
	sim := [][]float32{{1, 0.5, 0.3}, {0.5, 1, 0.2}, {0.3, 0.2, 1}}
	selected := IsSelected(sim, 0, 0.9)
	for i, s := range selected {
		if s {
			t.Fatalf("expected none selected, index %d was selected", i)
		}
	}
}

// TestIsSelectedDiversityTradeoff checks that with gamma favoring
// diversity strongly, a near-duplicate of the first pick is passed over
// in favor of a more novel (lower coi-similarity but dissimilar) phrase.
func TestIsSelectedDiversityTradeoff(t *testing.T) {
	// 3 candidates; candidate 0 has highest coi-similarity and is picked
	// first. Candidate 1 nearly duplicates candidate 0. Candidate 2 is
	// less similar to the coi but very different from candidate 0.
	sim := [][]float32{
		{1, 0.99, 0.1, 0.9},
		{0.99, 1, 0.1, 0.85},
		{0.1, 0.1, 1, 0.6},
	}
	selected := IsSelected(sim, 2, 0.1)
	if !selected[0] {
		t.Fatalf("expected candidate 0 (highest coi-similarity) to seed the selection")
	}
	if selected[1] {
		t.Fatalf("expected near-duplicate candidate 1 to lose out to diverse candidate 2 under low gamma")
	}
	if !selected[2] {
		t.Fatalf("expected diverse candidate 2 to be selected")
	}
}

func TestSelectSortsByCoiSimilarityDescending(t *testing.T) {
	kps := []interest.KeyPhrase{
		mustKP(t, "low", []float32{1, 0, 0}),
		mustKP(t, "high", []float32{0, 1, 0}),
	}
	sim := [][]float32{{1, 0.2, 0.2}, {0.2, 1, 0.9}}
	selected := []bool{true, true}

	out := Select(kps, selected, sim)
	if out[0].Words() != "high" {
		t.Fatalf("expected 'high' (sim 0.9) first, got %q", out[0].Words())
	}
}

func TestChooseForCoiEmptyWhenNoCandidatesOrExisting(t *testing.T) {
	coi := embedding.MustNew([]float32{1, 0, 0})
	embed := func(string) (embedding.Embedding, error) { return embedding.Embedding{}, nil }
	out, err := ChooseForCoi(nil, coi, nil, embed, 3, 0.9)
	if err != nil {
		t.Fatalf("ChooseForCoi: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected empty result, got %v", out)
	}
}

func TestTableUpdateThenSelected(t *testing.T) {
	table := NewTable()
	coiID := interest.NewCoiID()
	coi := embedding.MustNew([]float32{1, 0, 0})
	embed := func(words string) (embedding.Embedding, error) {
		switch words {
		case "alpha":
			return embedding.MustNew([]float32{1, 0.1, 0}), nil
		case "beta":
			return embedding.MustNew([]float32{0.9, 0.2, 0}), nil
		}
		t.Fatalf("unexpected embed %q", words)
		return embedding.Embedding{}, nil
	}

	market := interest.Market{Lang: "en", Country: "US"}
	if err := table.Update(coiID, market, coi, []string{"alpha", "beta"}, embed, 5, 0.9); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got := table.Selected(coiID, market)
	if len(got) != 2 {
		t.Fatalf("expected both candidates kept (n<=max), got %d", len(got))
	}
}

func mustKP(t *testing.T, words string, v []float32) interest.KeyPhrase {
	t.Helper()
	kp, err := interest.NewKeyPhrase(words, embedding.MustNew(v))
	if err != nil {
		t.Fatalf("NewKeyPhrase(%q): %v", words, err)
	}
	return kp
}

func wordsOf(kps []interest.KeyPhrase) []string {
	out := make([]string, len(kps))
	for i, kp := range kps {
		out[i] = kp.Words()
	}
	return out
}
