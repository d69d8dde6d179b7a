package keyphrasetake

import (
	"testing"
	"time"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
	"github.com/tomtom215/interestengine/internal/interest/keyphrase"
	"github.com/tomtom215/interestengine/internal/interest/relevance"
)

var enUS = interest.Market{Lang: "en", Country: "US"}

func setup(t *testing.T) (*keyphrase.Table, []interest.PositiveCoi, time.Time) {
	t.Helper()
	now := time.Now()
	coiA := interest.PositiveCoi{ID: "coiA", Point: embedding.MustNew([]float32{1, 0, 0}), Stats: interest.Stats{ViewCount: 5, ViewTime: time.Hour, LastView: now}}
	coiB := interest.PositiveCoi{ID: "coiB", Point: embedding.MustNew([]float32{0, 1, 0}), Stats: interest.Stats{ViewCount: 1, ViewTime: time.Minute, LastView: now}}

	table := keyphrase.NewTable()
	embed := func(string) (embedding.Embedding, error) { return embedding.Embedding{}, nil }
	table.SetSelected("coiA", enUS, []interest.KeyPhrase{
		mustKP(t, "alpha", []float32{1, 0.1, 0}),
		mustKP(t, "beta", []float32{1, 0.2, 0}),
	})
	table.SetSelected("coiB", enUS, []interest.KeyPhrase{
		mustKP(t, "gamma", []float32{0, 1, 0.1}),
	})
	_ = embed
	return table, []interest.PositiveCoi{coiA, coiB}, now
}

func mustKP(t *testing.T, words string, v []float32) interest.KeyPhrase {
	t.Helper()
	kp, err := interest.NewKeyPhrase(words, embedding.MustNew(v))
	if err != nil {
		t.Fatalf("NewKeyPhrase: %v", err)
	}
	return kp
}

// TestTakeOrdersByPenalizedRelevance grounds spec §8's taker scenario: the
// higher-relevance CoI's 1st-ranked (unpenalized) phrase is taken first.
func TestTakeOrdersByPenalizedRelevance(t *testing.T) {
	table, cois, now := setup(t)
	taker := NewTaker(table)

	taken := taker.Take(cois, enUS, 1, relevance.DefaultConfig(), []float64{1.0, 0.5}, 0.9, now)
	if len(taken) != 1 {
		t.Fatalf("expected 1 taken, got %d", len(taken))
	}
	if taken[0].Words() != "alpha" {
		t.Fatalf("expected highest-relevance coi's top phrase 'alpha' first, got %q", taken[0].Words())
	}
}

func TestTakeMovesPhraseFromSelectedToRemoved(t *testing.T) {
	table, cois, now := setup(t)
	taker := NewTaker(table)

	_ = taker.Take(cois, enUS, 1, relevance.DefaultConfig(), []float64{1.0, 0.75, 0.5}, 0.9, now)

	remainingA := table.Selected("coiA", enUS)
	if len(remainingA) != 1 {
		t.Fatalf("expected 1 phrase left in coiA after taking 1, got %d", len(remainingA))
	}
	if remainingA[0].Words() == "alpha" {
		t.Fatalf("expected 'alpha' to have been taken and removed from selected")
	}
}

func TestTakeDrainsThenRecyclesViaSwap(t *testing.T) {
	table, cois, now := setup(t)
	taker := NewTaker(table)
	penalty := []float64{1.0, 0.75, 0.5}

	// Drain everything (3 total key phrases across both cois).
	first := taker.Take(cois, enUS, 10, relevance.DefaultConfig(), penalty, 0.9, now)
	if len(first) != 3 {
		t.Fatalf("expected to drain all 3 phrases, got %d", len(first))
	}
	if !table.IsEmpty() {
		t.Fatalf("expected table to be empty after draining all selections")
	}

	// The next Take should swap removed back into selected and refresh.
	second := taker.Take(cois, enUS, 1, relevance.DefaultConfig(), penalty, 0.9, now)
	if len(second) != 1 {
		t.Fatalf("expected 1 phrase after swap-refresh, got %d", len(second))
	}
}

func TestTakeCapsAtAvailableCount(t *testing.T) {
	table, cois, now := setup(t)
	taker := NewTaker(table)

	taken := taker.Take(cois, enUS, 100, relevance.DefaultConfig(), []float64{1.0, 0.75, 0.5}, 0.9, now)
	if len(taken) != 3 {
		t.Fatalf("expected to cap at 3 available phrases, got %d", len(taken))
	}
}

// TestTakeCapsEmissionAtPenaltyLength grounds spec §4.6 step 3: a CoI
// contributes at most len(penalty) tuples per round, independent of how
// many key phrases it has selected.
func TestTakeCapsEmissionAtPenaltyLength(t *testing.T) {
	table, cois, now := setup(t)
	taker := NewTaker(table)

	// coiA has 2 selected phrases, coiB has 1; a 1-entry penalty caps
	// each CoI's contribution at its first-ranked phrase only, so only
	// 2 candidates (one per CoI) exist even though top asks for more.
	taken := taker.Take(cois, enUS, 100, relevance.DefaultConfig(), []float64{1.0}, 0.9, now)
	if len(taken) != 2 {
		t.Fatalf("expected penalty length to cap emission at 2 (1 per coi), got %d", len(taken))
	}
}

// TestTakeIsolatesMarkets grounds spec §3's "(CoI id, Market)" partition:
// a take in one market must not observe or consume key phrases selected
// for the same CoI in a different market.
func TestTakeIsolatesMarkets(t *testing.T) {
	table, cois, now := setup(t)
	taker := NewTaker(table)

	frFR := interest.Market{Lang: "fr", Country: "FR"}
	taken := taker.Take(cois, frFR, 10, relevance.DefaultConfig(), []float64{1.0, 0.75, 0.5}, 0.9, now)
	if len(taken) != 0 {
		t.Fatalf("expected no candidates in an untouched market, got %d", len(taken))
	}
	if enUSPhrases := table.Selected("coiA", enUS); len(enUSPhrases) != 2 {
		t.Fatalf("expected en-US selection for coiA untouched by a fr-FR take, got %d", len(enUSPhrases))
	}
}
