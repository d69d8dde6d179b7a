package coiupdate

import (
	"math"
	"testing"
	"time"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

func TestUpdatePositiveCreatesWhenEmpty(t *testing.T) {
	cfg := DefaultConfig()
	point := embedding.MustNew([]float32{1, 0, 0})
	out, id, err := UpdatePositive(cfg, nil, Interaction{Point: point, ViewTime: time.Minute, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("UpdatePositive: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected 1 coi, got %d", len(out))
	}
	if out[0].ID != id {
		t.Fatalf("returned id mismatch")
	}
	if out[0].Stats.ViewCount != 1 {
		t.Fatalf("expected view count 1, got %d", out[0].Stats.ViewCount)
	}
}

// TestUpdatePositiveMergesAboveThreshold grounds spec §8 scenario 4: an
// interaction 10 degrees from an existing CoI merges (sim > 0.9 > theta).
func TestUpdatePositiveMergesAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	existingID := interest.NewCoiID()
	existing := interest.PositiveCoi{
		ID:    existingID,
		Point: embedding.MustNew([]float32{1, 0, 0}),
		Stats: interest.Stats{ViewCount: 1, LastView: time.Now().Add(-time.Hour)},
	}

	rad := 10.0 * math.Pi / 180.0
	interactionPoint := embedding.MustNew([]float32{float32(math.Cos(rad)), float32(math.Sin(rad)), 0})
	now := time.Now()

	out, id, err := UpdatePositive(cfg, []interest.PositiveCoi{existing}, Interaction{Point: interactionPoint, ViewTime: 2 * time.Minute, Timestamp: now})
	if err != nil {
		t.Fatalf("UpdatePositive: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("expected merge to keep a single coi, got %d", len(out))
	}
	if id != existingID {
		t.Fatalf("expected merge into existing id %v, got %v", existingID, id)
	}
	if out[0].Stats.ViewCount != 2 {
		t.Fatalf("expected view count bumped to 2, got %d", out[0].Stats.ViewCount)
	}
	if !out[0].Stats.LastView.Equal(now) {
		t.Fatalf("expected LastView updated to now")
	}
}

// TestUpdatePositiveCreatesBelowThreshold grounds spec §8 scenario 5: an
// orthogonal interaction does not merge (sim = 0 < theta).
func TestUpdatePositiveCreatesBelowThreshold(t *testing.T) {
	cfg := DefaultConfig()
	existing := interest.PositiveCoi{ID: interest.NewCoiID(), Point: embedding.MustNew([]float32{1, 0, 0})}
	orthogonal := embedding.MustNew([]float32{0, 1, 0})

	out, id, err := UpdatePositive(cfg, []interest.PositiveCoi{existing}, Interaction{Point: orthogonal, Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("UpdatePositive: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected a new coi to be created, got %d total", len(out))
	}
	if id == existing.ID {
		t.Fatalf("expected a new id, got the existing one")
	}
}

func TestUpdatePositiveTieBreaksByLowestID(t *testing.T) {
	cfg := DefaultConfig()
	lower := interest.PositiveCoi{ID: "aaa", Point: embedding.MustNew([]float32{1, 0, 0})}
	higher := interest.PositiveCoi{ID: "zzz", Point: embedding.MustNew([]float32{1, 0, 0})}

	_, id, err := UpdatePositive(cfg, []interest.PositiveCoi{higher, lower}, Interaction{
		Point: embedding.MustNew([]float32{1, 0, 0}), Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdatePositive: %v", err)
	}
	if id != lower.ID {
		t.Fatalf("expected tie-break to pick lowest id %q, got %q", lower.ID, id)
	}
}

func TestUpdatePositiveClampsViewTime(t *testing.T) {
	cfg := DefaultConfig()
	out, _, err := UpdatePositive(cfg, nil, Interaction{
		Point:     embedding.MustNew([]float32{1, 0, 0}),
		ViewTime:  time.Hour,
		Timestamp: time.Now(),
	})
	if err != nil {
		t.Fatalf("UpdatePositive: %v", err)
	}
	if out[0].Stats.ViewTime != cfg.MaxViewTimePerInteraction {
		t.Fatalf("expected view time clamped to %v, got %v", cfg.MaxViewTimePerInteraction, out[0].Stats.ViewTime)
	}
}

func TestUpdateNegativeMergesAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	existingID := interest.NewCoiID()
	existing := interest.NegativeCoi{ID: existingID, Point: embedding.MustNew([]float32{1, 0, 0})}

	rad := 5.0 * math.Pi / 180.0
	point := embedding.MustNew([]float32{float32(math.Cos(rad)), float32(math.Sin(rad)), 0})

	out, id, err := UpdateNegative(cfg, []interest.NegativeCoi{existing}, point, time.Now())
	if err != nil {
		t.Fatalf("UpdateNegative: %v", err)
	}
	if len(out) != 1 || id != existingID {
		t.Fatalf("expected merge into existing negative coi")
	}
}

func TestOriginalCoisNotMutated(t *testing.T) {
	cfg := DefaultConfig()
	existingID := interest.NewCoiID()
	original := []interest.PositiveCoi{{ID: existingID, Point: embedding.MustNew([]float32{1, 0, 0}), Stats: interest.Stats{ViewCount: 1}}}

	_, _, err := UpdatePositive(cfg, original, Interaction{Point: embedding.MustNew([]float32{1, 0, 0}), Timestamp: time.Now()})
	if err != nil {
		t.Fatalf("UpdatePositive: %v", err)
	}
	if original[0].Stats.ViewCount != 1 {
		t.Fatalf("expected input slice to remain unmutated, got view count %d", original[0].Stats.ViewCount)
	}
}
