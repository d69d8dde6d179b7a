package relevance

import (
	"math"
	"testing"
	"time"

	"github.com/tomtom215/interestengine/internal/interest"
	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

func TestScoreZeroViewCount(t *testing.T) {
	cfg := DefaultConfig()
	coi := interest.PositiveCoi{Point: embedding.MustNew([]float32{1, 0, 0})}
	if s := Score(cfg, coi, time.Now()); s != 0 {
		t.Fatalf("expected 0 for never-viewed coi, got %v", s)
	}
}

func TestScoreDecaysWithAge(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	recent := interest.PositiveCoi{
		Point: embedding.MustNew([]float32{1, 0, 0}),
		Stats: interest.Stats{ViewCount: 5, ViewTime: 10 * time.Minute, LastView: now},
	}
	old := recent
	old.Stats.LastView = now.Add(-60 * 24 * time.Hour)

	recentScore := Score(cfg, recent, now)
	oldScore := Score(cfg, old, now)
	if oldScore >= recentScore {
		t.Fatalf("expected older coi to score lower: old=%v recent=%v", oldScore, recentScore)
	}
}

func TestScoreClampsFutureLastView(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	coi := interest.PositiveCoi{
		Point: embedding.MustNew([]float32{1, 0, 0}),
		Stats: interest.Stats{ViewCount: 2, ViewTime: time.Minute, LastView: now.Add(time.Hour)},
	}
	s := Score(cfg, coi, now)
	noDecay := Score(cfg, interest.PositiveCoi{
		Point: coi.Point,
		Stats: interest.Stats{ViewCount: 2, ViewTime: time.Minute, LastView: now},
	}, now)
	if math.Abs(s-noDecay) > 1e-9 {
		t.Fatalf("expected future LastView to clamp age to 0 (score=%v), got %v", noDecay, s)
	}
}

func TestScoreIntensityMonotonicInViewTime(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	base := interest.PositiveCoi{Point: embedding.MustNew([]float32{1, 0, 0}), Stats: interest.Stats{ViewCount: 1, ViewTime: time.Minute, LastView: now}}
	more := base
	more.Stats.ViewTime = 10 * time.Minute

	if Score(cfg, more, now) <= Score(cfg, base, now) {
		t.Fatalf("expected higher view time to score higher")
	}
}

func TestRankOrdersDescending(t *testing.T) {
	cfg := DefaultConfig()
	now := time.Now()
	low := interest.PositiveCoi{ID: "low", Point: embedding.MustNew([]float32{1, 0, 0}), Stats: interest.Stats{ViewCount: 1, ViewTime: time.Second, LastView: now}}
	high := interest.PositiveCoi{ID: "high", Point: embedding.MustNew([]float32{0, 1, 0}), Stats: interest.Stats{ViewCount: 10, ViewTime: time.Hour, LastView: now}}

	order := Rank(cfg, []interest.PositiveCoi{low, high}, now)
	if order[0] != 1 {
		t.Fatalf("expected higher-relevance coi (index 1) ranked first, got order %v", order)
	}
}
