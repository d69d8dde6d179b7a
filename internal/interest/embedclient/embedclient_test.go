package embedclient

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/interestengine/internal/interest/embedding"
)

type stubModel struct {
	calls   int32
	failing bool
}

func (s *stubModel) Embed(ctx context.Context, text string) (embedding.Embedding, error) {
	atomic.AddInt32(&s.calls, 1)
	if s.failing {
		return embedding.Embedding{}, errors.New("model unavailable")
	}
	return embedding.MustNew([]float32{1, 0, 0}), nil
}

func TestEmbedPassesThroughOnSuccess(t *testing.T) {
	m := &stubModel{}
	c := New(m, DefaultConfig(), nil)

	got, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got.Dim() != 3 {
		t.Fatalf("expected a 3-dim embedding, got %d", got.Dim())
	}
}

func TestEmbedTripsCircuitAfterRepeatedFailures(t *testing.T) {
	m := &stubModel{failing: true}
	cfg := Config{Name: "test", MaxRequests: 1, MinRequests: 2, FailureRatio: 0.5}
	c := New(m, cfg, nil)

	var lastErr error
	for i := 0; i < 5; i++ {
		_, lastErr = c.Embed(context.Background(), "x")
	}
	if !errors.Is(lastErr, ErrCircuitOpen) {
		t.Fatalf("expected circuit to open after repeated failures, got %v", lastErr)
	}
}

func TestStateChangeCallbackFires(t *testing.T) {
	m := &stubModel{failing: true}
	cfg := Config{Name: "test", MaxRequests: 1, MinRequests: 1, FailureRatio: 0.1}

	var fired int32
	c := New(m, cfg, func(name string, from, to gobreaker.State) {
		atomic.AddInt32(&fired, 1)
	})

	for i := 0; i < 5; i++ {
		_, _ = c.Embed(context.Background(), "x")
	}
	if atomic.LoadInt32(&fired) == 0 {
		t.Fatal("expected at least one state transition callback")
	}
}
