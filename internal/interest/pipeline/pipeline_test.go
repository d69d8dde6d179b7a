package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestPublishDeliversToHandler(t *testing.T) {
	bus, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	received := make(chan Event, 1)
	bus.AddHandler("test-consumer", func(ctx context.Context, ev Event) error {
		received <- ev
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = bus.Run(ctx)
	}()

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router never started")
	}

	want := Event{Tenant: "acme", User: "u1", Sentiment: SentimentPositive, Point: []float32{1, 0, 0}, ViewTime: int64(30 * time.Second)}
	if err := bus.Publish(want); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case got := <-received:
		if got.Tenant != want.Tenant || got.User != want.User || got.Sentiment != want.Sentiment {
			t.Fatalf("handler got %+v, want %+v", got, want)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("handler never received the published event")
	}

	cancel()
	wg.Wait()
}

func TestCloseStopsRun(t *testing.T) {
	bus, err := New(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	bus.AddHandler("test-consumer", func(ctx context.Context, ev Event) error { return nil })

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- bus.Run(ctx) }()

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router never started")
	}

	if err := bus.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run never returned after Close")
	}
}
