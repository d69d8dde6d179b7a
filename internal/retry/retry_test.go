package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastConfig() Config {
	return Config{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		MaxDelay:       5 * time.Millisecond,
		Multiplier:     2,
		JitterFraction: 0,
		RatePerSecond:  1000,
		Burst:          1000,
	}
}

func TestDoSucceedsWithoutRetryOnFirstSuccess(t *testing.T) {
	r := New(fastConfig())
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestDoRetriesTransientThenSucceeds(t *testing.T) {
	r := New(fastConfig())
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("backend hiccup: %w", Transient)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestDoAbortsImmediatelyOnNonTransientError(t *testing.T) {
	r := New(fastConfig())
	wantErr := errors.New("invalid input")
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wantErr, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call for a non-transient error, got %d", calls)
	}
}

func TestDoExhaustsMaxAttempts(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 3
	r := New(cfg)
	calls := 0
	err := r.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fmt.Errorf("still down: %w", Transient)
	})
	if !errors.Is(err, Transient) {
		t.Fatalf("expected final error to still wrap Transient, got %v", err)
	}
	if calls != cfg.MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", cfg.MaxAttempts, calls)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	cfg := fastConfig()
	cfg.BaseDelay = 50 * time.Millisecond
	cfg.MaxAttempts = 5
	r := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := r.Do(ctx, func(ctx context.Context) error {
		calls++
		return fmt.Errorf("down: %w", Transient)
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
