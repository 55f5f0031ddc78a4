package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerClosedState(t *testing.T) {
	cb := New(DefaultConfig())
	if cb.State() != StateClosed {
		t.Fatalf("expected closed state, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed state after success, got %s", cb.State())
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := New(Config{MaxFailures: 3, Timeout: time.Minute, HalfOpenMax: 1})
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error { return boom })
	}

	if cb.State() != StateOpen {
		t.Fatalf("expected open state after 3 consecutive failures, got %s", cb.State())
	}

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerHalfOpenAfterTimeout(t *testing.T) {
	cb := New(Config{MaxFailures: 1, Timeout: 10 * time.Millisecond, HalfOpenMax: 1})
	boom := errors.New("boom")

	_ = cb.Execute(context.Background(), func(context.Context) error { return boom })
	if cb.State() != StateOpen {
		t.Fatalf("expected open state, got %s", cb.State())
	}

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(context.Background(), func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("expected probe call to succeed, got %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("expected closed state after successful probe, got %s", cb.State())
	}
}

func TestCircuitBreakerExecutePropagatesCanceledContext(t *testing.T) {
	cb := New(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if err == nil {
		t.Fatal("expected error for canceled context")
	}
	if called {
		t.Fatal("fn should not run once ctx is already canceled")
	}
}

func TestRetrySucceedsWithoutRetrying(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 call, got %d", calls)
	}
}

func TestRetryEventualSuccess(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
	calls := 0
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
	calls := 0
	permanent := errors.New("permanent")
	err := Retry(context.Background(), cfg, func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected exactly 3 attempts, got %d", calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := RetryConfig{MaxAttempts: 10, InitialDelay: 5 * time.Millisecond, MaxDelay: 20 * time.Millisecond, Multiplier: 2}

	calls := 0
	err := Retry(ctx, cfg, func(context.Context) error {
		calls++
		if calls == 1 {
			cancel()
		}
		return errors.New("still failing")
	})
	if err == nil {
		t.Fatal("expected error after context cancellation")
	}
	if calls > 2 {
		t.Fatalf("expected retry to stop shortly after cancel, got %d calls", calls)
	}
}
