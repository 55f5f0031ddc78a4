package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExecutesEveryItem(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	var count int32
	errs := Run(context.Background(), items, 2, func(ctx context.Context, item int) error {
		atomic.AddInt32(&count, 1)
		return nil
	})
	if int(count) != len(items) {
		t.Fatalf("expected %d calls, got %d", len(items), count)
	}
	for i, err := range errs {
		if err != nil {
			t.Fatalf("item %d: unexpected error %v", i, err)
		}
	}
}

func TestRunPropagatesPerItemErrors(t *testing.T) {
	items := []int{1, 2, 3}
	boom := errors.New("boom")
	errs := Run(context.Background(), items, 3, func(ctx context.Context, item int) error {
		if item == 2 {
			return boom
		}
		return nil
	})
	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("expected items 1 and 3 to succeed, got %v", errs)
	}
	if errs[1] != boom {
		t.Fatalf("expected item 2 to fail with boom, got %v", errs[1])
	}
}

func TestRunRespectsConcurrencyLimit(t *testing.T) {
	items := make([]int, 10)
	var inFlight, maxInFlight int32
	Run(context.Background(), items, 3, func(ctx context.Context, item int) error {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			max := atomic.LoadInt32(&maxInFlight)
			if n <= max || atomic.CompareAndSwapInt32(&maxInFlight, max, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return nil
	})
	if maxInFlight > 3 {
		t.Fatalf("expected at most 3 concurrent calls, observed %d", maxInFlight)
	}
}

func TestRunEmptyItems(t *testing.T) {
	errs := Run(context.Background(), []int{}, 5, func(ctx context.Context, item int) error {
		t.Fatal("fn should not be called for empty items")
		return nil
	})
	if errs != nil {
		t.Fatalf("expected nil errs for empty items, got %v", errs)
	}
}

func TestRunCancelledContextShortCircuitsRemaining(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	items := []int{1, 2, 3}
	errs := Run(ctx, items, 1, func(ctx context.Context, item int) error {
		return nil
	})
	for i, err := range errs {
		if err == nil {
			t.Fatalf("item %d: expected context cancellation error", i)
		}
	}
}
