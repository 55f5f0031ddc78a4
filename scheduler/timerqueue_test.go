package scheduler

import (
	"testing"
	"time"
)

func TestTimerQueuePopDueOrdersByTime(t *testing.T) {
	q := newTimerQueue()
	base := time.Now()

	q.Upsert("c", "k", base.Add(3*time.Second), nil)
	q.Upsert("a", "k", base.Add(1*time.Second), nil)
	q.Upsert("b", "k", base.Add(2*time.Second), nil)

	due := q.PopDue(base.Add(10 * time.Second))
	if len(due) != 3 {
		t.Fatalf("expected 3 due entries, got %d", len(due))
	}
	order := []string{due[0].id, due[1].id, due[2].id}
	want := []string{"a", "b", "c"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, order)
		}
	}
}

func TestTimerQueuePopDueOnlyReturnsPastEntries(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()
	q.Upsert("future", "k", now.Add(time.Hour), nil)

	due := q.PopDue(now)
	if len(due) != 0 {
		t.Fatalf("expected no due entries, got %d", len(due))
	}
	if _, ok := q.Peek("future"); !ok {
		t.Fatal("future entry should still be pending")
	}
}

func TestTimerQueueUpsertReplacesExisting(t *testing.T) {
	q := newTimerQueue()
	now := time.Now()
	q.Upsert("x", "k", now.Add(time.Hour), map[string]any{"v": 1})
	q.Upsert("x", "k2", now.Add(time.Minute), map[string]any{"v": 2})

	if q.heap.Len() != 1 {
		t.Fatalf("expected single entry after replace, got %d", q.heap.Len())
	}
	runAt, ok := q.Peek("x")
	if !ok {
		t.Fatal("expected entry x to be pending")
	}
	if !runAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected replaced runAt, got %v", runAt)
	}
}

func TestTimerQueueNextWake(t *testing.T) {
	q := newTimerQueue()
	if _, ok := q.NextWake(); ok {
		t.Fatal("expected no next wake on empty queue")
	}
	soon := time.Now().Add(time.Second)
	q.Upsert("a", "k", soon, nil)
	next, ok := q.NextWake()
	if !ok || !next.Equal(soon) {
		t.Fatalf("expected next wake %v, got %v (ok=%v)", soon, next, ok)
	}
}
