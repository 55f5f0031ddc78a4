package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStoreUpsertGetDelete(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	rec := Record{ID: "j1", Kind: "fleet_metrics", Recurring: true}
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok, err := s.Get(ctx, "j1")
	if err != nil || !ok {
		t.Fatalf("expected record present, got ok=%v err=%v", ok, err)
	}
	if got.Kind != "fleet_metrics" {
		t.Fatalf("expected kind fleet_metrics, got %s", got.Kind)
	}

	if err := s.Delete(ctx, "j1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "j1"); ok {
		t.Fatal("expected record gone after delete")
	}
}

func TestMemoryStoreTryLeaseExclusive(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	ok1, err := s.TryLease(ctx, "j1", time.Minute)
	if err != nil || !ok1 {
		t.Fatalf("expected first lease to succeed, got ok=%v err=%v", ok1, err)
	}

	ok2, err := s.TryLease(ctx, "j1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok2 {
		t.Fatal("expected second lease to fail while first is held")
	}
}

func TestMemoryStoreTryLeaseExpires(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()

	if ok, err := s.TryLease(ctx, "j1", -time.Second); err != nil || !ok {
		t.Fatalf("expected first lease to succeed, got ok=%v err=%v", ok, err)
	}

	ok, err := s.TryLease(ctx, "j1", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected lease to be reacquirable after expiry")
	}
}

func TestMemoryStoreList(t *testing.T) {
	s := newMemoryStore()
	ctx := context.Background()
	s.Upsert(ctx, Record{ID: "a", Kind: "k1"})
	s.Upsert(ctx, Record{ID: "b", Kind: "k2"})

	records, err := s.List(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
}
