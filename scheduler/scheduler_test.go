package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingJob struct {
	kind string
	mu   *sync.Mutex
	runs *int
}

func (j countingJob) Kind() string { return j.kind }

func (j countingJob) Run(ctx context.Context, deps Deps) error {
	j.mu.Lock()
	*j.runs++
	j.mu.Unlock()
	return nil
}

func newTestScheduler(reg *Registry) *Scheduler {
	return New(reg, newMemoryStore(), func() Deps { return Deps{} }, NewLoggerFromEnv(), nil)
}

func TestSchedulerEnqueueOnceAndNextRun(t *testing.T) {
	reg := NewRegistry()
	s := newTestScheduler(reg)

	runAt := time.Now().Add(time.Hour)
	if err := s.EnqueueOnce("job-1", runAt, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next, ok := s.NextRun("job-1")
	if !ok {
		t.Fatal("expected job-1 to be scheduled")
	}
	if !next.Equal(runAt) {
		t.Fatalf("expected next run %v, got %v", runAt, next)
	}
}

func TestSchedulerDispatchesOneShotJob(t *testing.T) {
	var mu sync.Mutex
	runs := 0
	reg := NewRegistry()
	reg.Register("probe", func(map[string]any) (Job, error) {
		return countingJob{kind: "probe", mu: &mu, runs: &runs}, nil
	})
	s := newTestScheduler(reg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Stop(context.Background())

	s.timers.Upsert("probe-1", "probe", time.Now().Add(10*time.Millisecond), nil)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := runs
		mu.Unlock()
		if n >= 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expected one-shot job to run within deadline")
}

func TestSchedulerRegisterRecurrentUpsertsStoreRecord(t *testing.T) {
	reg := NewRegistry()
	s := newTestScheduler(reg)
	ctx := context.Background()

	if err := s.RegisterRecurrent(ctx, "fleet_metrics", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, ok, err := s.store.Get(ctx, "fleet_metrics")
	if err != nil || !ok {
		t.Fatalf("expected record present, got ok=%v err=%v", ok, err)
	}
	if !rec.Recurring || rec.IntervalSeconds != 60 {
		t.Fatalf("expected recurring record at 60s interval, got %#v", rec)
	}
}

func TestSchedulerStartIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	s := newTestScheduler(reg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Start(ctx, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Start(ctx, nil); err != nil {
		t.Fatalf("second Start should be a no-op, got error: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
