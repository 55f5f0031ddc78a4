// Package scheduler implements the persistent, time-driven job executor:
// recurrent jobs (fleet metrics, labs refresh, activity detection,
// auto-import) on robfig/cron/v3, plus a one-shot timer queue for
// on-demand single-worker refreshes that cron has no native primitive
// for. Dispatch logs through go.uber.org/zap rather than the
// application-wide logrus logger, since this path runs at every tick
// regardless of traffic.
package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cml-fleet/worker-engine/internal/metrics"
)

// RecurrentSpec is one of the four always-registered recurrent jobs.
type RecurrentSpec struct {
	Kind     string
	Interval time.Duration
}

// Scheduler owns cron-based recurrent dispatch, the one-shot timer queue,
// and persistence/leasing through a Store. It implements
// commands.JobScheduler (NextRun, EnqueueOnce) so command handlers can
// query/enqueue without importing this package directly.
type Scheduler struct {
	registry *Registry
	store    Store
	depsFn   func() Deps
	log      *zap.SugaredLogger
	stats    *metrics.Metrics

	cronRunner *cron.Cron
	timers     *timerQueue

	mu          sync.Mutex
	running     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	cronEntries map[string]cron.EntryID
	intervals   map[string]time.Duration
}

// New constructs a Scheduler. depsFn is called fresh for every job
// execution so Deps is never captured/serialized alongside a Record.
// stats may be nil (tests commonly skip metrics wiring).
func New(registry *Registry, store Store, depsFn func() Deps, log *zap.SugaredLogger, stats *metrics.Metrics) *Scheduler {
	if log == nil {
		log = NewLoggerFromEnv()
	}
	return &Scheduler{
		registry:    registry,
		store:       store,
		depsFn:      depsFn,
		log:         log,
		stats:       stats,
		cronRunner:  cron.New(),
		timers:      newTimerQueue(),
		cronEntries: make(map[string]cron.EntryID),
		intervals:   make(map[string]time.Duration),
	}
}

// NewLoggerFromEnv builds the dispatcher's zap logger, defaulting to a
// production (JSON) config, or a development config when
// WORKER_ENGINE_ENV=development.
func NewLoggerFromEnv() *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if os.Getenv("WORKER_ENGINE_ENV") == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		logger = zap.NewNop()
	}
	return logger.Sugar()
}

// RegisterRecurrent schedules a recurrent job kind at the given interval,
// upserting its Record so a restart recognizes it under the same stable
// id (the kind name) instead of duplicating it.
func (s *Scheduler) RegisterRecurrent(ctx context.Context, kind string, interval time.Duration) error {
	s.mu.Lock()
	s.intervals[kind] = interval
	s.mu.Unlock()

	return s.store.Upsert(ctx, Record{
		ID:              kind,
		Kind:            kind,
		IntervalSeconds: int(interval.Seconds()),
		Recurring:       true,
	})
}

// NextRun reports jobID's next fire time: for a recurrent kind, the
// cron entry's next tick; for a one-shot id, the timer queue's pending
// entry.
func (s *Scheduler) NextRun(jobID string) (time.Time, bool) {
	s.mu.Lock()
	entryID, isRecurrent := s.cronEntries[jobID]
	s.mu.Unlock()
	if isRecurrent {
		entry := s.cronRunner.Entry(entryID)
		if entry.ID == 0 {
			return time.Time{}, false
		}
		return entry.Next, true
	}
	return s.timers.Peek(jobID)
}

// EnqueueOnce schedules a one-shot run of jobID at runAt, replacing any
// existing one-shot of the same id. Idempotency (skip if already
// scheduled within the dedup window) is the caller's responsibility
// (RequestWorkerDataRefresh checks NextRun first); this call always wins.
func (s *Scheduler) EnqueueOnce(jobID string, runAt time.Time, payload map[string]any) error {
	s.timers.Upsert(jobID, KindOnDemandRefresh, runAt, payload)
	return s.store.Upsert(context.Background(), Record{
		ID:      jobID,
		Kind:    KindOnDemandRefresh,
		Payload: payload,
		RunAt:   runAt,
	})
}

// Start registers the four required recurrent jobs, rehydrates any
// pending one-shot records from the store, and begins dispatching.
func (s *Scheduler) Start(ctx context.Context, recurrent []RecurrentSpec) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	for _, spec := range recurrent {
		if err := s.RegisterRecurrent(runCtx, spec.Kind, spec.Interval); err != nil {
			return err
		}
		kind := spec.Kind
		entryID, err := s.cronRunner.AddFunc(everyExpr(spec.Interval), func() {
			s.dispatchRecurrent(runCtx, kind)
		})
		if err != nil {
			return err
		}
		s.mu.Lock()
		s.cronEntries[kind] = entryID
		s.mu.Unlock()
	}

	if records, err := s.store.List(ctx); err == nil {
		for _, rec := range records {
			if rec.Recurring || rec.RunAt.IsZero() {
				continue
			}
			s.timers.Upsert(rec.ID, rec.Kind, rec.RunAt, rec.Payload)
		}
	}

	s.cronRunner.Start()

	s.wg.Add(1)
	go s.runOneShotLoop(runCtx)

	s.log.Infow("scheduler started", "recurrent_jobs", len(recurrent))
	return nil
}

// Stop cancels the one-shot loop and stops cron dispatch, waiting up to
// ctx's deadline for in-flight jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	cancel := s.cancel
	s.running = false
	s.mu.Unlock()

	cronStopCtx := s.cronRunner.Stop()
	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.wg.Wait()
		<-cronStopCtx.Done()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.log.Info("scheduler stopped")
	return nil
}

func (s *Scheduler) runOneShotLoop(ctx context.Context) {
	defer s.wg.Done()
	for {
		wait := time.Second
		if next, ok := s.timers.NextWake(); ok {
			if d := time.Until(next); d > 0 {
				wait = d
			} else {
				wait = 0
			}
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		case <-s.timers.wake:
			timer.Stop()
		}

		for _, e := range s.timers.PopDue(time.Now()) {
			s.dispatchOneShot(ctx, e)
		}
	}
}

func (s *Scheduler) dispatchRecurrent(ctx context.Context, kind string) {
	s.mu.Lock()
	interval := s.intervals[kind]
	s.mu.Unlock()

	leased, err := s.store.TryLease(ctx, kind, interval)
	if err != nil {
		s.log.Errorw("lease acquisition failed", "kind", kind, "error", err)
		return
	}
	if !leased {
		s.log.Debugw("recurrent job skipped, leased elsewhere", "kind", kind)
		return
	}
	s.runJob(ctx, kind, kind, nil)
}

func (s *Scheduler) dispatchOneShot(ctx context.Context, e *timerEntry) {
	_ = s.store.Delete(ctx, e.id)
	s.runJob(ctx, e.id, e.kind, e.payload)
}

func (s *Scheduler) runJob(ctx context.Context, jobID, kind string, payload map[string]any) {
	job, err := s.registry.Build(kind, payload)
	if err != nil {
		s.log.Errorw("job kind unresolvable, skipping", "job_id", jobID, "kind", kind, "error", err)
		return
	}

	if s.stats != nil {
		s.stats.JobsInFlight.WithLabelValues(kind).Inc()
		defer s.stats.JobsInFlight.WithLabelValues(kind).Dec()
	}

	start := time.Now()
	s.log.Infow("job dispatch starting", "job_id", jobID, "kind", kind)
	runErr := job.Run(ctx, s.depsFn())
	duration := time.Since(start)

	status := "ok"
	if runErr != nil {
		status = "error"
		s.log.Errorw("job run failed", "job_id", jobID, "kind", kind, "duration_ms", duration.Milliseconds(), "error", runErr)
	} else {
		s.log.Infow("job run completed", "job_id", jobID, "kind", kind, "duration_ms", duration.Milliseconds())
	}
	if s.stats != nil {
		s.stats.RecordJobExecution(kind, status, duration)
	}
}

// everyExpr renders a cron "@every" expression for an interval,
// robfig/cron's documented way to express a fixed-interval recurrence
// without a calendar-based cron field grammar.
func everyExpr(interval time.Duration) string {
	return "@every " + interval.String()
}
