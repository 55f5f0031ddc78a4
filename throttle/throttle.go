// Package throttle implements the Refresh Throttle: a
// per-worker minimum interval between user-initiated data refreshes.
// Background-job refreshes never consult or record it. Data is
// process-local: one golang.org/x/time/rate.Limiter per worker id.
package throttle

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMinInterval is the default minimum interval between
// user-initiated refreshes of the same worker.
const DefaultMinInterval = 10 * time.Second

// Throttle tracks, per worker id, the minimum interval since the last
// recorded user-initiated refresh.
type Throttle struct {
	mu          sync.RWMutex
	minInterval time.Duration
	limiters    map[string]*rate.Limiter
}

// New constructs a Throttle with the given minimum interval between
// refreshes of any single worker. A non-positive interval falls back to
// DefaultMinInterval.
func New(minInterval time.Duration) *Throttle {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Throttle{
		minInterval: minInterval,
		limiters:    make(map[string]*rate.Limiter),
	}
}

func (t *Throttle) limiterFor(workerID string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[workerID]
	if !ok {
		// Burst of 1: exactly one refresh permitted per minInterval window,
		// starting full so the first-ever call always succeeds.
		l = rate.NewLimiter(rate.Every(t.minInterval), 1)
		t.limiters[workerID] = l
	}
	return l
}

// CanRefresh peeks whether worker_id may refresh right now, without
// consuming the token.
func (t *Throttle) CanRefresh(workerID string) bool {
	l := t.limiterFor(workerID)
	return l.TokensAt(time.Now()) >= 1
}

// TimeUntilNext returns the time remaining before the next refresh would
// be permitted, zero if one is permitted now.
func (t *Throttle) TimeUntilNext(workerID string) time.Duration {
	l := t.limiterFor(workerID)
	tokens := l.TokensAt(time.Now())
	if tokens >= 1 {
		return 0
	}
	return time.Duration((1 - tokens) * float64(t.minInterval))
}

// Record consumes the worker's token. RequestWorkerDataRefresh calls it
// when it schedules the on-demand refresh, before that refresh has run,
// so a refresh that later fails still counts. Background-job refreshes do
// not call it.
func (t *Throttle) Record(workerID string) {
	l := t.limiterFor(workerID)
	l.AllowN(time.Now(), 1)
}
