package commands

import (
	"context"
	"time"
)

// EnableIdleDetection toggles the aggregate's idle-detection flag on,
// idempotently.
func (s *Service) EnableIdleDetection(ctx context.Context, workerID string) (res Result) {
	return s.setIdleDetection(ctx, workerID, true)
}

// DisableIdleDetection toggles the aggregate's idle-detection flag off,
// idempotently.
func (s *Service) DisableIdleDetection(ctx context.Context, workerID string) (res Result) {
	return s.setIdleDetection(ctx, workerID, false)
}

func (s *Service) setIdleDetection(ctx context.Context, workerID string, enabled bool) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("set_idle_detection", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}

	agg.SetIdleDetectionEnabled(enabled)
	if err = s.Workers.Update(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	return ok(agg.State())
}
