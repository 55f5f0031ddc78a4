package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

// AutoPauseIdleWorker stops the cloud instance and records an automatic
// pause, driven by the activity detection job rather than a user request.
// Already-Stopped is a no-op 200.
func (s *Service) AutoPauseIdleWorker(ctx context.Context, workerID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("auto_pause_idle_worker", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}
	st := agg.State()
	if st.Status == worker.StatusStopped || st.Status == worker.StatusTerminated {
		return ok(st)
	}

	if cerr := s.Cloud.StopInstance(ctx, st.Region, st.InstanceID); cerr != nil {
		err = apperr.NewUpstreamOperation("worker", "stop instance failed", cerr)
		return fromErr(err, false)
	}
	agg.Pause("idle_timeout", "activity_detection_job", true)

	if err = s.Workers.Update(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	if s.Log != nil {
		s.Log.LogAudit(ctx, "auto_pause_idle_worker", workerID, "paused")
	}
	return ok(agg.State())
}
