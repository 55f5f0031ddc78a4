package scheduler

import (
	"context"

	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/cml-fleet/worker-engine/internal/workerpool"
)

// KindActivityDetection names the recurrent idle-worker auto-pause job.
const KindActivityDetection = "activity_detection"

// ActivityDetectionJob pauses every Running, idle-detection-enabled
// worker that IsIdle reports as idle, bounded by
// IdleDetection.Concurrency.
type ActivityDetectionJob struct{}

func (ActivityDetectionJob) Kind() string { return KindActivityDetection }

func (ActivityDetectionJob) Run(ctx context.Context, deps Deps) error {
	idle, err := deps.Workers.GetIdle(ctx, deps.Config.IdleDetection.IdleThresholdMinutes)
	if err != nil {
		return err
	}

	running := idle[:0]
	for _, agg := range idle {
		if agg.State().Status == worker.StatusRunning {
			running = append(running, agg)
		}
	}

	limit := deps.Config.IdleDetection.Concurrency
	workerpool.Run(ctx, running, limit, func(ctx context.Context, agg *worker.Aggregate) error {
		res := deps.Commands.AutoPauseIdleWorker(ctx, agg.ID())
		if res.StatusCode >= 400 {
			return errorFromResult(res)
		}
		return nil
	})
	return nil
}
