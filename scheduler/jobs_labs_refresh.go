package scheduler

import (
	"context"

	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/cml-fleet/worker-engine/internal/workerpool"
)

// KindLabsRefresh names the recurrent fleet-wide lab-record refresh job.
const KindLabsRefresh = "labs_refresh"

// LabsRefreshJob refreshes lab records for every non-terminated worker,
// bounded by Monitoring.LabsRefreshConcurrency.
type LabsRefreshJob struct{}

func (LabsRefreshJob) Kind() string { return KindLabsRefresh }

func (LabsRefreshJob) Run(ctx context.Context, deps Deps) error {
	workers, err := deps.Workers.GetActive(ctx)
	if err != nil {
		return err
	}

	limit := deps.Config.Monitoring.LabsRefreshConcurrency
	workerpool.Run(ctx, workers, limit, func(ctx context.Context, agg *worker.Aggregate) error {
		st := agg.State()
		if st.Status != worker.StatusRunning || st.HTTPSEndpoint == "" {
			return nil
		}
		res := deps.Commands.RefreshWorkerLabs(ctx, agg.ID())
		if res.StatusCode >= 400 {
			return errorFromResult(res)
		}
		return nil
	})
	return nil
}
