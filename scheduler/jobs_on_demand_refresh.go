package scheduler

import "context"

// KindOnDemandRefresh names the scheduled one-shot job enqueued by
// RequestWorkerDataRefresh, with job id "on_demand_refresh_<worker_id>".
const KindOnDemandRefresh = "on_demand_refresh"

// OnDemandRefreshJobID builds the job id for a given worker, matching
// commands.RequestWorkerDataRefresh's own id construction.
func OnDemandRefreshJobID(workerID string) string {
	return "on_demand_refresh_" + workerID
}

// OnDemandRefreshJob is the single-worker refresh fired ~1s after
// RequestWorkerDataRefresh enqueues it.
type OnDemandRefreshJob struct {
	WorkerID string
}

func (OnDemandRefreshJob) Kind() string { return KindOnDemandRefresh }

func (j OnDemandRefreshJob) Run(ctx context.Context, deps Deps) error {
	res := deps.Commands.RefreshWorkerMetrics(ctx, j.WorkerID)
	if res.StatusCode >= 400 {
		return errorFromResult(res)
	}
	return nil
}
