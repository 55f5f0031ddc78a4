package scheduler

import (
	"context"

	"github.com/cml-fleet/worker-engine/commands"
	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/cml-fleet/worker-engine/internal/workerpool"
)

// KindFleetMetrics names the recurrent fleet-wide metrics job. It reuses
// commands.FleetMetricsJobID so the decision engine's imminent-job check
// in RequestWorkerDataRefresh and the scheduler's own registration agree
// on a single job id.
const KindFleetMetrics = commands.FleetMetricsJobID

// FleetMetricsJob refreshes every non-terminated worker's cloud/resource
// metrics, bounded by Monitoring.FleetJobConcurrency concurrent workers.
// RefreshWorkerMetrics itself triggers a labs refresh when the worker is
// Running with a Ready lab service, and persists its own updates.
type FleetMetricsJob struct{}

func (FleetMetricsJob) Kind() string { return KindFleetMetrics }

func (FleetMetricsJob) Run(ctx context.Context, deps Deps) error {
	workers, err := deps.Workers.GetActive(ctx)
	if err != nil {
		return err
	}

	limit := deps.Config.Monitoring.FleetJobConcurrency
	workerpool.Run(ctx, workers, limit, func(ctx context.Context, agg *worker.Aggregate) error {
		res := deps.Commands.RefreshWorkerMetrics(ctx, agg.ID())
		if res.StatusCode >= 400 {
			return errorFromResult(res)
		}
		return nil
	})
	return nil
}
