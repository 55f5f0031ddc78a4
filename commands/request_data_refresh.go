package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/cml-fleet/worker-engine/domain/worker"
)

// FleetMetricsJobID is the scheduler job id the decision engine checks for
// an imminent fire.
const FleetMetricsJobID = "fleet_metrics"

// oneShotWindow is how close a pending one-shot must be to count as
// "already scheduled".
const oneShotWindow = 30 * time.Second

// RequestDataRefreshResult is the decision outcome returned to the caller.
type RequestDataRefreshResult struct {
	Scheduled               bool    `json:"scheduled"`
	Reason                  string  `json:"reason,omitempty"`
	JobID                   string  `json:"job_id,omitempty"`
	ETASeconds              int     `json:"eta_seconds,omitempty"`
	RetryAfterSeconds       int     `json:"retry_after_seconds,omitempty"`
	SecondsUntilBackgroundJob float64 `json:"seconds_until_background_job,omitempty"`
	ExistingJobInSeconds    float64 `json:"existing_job_in_seconds,omitempty"`
	WorkerStatus            string  `json:"worker_status,omitempty"`
}

// RequestWorkerDataRefresh runs the on-demand refresh decision engine:
// not found → 400; not running → skip; rate limited → skip with
// retry_after; a fleet-metrics run due within T_upcoming → skip;
// an existing pending one-shot within 30s → skip; otherwise enqueue a
// one-shot at now+1s and register request_data_refresh.
func (s *Service) RequestWorkerDataRefresh(ctx context.Context, workerID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("request_worker_data_refresh", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}
	st := agg.State()

	if st.Status != worker.StatusRunning {
		reason := fmt.Sprintf("not_running (status: %s)", st.Status)
		return s.skipRefresh(ctx, agg, reason, RequestDataRefreshResult{
			Scheduled: false, Reason: "not_running", WorkerStatus: string(st.Status),
		})
	}

	if !s.Throttle.CanRefresh(workerID) {
		retryAfter := s.Throttle.TimeUntilNext(workerID)
		return s.skipRefresh(ctx, agg, "rate_limited", RequestDataRefreshResult{
			Scheduled: false, Reason: "rate_limited", RetryAfterSeconds: int(retryAfter.Seconds()),
		})
	}

	threshold := time.Duration(s.Config.Monitoring.UpcomingJobThresholdSeconds) * time.Second
	if nextFire, scheduled := s.Scheduler.NextRun(FleetMetricsJobID); scheduled {
		until := time.Until(nextFire)
		if until > 0 && until <= threshold {
			return s.skipRefresh(ctx, agg, "background_job_imminent", RequestDataRefreshResult{
				Scheduled: false, Reason: "background_job_imminent", SecondsUntilBackgroundJob: until.Seconds(),
			})
		}
	}

	jobID := fmt.Sprintf("on_demand_refresh_%s", workerID)
	if nextFire, scheduled := s.Scheduler.NextRun(jobID); scheduled {
		until := time.Until(nextFire)
		if until > 0 && until <= oneShotWindow {
			return s.skipRefresh(ctx, agg, "already_scheduled", RequestDataRefreshResult{
				Scheduled: false, Reason: "already_scheduled", ExistingJobInSeconds: until.Seconds(),
			})
		}
	}

	runAt := time.Now().UTC().Add(time.Second)
	if err = s.Scheduler.EnqueueOnce(jobID, runAt, map[string]any{"worker_id": workerID}); err != nil {
		return fromErr(err, false)
	}

	s.Throttle.Record(workerID)
	agg.RequestDataRefresh(time.Now().UTC(), "user")
	if err = s.Workers.Update(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	if s.Stats != nil {
		s.Stats.RecordRefreshDecision(true, "")
	}

	return ok(RequestDataRefreshResult{Scheduled: true, JobID: jobID, ETASeconds: 1})
}

func (s *Service) skipRefresh(ctx context.Context, agg *worker.Aggregate, reason string, result RequestDataRefreshResult) Result {
	agg.SkipDataRefresh(reason)
	_ = s.Workers.Update(ctx, agg)
	if s.Stats != nil {
		s.Stats.RecordRefreshDecision(false, reason)
	}
	if s.Log != nil {
		s.Log.LogRefreshDecision(ctx, agg.ID(), false, reason)
	}
	return ok(result)
}
