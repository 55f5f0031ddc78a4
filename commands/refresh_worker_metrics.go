package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/domain/worker"
)

// RefreshWorkerMetrics invokes the Metrics Service for one worker, then
// (when the worker is Running and its lab service is Ready) triggers a
// labs refresh, persisting the result either way.
func (s *Service) RefreshWorkerMetrics(ctx context.Context, workerID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("refresh_worker_metrics", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}

	result := s.Metrics.CollectWorkerMetrics(ctx, agg, true)

	if err = s.Workers.Update(ctx, agg); err != nil {
		return fromErr(err, false)
	}

	st := agg.State()
	if st.Status == worker.StatusRunning && st.Ready {
		if labRes := s.RefreshWorkerLabs(ctx, workerID); labRes.StatusCode >= 400 {
			s.logWarn(ctx, "refresh_worker_metrics: labs refresh failed", errorFromDetail(labRes.Detail))
		}
	}

	return ok(result)
}

type detailError string

func (e detailError) Error() string { return string(e) }

func errorFromDetail(detail string) error { return detailError(detail) }
