package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

// StartWorker starts the cloud instance and records a manual resume.
// Already-Running is a no-op 200, not an error.
func (s *Service) StartWorker(ctx context.Context, workerID, requestedBy string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("start_worker", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}
	st := agg.State()
	if st.Status == worker.StatusRunning {
		return ok(st)
	}
	if st.Status == worker.StatusTerminated {
		err = apperr.NewValidation("worker", "cannot start a terminated worker")
		return fromErr(err, false)
	}

	if cerr := s.Cloud.StartInstance(ctx, st.Region, st.InstanceID); cerr != nil {
		err = apperr.NewUpstreamOperation("worker", "start instance failed", cerr)
		return fromErr(err, false)
	}
	agg.Resume("user_requested", requestedBy, false)

	if err = s.Workers.Update(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	return ok(agg.State())
}

// StopWorker stops the cloud instance, marks the worker Stopped and records
// a manual pause.
// Already-Stopped is a no-op 200.
func (s *Service) StopWorker(ctx context.Context, workerID, requestedBy string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("stop_worker", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}
	st := agg.State()
	if st.Status == worker.StatusStopped {
		return ok(st)
	}
	if st.Status == worker.StatusTerminated {
		err = apperr.NewValidation("worker", "cannot stop a terminated worker")
		return fromErr(err, false)
	}

	if cerr := s.Cloud.StopInstance(ctx, st.Region, st.InstanceID); cerr != nil {
		err = apperr.NewUpstreamOperation("worker", "stop instance failed", cerr)
		return fromErr(err, false)
	}
	agg.UpdateStatus(worker.StatusStopped)
	agg.Pause("user_requested", requestedBy, false)

	if err = s.Workers.Update(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	return ok(agg.State())
}
