package commands

import (
	"context"
	"time"
)

// TerminateWorker terminates the cloud instance (if requested) and marks
// the aggregate Terminated, keeping its DB record.
func (s *Service) TerminateWorker(ctx context.Context, workerID string, terminateInstance bool, requestedBy string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("terminate_worker", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}
	st := agg.State()

	if terminateInstance && st.InstanceID != "" {
		if cerr := s.Cloud.TerminateInstance(ctx, st.Region, st.InstanceID); cerr != nil {
			// Upstream-not-found proceeds locally; other
			// upstream errors still allow the local terminate to proceed,
			// since the worker record must not get stuck mid-teardown.
			s.logWarn(ctx, "terminate_worker: cloud terminate failed, proceeding locally", cerr)
		}
	}

	agg.Terminate(requestedBy)
	if err = s.Workers.Update(ctx, agg); err != nil {
		return fromErr(err, false)
	}
	return ok(agg.State())
}

// DeleteWorker terminates the instance (if requested), marks the aggregate
// Terminated, and removes its DB record.
func (s *Service) DeleteWorker(ctx context.Context, workerID string, terminateInstance bool, requestedBy string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("delete_worker", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}
	st := agg.State()

	if terminateInstance && st.InstanceID != "" {
		if cerr := s.Cloud.TerminateInstance(ctx, st.Region, st.InstanceID); cerr != nil {
			s.logWarn(ctx, "delete_worker: cloud terminate failed, proceeding locally", cerr)
		}
	}

	agg.Terminate(requestedBy)
	if err = s.Workers.Delete(ctx, workerID, agg); err != nil {
		return fromErr(err, false)
	}
	return ok(map[string]string{"worker_id": workerID})
}

func (s *Service) logWarn(ctx context.Context, msg string, err error) {
	if s.Log == nil {
		return
	}
	s.Log.WithError(err).WithContext(ctx).Warn(msg)
}
