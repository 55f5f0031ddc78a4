package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/domain/lab"
)

// RefreshWorkerLabsResult reports the outcome of one labs refresh.
type RefreshWorkerLabsResult struct {
	LabsSeen int `json:"labs_seen"`
	Removed  int `json:"removed"`
}

// RefreshWorkerLabs fetches the worker's current lab ids from the lab
// HTTPS API, diffs them against the known LabRecord set, removes orphans,
// and creates/updates per-lab records. Per-lab failures
// log and continue; the command never fails because one lab could not be
// fetched.
func (s *Service) RefreshWorkerLabs(ctx context.Context, workerID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("refresh_worker_labs", start, err) }()

	agg, gerr := s.Workers.Get(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, false)
	}
	st := agg.State()
	if st.HTTPSEndpoint == "" {
		err = apperr.NewValidation("worker", "worker has no lab service endpoint")
		return fromErr(err, false)
	}

	client := s.LabAPI(st.HTTPSEndpoint)
	labIDs, lerr := client.ListLabs(ctx)
	if lerr != nil {
		err = apperr.NewUpstreamTransient("worker", "list labs failed", lerr)
		return fromErr(err, false)
	}

	existing, eerr := s.Labs.ListByWorker(ctx, workerID)
	if eerr != nil {
		err = eerr
		return fromErr(err, false)
	}
	known := make([]string, 0, len(existing))
	byID := make(map[string]*lab.Record, len(existing))
	for _, rec := range existing {
		_, labID := rec.ID()
		known = append(known, labID)
		byID[labID] = rec
	}

	orphans := lab.DiffOrphans(known, labIDs)
	if removeErr := s.Labs.RemoveOrphans(ctx, workerID, orphans); removeErr != nil {
		s.logWarn(ctx, "refresh_worker_labs: remove orphans failed", removeErr)
	}

	now := time.Now().UTC()
	var recs []*lab.Record
	for _, labID := range labIDs {
		details, derr := client.GetLab(ctx, labID)
		if derr != nil {
			s.logWarn(ctx, "refresh_worker_labs: get lab failed", derr)
			continue
		}
		snap := lab.Snapshot{
			Title: details.Title, Description: details.Description, Notes: details.Notes,
			LabState: details.State, OwnerUsername: details.OwnerUsername,
			NodeCount: details.NodeCount, LinkCount: details.LinkCount, Groups: details.Groups,
			CreatedAt: details.CreatedAt, ModifiedAt: details.ModifiedAt,
		}
		if rec, ok := byID[labID]; ok {
			rec.ApplyRefresh(snap, now)
			recs = append(recs, rec)
		} else {
			recs = append(recs, lab.Create(workerID, labID, snap, now))
		}
	}

	if err = s.Labs.UpsertMany(ctx, recs); err != nil {
		return fromErr(err, false)
	}

	return ok(RefreshWorkerLabsResult{LabsSeen: len(labIDs), Removed: len(orphans)})
}
