package repository

import (
	"context"
	"fmt"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/domain/lab"
	"github.com/cml-fleet/worker-engine/repository/docstore"
)

const labRecordsTable = "lab_records"

// LabRepository is the durable projection + event-publication boundary
// for the LabRecord secondary aggregate.
type LabRepository struct {
	col       *docstore.Collection[lab.State]
	publisher EventPublisher
}

// NewLabRepository binds a LabRepository to store and publisher.
func NewLabRepository(store *docstore.Store, publisher EventPublisher) *LabRepository {
	return &LabRepository{
		col:       docstore.NewCollection[lab.State](store, labRecordsTable),
		publisher: publisher,
	}
}

func compositeID(workerID, labID string) string { return fmt.Sprintf("%s/%s", workerID, labID) }

// Get fetches a single LabRecord by (worker_id, lab_id).
func (r *LabRepository) Get(ctx context.Context, workerID, labID string) (*lab.Record, error) {
	st, err := r.col.Get(ctx, compositeID(workerID, labID))
	if err != nil {
		if err == docstore.ErrNotFound {
			return nil, apperr.NewNotFound("lab_record", compositeID(workerID, labID))
		}
		return nil, apperr.NewInternal("lab_record", err)
	}
	return lab.Rehydrate(*st), nil
}

// ListByWorker returns every LabRecord for a worker.
func (r *LabRepository) ListByWorker(ctx context.Context, workerID string) ([]*lab.Record, error) {
	sts, err := r.col.ListByIndex2(ctx, workerID)
	if err != nil {
		return nil, apperr.NewInternal("lab_record", err)
	}
	out := make([]*lab.Record, 0, len(sts))
	for _, st := range sts {
		out = append(out, lab.Rehydrate(st))
	}
	return out, nil
}

// Upsert persists a LabRecord and publishes its pending events on success.
func (r *LabRepository) Upsert(ctx context.Context, rec *lab.Record) error {
	st := rec.State()
	id := compositeID(st.WorkerID, st.LabID)
	if err := r.col.Upsert(ctx, id, st, st.LabID, st.WorkerID); err != nil {
		return apperr.NewInternal("lab_record", err)
	}
	for _, e := range rec.DrainEvents() {
		_ = r.publisher.Publish(ctx, e)
	}
	return nil
}

// UpsertMany batches writes for a labs refresh, matching
// RefreshWorkerLabs's "batches writes with fallback to single-row on
// duplicate-key races": UpdateMany is unordered, so a duplicate-key
// collision on one row never blocks the others.
func (r *LabRepository) UpsertMany(ctx context.Context, recs []*lab.Record) error {
	if len(recs) == 0 {
		return nil
	}
	items := make([]docstore.Item[lab.State], 0, len(recs))
	for _, rec := range recs {
		st := rec.State()
		items = append(items, docstore.Item[lab.State]{
			ID: compositeID(st.WorkerID, st.LabID), Doc: st, Index1: st.LabID, Index2: st.WorkerID,
		})
	}
	if err := r.col.UpdateMany(ctx, items); err != nil {
		// fallback to single-row writes so one duplicate-key race does not
		// drop the rest of the batch.
		for _, rec := range recs {
			_ = r.Upsert(ctx, rec)
		}
		return nil
	}
	for _, rec := range recs {
		for _, e := range rec.DrainEvents() {
			_ = r.publisher.Publish(ctx, e)
		}
	}
	return nil
}

// RemoveOrphans deletes the LabRecords for workerID whose lab ids are no
// longer reported by the lab API.
func (r *LabRepository) RemoveOrphans(ctx context.Context, workerID string, orphanLabIDs []string) error {
	if len(orphanLabIDs) == 0 {
		return nil
	}
	ids := make([]string, len(orphanLabIDs))
	for i, labID := range orphanLabIDs {
		ids[i] = compositeID(workerID, labID)
	}
	if err := r.col.DeleteByIndex2AndIDs(ctx, workerID, ids); err != nil {
		return apperr.NewInternal("lab_record", err)
	}
	return nil
}

// Delete removes a single LabRecord.
func (r *LabRepository) Delete(ctx context.Context, workerID, labID string) error {
	if err := r.col.Delete(ctx, compositeID(workerID, labID)); err != nil {
		return apperr.NewInternal("lab_record", err)
	}
	return nil
}
