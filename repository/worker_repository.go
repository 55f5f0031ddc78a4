// Package repository implements the Worker Repository and Lab Repository
// collaborators: durable projection of an aggregate plus publication of
// its pending events after a successful persist, backed by
// repository/docstore.
package repository

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/cml-fleet/worker-engine/repository/docstore"
)

const workersTable = "workers"

// WorkerRepository is the durable projection + event-publication boundary
// for the Worker Aggregate.
type WorkerRepository struct {
	col       *docstore.Collection[worker.State]
	publisher EventPublisher
}

// NewWorkerRepository binds a WorkerRepository to store and publisher.
func NewWorkerRepository(store *docstore.Store, publisher EventPublisher) *WorkerRepository {
	return &WorkerRepository{
		col:       docstore.NewCollection[worker.State](store, workersTable),
		publisher: publisher,
	}
}

// Get returns the current projected snapshot, rehydrated into an
// Aggregate.
func (r *WorkerRepository) Get(ctx context.Context, id string) (*worker.Aggregate, error) {
	st, err := r.col.Get(ctx, id)
	if err != nil {
		if err == docstore.ErrNotFound {
			return nil, apperr.NewNotFound("worker", id)
		}
		return nil, apperr.NewInternal("worker", err)
	}
	return worker.Rehydrate(*st), nil
}

// GetByCloudInstanceID performs the unique secondary-index lookup.
func (r *WorkerRepository) GetByCloudInstanceID(ctx context.Context, instanceID string) (*worker.Aggregate, error) {
	st, err := r.col.GetByIndex1(ctx, instanceID)
	if err != nil {
		if err == docstore.ErrNotFound {
			return nil, apperr.NewNotFound("worker", instanceID)
		}
		return nil, apperr.NewInternal("worker", err)
	}
	return worker.Rehydrate(*st), nil
}

// Add persists a brand-new aggregate and publishes its pending events on
// success.
func (r *WorkerRepository) Add(ctx context.Context, agg *worker.Aggregate) error {
	return r.persistAndPublish(ctx, agg)
}

// Update persists the aggregate's current projection and publishes its
// pending events on success. Failure to persist leaves
// pending events unpublished so a retried Update can publish them once it
// succeeds.
func (r *WorkerRepository) Update(ctx context.Context, agg *worker.Aggregate) error {
	return r.persistAndPublish(ctx, agg)
}

func (r *WorkerRepository) persistAndPublish(ctx context.Context, agg *worker.Aggregate) error {
	st := agg.State()
	st.UpdatedAt = time.Now().UTC()

	if err := r.col.Upsert(ctx, st.ID, st, st.InstanceID, st.Region); err != nil {
		return apperr.NewInternal("worker", err)
	}

	for _, e := range agg.DrainEvents() {
		if err := r.publisher.Publish(ctx, e); err != nil {
			// The relay's own failure policy (local fallback)
			// already degrades gracefully; a publish error here is neither
			// returned, logged nor retried, since the write already
			// committed.
			continue
		}
	}
	return nil
}

// UpdateMany is the batched equivalent of Update: ordering
// between aggregates is unspecified, but each aggregate's own events
// publish only after its own write succeeds.
func (r *WorkerRepository) UpdateMany(ctx context.Context, aggregates []*worker.Aggregate) error {
	if len(aggregates) == 0 {
		return nil
	}
	now := time.Now().UTC()
	items := make([]docstore.Item[worker.State], 0, len(aggregates))
	for _, agg := range aggregates {
		st := agg.State()
		st.UpdatedAt = now
		items = append(items, docstore.Item[worker.State]{ID: st.ID, Doc: st, Index1: st.InstanceID, Index2: st.Region})
	}

	if err := r.col.UpdateMany(ctx, items); err != nil {
		return apperr.NewInternal("worker", err)
	}

	for _, agg := range aggregates {
		for _, e := range agg.DrainEvents() {
			_ = r.publisher.Publish(ctx, e)
		}
	}
	return nil
}

// Delete removes the record; if agg is non-nil, its pending events
// (including a terminal event) publish first.
func (r *WorkerRepository) Delete(ctx context.Context, id string, agg *worker.Aggregate) error {
	if agg != nil {
		for _, e := range agg.DrainEvents() {
			_ = r.publisher.Publish(ctx, e)
		}
	}
	if err := r.col.Delete(ctx, id); err != nil {
		return apperr.NewInternal("worker", err)
	}
	return nil
}

// GetByStatus returns every worker with the given status.
func (r *WorkerRepository) GetByStatus(ctx context.Context, status worker.Status) ([]*worker.Aggregate, error) {
	return r.filter(ctx, func(st worker.State) bool { return st.Status == status })
}

// GetActive returns every non-Terminated worker.
func (r *WorkerRepository) GetActive(ctx context.Context) ([]*worker.Aggregate, error) {
	return r.filter(ctx, func(st worker.State) bool { return st.Status != worker.StatusTerminated })
}

// GetByRegion returns every worker in region.
func (r *WorkerRepository) GetByRegion(ctx context.Context, region string) ([]*worker.Aggregate, error) {
	sts, err := r.col.ListByIndex2(ctx, region)
	if err != nil {
		return nil, apperr.NewInternal("worker", err)
	}
	return toAggregates(sts), nil
}

// GetIdle returns every worker eligible for idle-based auto-pause, per
// the IsIdle rule.
func (r *WorkerRepository) GetIdle(ctx context.Context, thresholdMinutes int) ([]*worker.Aggregate, error) {
	aggs, err := r.filterAll(ctx)
	if err != nil {
		return nil, err
	}
	out := aggs[:0]
	for _, agg := range aggs {
		if agg.IsIdle(thresholdMinutes) {
			out = append(out, agg)
		}
	}
	return out, nil
}

func (r *WorkerRepository) filter(ctx context.Context, keep func(worker.State) bool) ([]*worker.Aggregate, error) {
	sts, err := r.col.List(ctx)
	if err != nil {
		return nil, apperr.NewInternal("worker", err)
	}
	var out []worker.State
	for _, st := range sts {
		if keep(st) {
			out = append(out, st)
		}
	}
	return toAggregates(out), nil
}

func (r *WorkerRepository) filterAll(ctx context.Context) ([]*worker.Aggregate, error) {
	sts, err := r.col.List(ctx)
	if err != nil {
		return nil, apperr.NewInternal("worker", err)
	}
	return toAggregates(sts), nil
}

func toAggregates(sts []worker.State) []*worker.Aggregate {
	out := make([]*worker.Aggregate, 0, len(sts))
	for _, st := range sts {
		out = append(out, worker.Rehydrate(st))
	}
	return out
}
