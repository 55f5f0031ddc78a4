package commands

import (
	"context"
	"sync"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/domain/lab"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

type fakeWorkerStore struct {
	mu        sync.Mutex
	byID      map[string]worker.State
	byInstance map[string]string
}

func newFakeWorkerStore() *fakeWorkerStore {
	return &fakeWorkerStore{byID: make(map[string]worker.State), byInstance: make(map[string]string)}
}

func (f *fakeWorkerStore) seed(agg *worker.Aggregate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := agg.State()
	f.byID[st.ID] = st
	if st.InstanceID != "" {
		f.byInstance[st.InstanceID] = st.ID
	}
	agg.DrainEvents()
}

func (f *fakeWorkerStore) Get(ctx context.Context, id string) (*worker.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.byID[id]
	if !ok {
		return nil, apperr.NewNotFound("worker", id)
	}
	return worker.Rehydrate(st), nil
}

func (f *fakeWorkerStore) GetByCloudInstanceID(ctx context.Context, instanceID string) (*worker.Aggregate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byInstance[instanceID]
	if !ok {
		return nil, apperr.NewNotFound("worker", instanceID)
	}
	return worker.Rehydrate(f.byID[id]), nil
}

func (f *fakeWorkerStore) Add(ctx context.Context, agg *worker.Aggregate) error {
	return f.persist(agg)
}

func (f *fakeWorkerStore) Update(ctx context.Context, agg *worker.Aggregate) error {
	return f.persist(agg)
}

func (f *fakeWorkerStore) persist(agg *worker.Aggregate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := agg.State()
	f.byID[st.ID] = st
	if st.InstanceID != "" {
		f.byInstance[st.InstanceID] = st.ID
	}
	agg.DrainEvents()
	return nil
}

func (f *fakeWorkerStore) UpdateMany(ctx context.Context, aggregates []*worker.Aggregate) error {
	for _, agg := range aggregates {
		_ = f.persist(agg)
	}
	return nil
}

func (f *fakeWorkerStore) Delete(ctx context.Context, id string, agg *worker.Aggregate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	if agg != nil {
		agg.DrainEvents()
	}
	return nil
}

func (f *fakeWorkerStore) GetByStatus(ctx context.Context, status worker.Status) ([]*worker.Aggregate, error) {
	return f.filter(func(st worker.State) bool { return st.Status == status }), nil
}

func (f *fakeWorkerStore) GetActive(ctx context.Context) ([]*worker.Aggregate, error) {
	return f.filter(func(st worker.State) bool { return st.Status != worker.StatusTerminated }), nil
}

func (f *fakeWorkerStore) GetByRegion(ctx context.Context, region string) ([]*worker.Aggregate, error) {
	return f.filter(func(st worker.State) bool { return st.Region == region }), nil
}

func (f *fakeWorkerStore) GetIdle(ctx context.Context, thresholdMinutes int) ([]*worker.Aggregate, error) {
	var out []*worker.Aggregate
	for _, agg := range f.filter(func(worker.State) bool { return true }) {
		if agg.IsIdle(thresholdMinutes) {
			out = append(out, agg)
		}
	}
	return out, nil
}

func (f *fakeWorkerStore) filter(keep func(worker.State) bool) []*worker.Aggregate {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*worker.Aggregate
	for _, st := range f.byID {
		if keep(st) {
			out = append(out, worker.Rehydrate(st))
		}
	}
	return out
}

type fakeLabStore struct {
	mu   sync.Mutex
	recs map[string]lab.State
}

func newFakeLabStore() *fakeLabStore { return &fakeLabStore{recs: make(map[string]lab.State)} }

func (f *fakeLabStore) key(workerID, labID string) string { return workerID + "/" + labID }

func (f *fakeLabStore) Get(ctx context.Context, workerID, labID string) (*lab.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.recs[f.key(workerID, labID)]
	if !ok {
		return nil, apperr.NewNotFound("lab_record", f.key(workerID, labID))
	}
	return lab.Rehydrate(st), nil
}

func (f *fakeLabStore) ListByWorker(ctx context.Context, workerID string) ([]*lab.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*lab.Record
	for _, st := range f.recs {
		if st.WorkerID == workerID {
			out = append(out, lab.Rehydrate(st))
		}
	}
	return out, nil
}

func (f *fakeLabStore) Upsert(ctx context.Context, rec *lab.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	workerID, labID := rec.ID()
	f.recs[f.key(workerID, labID)] = rec.State()
	rec.DrainEvents()
	return nil
}

func (f *fakeLabStore) UpsertMany(ctx context.Context, recs []*lab.Record) error {
	for _, rec := range recs {
		_ = f.Upsert(ctx, rec)
	}
	return nil
}

func (f *fakeLabStore) RemoveOrphans(ctx context.Context, workerID string, orphanLabIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, labID := range orphanLabIDs {
		delete(f.recs, f.key(workerID, labID))
	}
	return nil
}

func (f *fakeLabStore) Delete(ctx context.Context, workerID, labID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recs, f.key(workerID, labID))
	return nil
}
