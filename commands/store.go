package commands

import (
	"context"

	"github.com/cml-fleet/worker-engine/domain/lab"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

// WorkerStore is the subset of *repository.WorkerRepository the command
// handlers call, extracted so tests can substitute an in-memory fake
// (mirrors the cloudprovider.Client/labclient.API interface-extraction
// pattern).
type WorkerStore interface {
	Get(ctx context.Context, id string) (*worker.Aggregate, error)
	GetByCloudInstanceID(ctx context.Context, instanceID string) (*worker.Aggregate, error)
	Add(ctx context.Context, agg *worker.Aggregate) error
	Update(ctx context.Context, agg *worker.Aggregate) error
	UpdateMany(ctx context.Context, aggregates []*worker.Aggregate) error
	Delete(ctx context.Context, id string, agg *worker.Aggregate) error
	GetByStatus(ctx context.Context, status worker.Status) ([]*worker.Aggregate, error)
	GetActive(ctx context.Context) ([]*worker.Aggregate, error)
	GetByRegion(ctx context.Context, region string) ([]*worker.Aggregate, error)
	GetIdle(ctx context.Context, thresholdMinutes int) ([]*worker.Aggregate, error)
}

// LabStore is the subset of *repository.LabRepository the command
// handlers call.
type LabStore interface {
	Get(ctx context.Context, workerID, labID string) (*lab.Record, error)
	ListByWorker(ctx context.Context, workerID string) ([]*lab.Record, error)
	Upsert(ctx context.Context, rec *lab.Record) error
	UpsertMany(ctx context.Context, recs []*lab.Record) error
	RemoveOrphans(ctx context.Context, workerID string, orphanLabIDs []string) error
	Delete(ctx context.Context, workerID, labID string) error
}
