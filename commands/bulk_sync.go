package commands

import (
	"context"
	"sync"
	"time"
)

// BulkSyncInput is the shared input shape of BulkSyncWorkerCmlData and
// BulkSyncWorkerEc2Status: an explicit worker id list
// (default: all active) and a concurrency cap (default 10).
type BulkSyncInput struct {
	WorkerIDs     []string
	MaxConcurrent int
}

// BulkSyncResult aggregates per-worker success/failure, never failing the
// whole command because one worker's sync failed.
type BulkSyncResult struct {
	Synced []string `json:"synced"`
	Failed []string `json:"failed"`
}

func (s *Service) resolveBulkTargets(ctx context.Context, in BulkSyncInput) ([]string, int, error) {
	ids := in.WorkerIDs
	if len(ids) == 0 {
		aggs, err := s.Workers.GetActive(ctx)
		if err != nil {
			return nil, 0, err
		}
		ids = make([]string, 0, len(aggs))
		for _, agg := range aggs {
			ids = append(ids, agg.ID())
		}
	}
	concurrency := in.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 10
	}
	return ids, concurrency, nil
}

func runBulk(ids []string, concurrency int, fn func(workerID string) bool) BulkSyncResult {
	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup
	out := BulkSyncResult{}

	for _, id := range ids {
		wg.Add(1)
		sem <- struct{}{}
		go func(workerID string) {
			defer wg.Done()
			defer func() { <-sem }()
			ok := fn(workerID)
			mu.Lock()
			if ok {
				out.Synced = append(out.Synced, workerID)
			} else {
				out.Failed = append(out.Failed, workerID)
			}
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return out
}

// BulkSyncWorkerCmlData concurrently invokes RefreshWorkerMetrics (the
// single-worker CML-data-refresh equivalent) for each target worker,
// bounded by a counting semaphore.
func (s *Service) BulkSyncWorkerCmlData(ctx context.Context, in BulkSyncInput) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("bulk_sync_worker_cml_data", start, err) }()

	ids, concurrency, rerr := s.resolveBulkTargets(ctx, in)
	if rerr != nil {
		err = rerr
		return fromErr(err, false)
	}

	out := runBulk(ids, concurrency, func(workerID string) bool {
		r := s.RefreshWorkerMetrics(ctx, workerID)
		return r.StatusCode >= 200 && r.StatusCode < 300
	})
	return ok(out)
}

// BulkSyncWorkerEc2Status concurrently invokes the single-worker cloud
// status sync (DescribeInstanceStatus + UpdateStatus/UpdateCloudHealth via
// the Metrics Service, resource-metrics collection disabled) for each
// target worker.
func (s *Service) BulkSyncWorkerEc2Status(ctx context.Context, in BulkSyncInput) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("bulk_sync_worker_ec2_status", start, err) }()

	ids, concurrency, rerr := s.resolveBulkTargets(ctx, in)
	if rerr != nil {
		err = rerr
		return fromErr(err, false)
	}

	out := runBulk(ids, concurrency, func(workerID string) bool {
		agg, gerr := s.Workers.Get(ctx, workerID)
		if gerr != nil {
			return false
		}
		result := s.Metrics.CollectWorkerMetrics(ctx, agg, false)
		if serr := s.Workers.Update(ctx, agg); serr != nil {
			return false
		}
		return result.Error == ""
	})
	return ok(out)
}
