package commands

import (
	"context"
	"time"

	"github.com/cml-fleet/worker-engine/apperr"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

// WorkerView augments a worker's projected state with the fleet-by-region
// query's derived utilization.
type WorkerView struct {
	worker.State
	DerivedCPUUtilization    *float64 `json:"derived_cpu_utilization,omitempty"`
	DerivedMemoryUtilization *float64 `json:"derived_memory_utilization,omitempty"`
}

// deriveUtilization prefers a lab-service-reported percentage when one is
// available and falls back to the cloud-reported value otherwise, always
// clamping to [0, 100]. This module persists no distinct
// lab-service utilization percentage on the aggregate (system_stats
// reports allocated counts, not a percentage), so labCPU/labMemory are
// always nil today; the preference order is kept so a future lab-service
// percentage source slots in without changing callers.
func deriveUtilization(labCPU, labMemory, cloudCPU, cloudMemory *float64) (cpu, memory *float64) {
	cpu = clamp01to100(firstNonNil(labCPU, cloudCPU))
	memory = clamp01to100(firstNonNil(labMemory, cloudMemory))
	return
}

func firstNonNil(a, b *float64) *float64 {
	if a != nil {
		return a
	}
	return b
}

func clamp01to100(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	if c < 0 {
		c = 0
	}
	if c > 100 {
		c = 100
	}
	return &c
}

// GetCMLWorkersByRegion returns every worker in region, optionally filtered
// by status, with derived utilization attached.
func (s *Service) GetCMLWorkersByRegion(ctx context.Context, region string, status *worker.Status) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("get_cml_workers_by_region", start, err) }()

	aggs, gerr := s.Workers.GetByRegion(ctx, region)
	if gerr != nil {
		err = gerr
		return fromErr(err, true)
	}

	views := make([]WorkerView, 0, len(aggs))
	for _, agg := range aggs {
		st := agg.State()
		if status != nil && st.Status != *status {
			continue
		}
		cpu, mem := deriveUtilization(nil, nil, st.CPUUtilization, st.MemoryUtilization)
		views = append(views, WorkerView{State: st, DerivedCPUUtilization: cpu, DerivedMemoryUtilization: mem})
	}
	return ok(views)
}

// GetCMLWorkerById looks a worker up by its own id, falling back to a
// cloud instance id lookup.
func (s *Service) GetCMLWorkerById(ctx context.Context, idOrInstanceID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("get_cml_worker_by_id", start, err) }()

	agg, gerr := s.Workers.Get(ctx, idOrInstanceID)
	if gerr == nil {
		return ok(agg.State())
	}

	agg, ierr := s.Workers.GetByCloudInstanceID(ctx, idOrInstanceID)
	if ierr != nil {
		err = apperr.NewNotFound("worker", idOrInstanceID)
		return fromErr(err, true)
	}
	return ok(agg.State())
}

// GetWorkerLabs returns the cached LabRecords for a worker.
func (s *Service) GetWorkerLabs(ctx context.Context, workerID string) (res Result) {
	start := time.Now()
	var err error
	defer func() { s.recordCommand("get_worker_labs", start, err) }()

	recs, gerr := s.Labs.ListByWorker(ctx, workerID)
	if gerr != nil {
		err = gerr
		return fromErr(err, true)
	}
	states := make([]any, 0, len(recs))
	for _, rec := range recs {
		states = append(states, rec.State())
	}
	return ok(states)
}

// SystemSettingsView mirrors the persisted system_settings document's
// nested sections.
type SystemSettingsView struct {
	WorkerProvisioning any `json:"worker_provisioning"`
	Monitoring         any `json:"monitoring"`
	IdleDetection      any `json:"idle_detection"`
}

// GetSystemSettings returns the current effective worker-provisioning,
// monitoring, and idle-detection configuration sections.
func (s *Service) GetSystemSettings(ctx context.Context) (res Result) {
	start := time.Now()
	defer func() { s.recordCommand("get_system_settings", start, nil) }()

	return ok(SystemSettingsView{
		WorkerProvisioning: s.Config.WorkerProvisioning,
		Monitoring:         s.Config.Monitoring,
		IdleDetection:      s.Config.IdleDetection,
	})
}
