package scheduler

import "fmt"

// Constructor builds a Job from its serialized payload.
type Constructor func(payload map[string]any) (Job, error)

// Registry maps a job kind name to the constructor that rehydrates it,
// the Go analogue of scanning a module for decorator-marked classes: here
// the mapping is populated once at startup instead of by reflection.
type Registry struct {
	constructors map[string]Constructor
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register adds kind's constructor. Re-registering the same kind replaces
// the prior constructor, which keeps tests free to override a stock job.
func (r *Registry) Register(kind string, ctor Constructor) {
	r.constructors[kind] = ctor
}

// Build rehydrates a Job of the given kind from payload.
func (r *Registry) Build(kind string, payload map[string]any) (Job, error) {
	ctor, ok := r.constructors[kind]
	if !ok {
		return nil, fmt.Errorf("scheduler: job kind %q not registered", kind)
	}
	return ctor(payload)
}

// RegisterJobKinds populates reg with the fleet's five required job
// kinds. Called once at startup before the scheduler starts dispatching.
func RegisterJobKinds(reg *Registry) {
	reg.Register(KindFleetMetrics, func(map[string]any) (Job, error) {
		return FleetMetricsJob{}, nil
	})
	reg.Register(KindLabsRefresh, func(map[string]any) (Job, error) {
		return LabsRefreshJob{}, nil
	})
	reg.Register(KindActivityDetection, func(map[string]any) (Job, error) {
		return ActivityDetectionJob{}, nil
	})
	reg.Register(KindAutoImport, func(map[string]any) (Job, error) {
		return AutoImportJob{}, nil
	})
	reg.Register(KindOnDemandRefresh, func(payload map[string]any) (Job, error) {
		workerID, _ := payload["worker_id"].(string)
		if workerID == "" {
			return nil, fmt.Errorf("scheduler: %s payload missing worker_id", KindOnDemandRefresh)
		}
		return OnDemandRefreshJob{WorkerID: workerID}, nil
	})
}
