package scheduler

import (
	"context"
	"testing"
)

type fakeJob struct{ kind string }

func (f fakeJob) Kind() string { return f.kind }
func (f fakeJob) Run(ctx context.Context, deps Deps) error { return nil }

func TestRegistryBuildUnknownKind(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Build("nope", nil); err == nil {
		t.Fatal("expected error for unregistered kind")
	}
}

func TestRegistryRegisterAndBuild(t *testing.T) {
	reg := NewRegistry()
	reg.Register("stub", func(payload map[string]any) (Job, error) {
		return fakeJob{kind: "stub"}, nil
	})

	job, err := reg.Build("stub", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if job.Kind() != "stub" {
		t.Fatalf("expected kind stub, got %s", job.Kind())
	}
}

func TestRegisterJobKindsCoversAllFiveKinds(t *testing.T) {
	reg := NewRegistry()
	RegisterJobKinds(reg)

	for _, kind := range []string{KindFleetMetrics, KindLabsRefresh, KindActivityDetection, KindAutoImport} {
		if _, err := reg.Build(kind, nil); err != nil {
			t.Fatalf("kind %s: unexpected error: %v", kind, err)
		}
	}

	if _, err := reg.Build(KindOnDemandRefresh, nil); err == nil {
		t.Fatal("expected error when on_demand_refresh payload lacks worker_id")
	}
	job, err := reg.Build(KindOnDemandRefresh, map[string]any{"worker_id": "w-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	odr, ok := job.(OnDemandRefreshJob)
	if !ok || odr.WorkerID != "w-1" {
		t.Fatalf("expected OnDemandRefreshJob with worker_id w-1, got %#v", job)
	}
}
