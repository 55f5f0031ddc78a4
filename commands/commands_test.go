package commands

import (
	"testing"
	"time"

	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/internal/config"
	"github.com/cml-fleet/worker-engine/labclient"
	"github.com/cml-fleet/worker-engine/metricsvc"
	"github.com/cml-fleet/worker-engine/throttle"
)

type testEnv struct {
	svc     *Service
	workers *fakeWorkerStore
	labs    *fakeLabStore
	cloud   *cloudprovider.FakeClient
	lab     *labclient.FakeClient
	sched   *fakeScheduler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	workers := newFakeWorkerStore()
	labs := newFakeLabStore()
	cloud := cloudprovider.NewFakeClient()
	cloud.SeedImage("img-1", cloudprovider.ImageDetails{Name: "cml-image"})
	labFake := labclient.NewFakeClient()
	sched := newFakeScheduler()

	cfg := &config.Config{}
	cfg.WorkerProvisioning = config.WorkerProvisioning{DefaultRegion: "eastus", DefaultInstanceType: "Standard_D4s_v3", DefaultImageID: "img-1"}
	cfg.Monitoring = config.Monitoring{UpcomingJobThresholdSeconds: 10}

	ms := metricsvc.New(cloud, 300*time.Second, nil, nil, nil)
	thr := throttle.New(10 * time.Second)

	svc := New(workers, labs, cloud, func(string) labclient.API { return labFake }, ms, thr, sched, cfg, nil, nil)

	return &testEnv{svc: svc, workers: workers, labs: labs, cloud: cloud, lab: labFake, sched: sched}
}
