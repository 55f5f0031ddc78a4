package commands

import (
	"context"
	"testing"
	"time"

	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRunning(t *testing.T, env *testEnv, workerID, instanceID string) *worker.Aggregate {
	t.Helper()
	agg := worker.Create("w", "eastus", "Standard_D4s_v3", "img-1", "cml-image", "tester")
	require.NoError(t, agg.AssignInstance(instanceID, "1.2.3.4", "10.0.0.4"))
	agg.UpdateStatus(worker.StatusRunning)
	st := agg.State()
	// overwrite generated id with the one the test wants to address by
	agg = worker.Rehydrate(worker.State{
		ID: workerID, Name: st.Name, Region: st.Region, InstanceType: st.InstanceType,
		ImageID: st.ImageID, ImageName: st.ImageName, InstanceID: st.InstanceID,
		PublicIP: st.PublicIP, PrivateIP: st.PrivateIP, Status: worker.StatusRunning,
		ServiceStatus: worker.ServiceAvailable, CreatedAt: st.CreatedAt, CreatedBy: st.CreatedBy,
	})
	env.workers.seed(agg)
	return agg
}

func TestRequestWorkerDataRefresh_NotFound(t *testing.T) {
	env := newTestEnv(t)
	res := env.svc.RequestWorkerDataRefresh(context.Background(), "missing")
	assert.Equal(t, 400, res.StatusCode)
}

func TestRequestWorkerDataRefresh_NotRunningSkips(t *testing.T) {
	env := newTestEnv(t)
	agg := worker.Create("w", "eastus", "Standard_D4s_v3", "img-1", "cml-image", "tester")
	env.workers.seed(agg)

	res := env.svc.RequestWorkerDataRefresh(context.Background(), agg.ID())

	assert.Equal(t, 200, res.StatusCode)
	out := res.Data.(RequestDataRefreshResult)
	assert.False(t, out.Scheduled)
	assert.Equal(t, "not_running", out.Reason)
}

func TestRequestWorkerDataRefresh_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")

	env.svc.Throttle.Record(agg.ID())

	res := env.svc.RequestWorkerDataRefresh(context.Background(), agg.ID())
	out := res.Data.(RequestDataRefreshResult)
	assert.False(t, out.Scheduled)
	assert.Equal(t, "rate_limited", out.Reason)
}

func TestRequestWorkerDataRefresh_BackgroundJobImminent(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")
	env.sched.setNextRun(FleetMetricsJobID, time.Now().Add(5*time.Second))

	res := env.svc.RequestWorkerDataRefresh(context.Background(), agg.ID())
	out := res.Data.(RequestDataRefreshResult)
	assert.False(t, out.Scheduled)
	assert.Equal(t, "background_job_imminent", out.Reason)
}

func TestRequestWorkerDataRefresh_AlreadyScheduled(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")
	env.sched.setNextRun("on_demand_refresh_w1", time.Now().Add(15*time.Second))

	res := env.svc.RequestWorkerDataRefresh(context.Background(), agg.ID())
	out := res.Data.(RequestDataRefreshResult)
	assert.False(t, out.Scheduled)
	assert.Equal(t, "already_scheduled", out.Reason)
}

func TestRequestWorkerDataRefresh_SchedulesOnDemandJob(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")

	res := env.svc.RequestWorkerDataRefresh(context.Background(), agg.ID())

	assert.Equal(t, 200, res.StatusCode)
	out := res.Data.(RequestDataRefreshResult)
	assert.True(t, out.Scheduled)
	assert.Equal(t, "on_demand_refresh_w1", out.JobID)

	_, scheduled := env.sched.NextRun("on_demand_refresh_w1")
	assert.True(t, scheduled)
}
