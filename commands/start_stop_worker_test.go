package commands

import (
	"context"
	"testing"

	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/stretchr/testify/assert"
)

func seedCloudInstance(env *testEnv, instanceID, state string) {
	env.cloud.SeedInstance(instanceID, "eastus", state, cloudprovider.InstanceDetails{
		InstanceType: "Standard_D4s_v3", ImageID: "img-1",
	})
}

func TestStartWorker_AlreadyRunningIsNoop(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")
	seedCloudInstance(env, "inst-1", "running")

	res := env.svc.StartWorker(context.Background(), agg.ID(), "user")
	assert.Equal(t, 200, res.StatusCode)
}

func TestStopWorker_TransitionsAndRecordsPause(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")
	seedCloudInstance(env, "inst-1", "running")

	res := env.svc.StopWorker(context.Background(), agg.ID(), "user")

	assert.Equal(t, 200, res.StatusCode)
	got, err := env.workers.Get(context.Background(), "w1")
	assert.NoError(t, err)
	assert.Equal(t, worker.StatusStopped, got.State().Status)
	assert.Equal(t, 1, got.State().ManualPauseCount)
}

func TestTerminateWorker_MarksTerminatedKeepsRecord(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")
	seedCloudInstance(env, "inst-1", "running")

	res := env.svc.TerminateWorker(context.Background(), agg.ID(), true, "admin")

	assert.Equal(t, 200, res.StatusCode)
	got, err := env.workers.Get(context.Background(), "w1")
	assert.NoError(t, err)
	assert.Equal(t, worker.StatusTerminated, got.State().Status)
}

func TestDeleteWorker_RemovesRecord(t *testing.T) {
	env := newTestEnv(t)
	agg := seedRunning(t, env, "w1", "inst-1")
	seedCloudInstance(env, "inst-1", "running")

	res := env.svc.DeleteWorker(context.Background(), agg.ID(), true, "admin")

	assert.Equal(t, 200, res.StatusCode)
	_, err := env.workers.Get(context.Background(), "w1")
	assert.Error(t, err)
}
