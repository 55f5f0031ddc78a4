package commands

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBulkSyncWorkerEc2Status_AggregatesPerWorkerOutcome(t *testing.T) {
	env := newTestEnv(t)
	seedRunning(t, env, "w1", "inst-1")
	seedRunning(t, env, "w2", "inst-2")
	seedCloudInstance(env, "inst-1", "running")
	// inst-2 intentionally not seeded in the cloud fake, so its describe call fails.

	res := env.svc.BulkSyncWorkerEc2Status(context.Background(), BulkSyncInput{WorkerIDs: []string{"w1", "w2"}})

	assert.Equal(t, 200, res.StatusCode)
	out := res.Data.(BulkSyncResult)
	assert.Contains(t, out.Synced, "w1")
	assert.Contains(t, out.Failed, "w2")
}

func TestBulkSyncWorkerCmlData_DefaultsToAllActiveWorkers(t *testing.T) {
	env := newTestEnv(t)
	seedRunning(t, env, "w1", "inst-1")
	seedCloudInstance(env, "inst-1", "running")

	res := env.svc.BulkSyncWorkerCmlData(context.Background(), BulkSyncInput{})

	assert.Equal(t, 200, res.StatusCode)
	out := res.Data.(BulkSyncResult)
	assert.Contains(t, out.Synced, "w1")
}
