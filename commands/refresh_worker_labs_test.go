package commands

import (
	"context"
	"testing"

	"github.com/cml-fleet/worker-engine/labclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedWorkerWithEndpoint(t *testing.T, env *testEnv, workerID string) {
	t.Helper()
	agg := seedRunning(t, env, workerID, "inst-"+workerID)
	agg.UpdateEndpoint("https://1.2.3.4", "1.2.3.4")
	require.NoError(t, env.workers.Update(context.Background(), agg))
}

func TestRefreshWorkerLabs_NoEndpointIsValidationError(t *testing.T) {
	env := newTestEnv(t)
	seedRunning(t, env, "w1", "inst-1")

	res := env.svc.RefreshWorkerLabs(context.Background(), "w1")
	assert.Equal(t, 400, res.StatusCode)
}

func TestRefreshWorkerLabs_CreatesRecordsAndRemovesOrphans(t *testing.T) {
	env := newTestEnv(t)
	seedWorkerWithEndpoint(t, env, "w1")

	env.lab.SeedLab(labclient.LabDetails{ID: "lab-1", Title: "Lab One", State: "STARTED"})
	env.lab.SeedLab(labclient.LabDetails{ID: "lab-2", Title: "Lab Two", State: "STOPPED"})

	res := env.svc.RefreshWorkerLabs(context.Background(), "w1")
	assert.Equal(t, 200, res.StatusCode)
	out := res.Data.(RefreshWorkerLabsResult)
	assert.Equal(t, 2, out.LabsSeen)

	recs, err := env.labs.ListByWorker(context.Background(), "w1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	// lab-2 disappears from the lab API; a second refresh should remove it.
	delete(env.lab.Labs, "lab-2")

	res2 := env.svc.RefreshWorkerLabs(context.Background(), "w1")
	out2 := res2.Data.(RefreshWorkerLabsResult)
	assert.Equal(t, 1, out2.Removed)

	recs2, err := env.labs.ListByWorker(context.Background(), "w1")
	require.NoError(t, err)
	assert.Len(t, recs2, 1)
}
