package metricsvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/domain/worker"
)

func TestCollectWorkerMetrics_NoInstance(t *testing.T) {
	agg := worker.Create("w1", "eu-west-1", "m5.large", "img-1", "CML 2.7", "tester")
	svc := New(cloudprovider.NewFakeClient(), 300e9, nil, nil, nil)

	result := svc.CollectWorkerMetrics(context.Background(), agg, true)

	assert.Equal(t, "no instance", result.Error)
	assert.False(t, result.StatusUpdated)
}

func TestCollectWorkerMetrics_TerminatedSkipsCloudCall(t *testing.T) {
	agg := worker.Create("w1", "eu-west-1", "m5.large", "img-1", "CML 2.7", "tester")
	_ = agg.AssignInstance("i-123", "", "")
	agg.Terminate("tester")
	svc := New(cloudprovider.NewFakeClient(), 300e9, nil, nil, nil)

	result := svc.CollectWorkerMetrics(context.Background(), agg, true)

	assert.Equal(t, "worker already terminated", result.Error)
}

func TestCollectWorkerMetrics_InstanceNotFound(t *testing.T) {
	agg := worker.Create("w1", "eu-west-1", "m5.large", "img-1", "CML 2.7", "tester")
	_ = agg.AssignInstance("i-missing", "", "")
	svc := New(cloudprovider.NewFakeClient(), 300e9, nil, nil, nil)

	result := svc.CollectWorkerMetrics(context.Background(), agg, true)

	assert.Contains(t, result.Error, "not found")
}

func TestCollectWorkerMetrics_RunningCollectsUtilization(t *testing.T) {
	fake := cloudprovider.NewFakeClient()
	fake.SeedInstance("i-123", "eu-west-1", "running", cloudprovider.InstanceDetails{InstanceType: "m5.large"})
	cpu, mem := 42.5, 17.0
	fake.SeedUtilization("i-123", &cpu, &mem)

	agg := worker.Create("w1", "eu-west-1", "m5.large", "img-1", "CML 2.7", "tester")
	_ = agg.AssignInstance("i-123", "", "")

	svc := New(fake, 300e9, nil, nil, nil)
	result := svc.CollectWorkerMetrics(context.Background(), agg, true)

	require.Empty(t, result.Error)
	assert.True(t, result.MetricsCollected)
	require.NotNil(t, result.CPUUtilization)
	assert.Equal(t, 42.5, *result.CPUUtilization)
	assert.Equal(t, worker.StatusRunning, agg.State().Status)
}

func TestCollectWorkerMetrics_StoppedSkipsUtilizationCollection(t *testing.T) {
	fake := cloudprovider.NewFakeClient()
	fake.SeedInstance("i-123", "eu-west-1", "stopped", cloudprovider.InstanceDetails{InstanceType: "m5.large"})

	agg := worker.Create("w1", "eu-west-1", "m5.large", "img-1", "CML 2.7", "tester")
	_ = agg.AssignInstance("i-123", "", "")

	svc := New(fake, 300e9, nil, nil, nil)
	result := svc.CollectWorkerMetrics(context.Background(), agg, true)

	assert.False(t, result.MetricsCollected)
	assert.Equal(t, worker.StatusStopped, agg.State().Status)
}

func TestMapCloudState_UnknownDefaultsToPending(t *testing.T) {
	status, recognized := mapCloudState("weird-state")
	assert.Equal(t, worker.StatusPending, status)
	assert.False(t, recognized)
}
