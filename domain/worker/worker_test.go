package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_RegistersCreatedEvent(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	require.Len(t, a.PendingEvents(), 1)
	assert.IsType(t, CreatedEvent{}, a.PendingEvents()[0])
	assert.Equal(t, StatusPending, a.State().Status)
	assert.Equal(t, ServiceUnavailable, a.State().ServiceStatus)
	assert.True(t, a.State().IsIdleDetectionEnabled)
}

func TestUpdateStatus_NoopWhenUnchanged(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()

	changed := a.UpdateStatus(StatusPending)

	assert.False(t, changed)
	assert.Empty(t, a.PendingEvents())
}

func TestUpdateStatus_RegistersOnChange(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()

	changed := a.UpdateStatus(StatusRunning)

	assert.True(t, changed)
	require.Len(t, a.PendingEvents(), 1)
	assert.Equal(t, StatusRunning, a.State().Status)
}

func TestTerminate_SubsequentMutationsAreNoops(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()

	a.Terminate("alice")
	require.Equal(t, StatusTerminated, a.State().Status)
	a.DrainEvents()

	assert.False(t, a.UpdateStatus(StatusRunning))
	assert.False(t, a.UpdateServiceStatus(ServiceAvailable, "https://1.2.3.4"))
	assert.Empty(t, a.PendingEvents())
	assert.Equal(t, StatusTerminated, a.State().Status)

	err := a.AssignInstance("i-new", "1.2.3.4", "10.0.0.1")
	assert.NoError(t, err)
	assert.Empty(t, a.State().InstanceID)
}

func TestAssignInstance_RejectsReassignment(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()
	require.NoError(t, a.AssignInstance("i-abc", "1.2.3.4", "10.0.0.1"))
	a.DrainEvents()

	err := a.AssignInstance("i-xyz", "1.2.3.5", "10.0.0.2")

	require.ErrorIs(t, err, ErrInstanceAlreadyAssigned)
	assert.Equal(t, "i-abc", a.State().InstanceID)
}

func TestAssignInstance_IdempotentSameID(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()
	require.NoError(t, a.AssignInstance("i-abc", "1.2.3.4", "10.0.0.1"))
	a.DrainEvents()

	err := a.AssignInstance("i-abc", "1.2.3.4", "10.0.0.1")

	assert.NoError(t, err)
}

func TestUpdateCloudMetrics_SuppressesBelowThreshold(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()
	cpu := 50.0
	mem := 60.0
	a.UpdateCloudMetrics(&cpu, &mem, DefaultChangeThresholdPercent, 300, time.Now().Add(5*time.Minute))
	a.DrainEvents()

	cpu2 := 50.5 // < 5% relative change
	changed := a.UpdateCloudMetrics(&cpu2, &mem, DefaultChangeThresholdPercent, 300, time.Now().Add(5*time.Minute))

	assert.False(t, changed)
	assert.Empty(t, a.PendingEvents())
	// sampled value still recorded even though no event fired
	assert.Equal(t, 50.5, *a.State().CPUUtilization)
}

func TestUpdateCloudMetrics_FiresAboveThreshold(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()
	cpu := 50.0
	mem := 60.0
	a.UpdateCloudMetrics(&cpu, &mem, DefaultChangeThresholdPercent, 300, time.Now().Add(5*time.Minute))
	a.DrainEvents()

	cpu2 := 60.0 // 20% relative change
	changed := a.UpdateCloudMetrics(&cpu2, &mem, DefaultChangeThresholdPercent, 300, time.Now().Add(5*time.Minute))

	assert.True(t, changed)
	require.Len(t, a.PendingEvents(), 1)
}

func TestReplay_ReproducesPersistedState(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	require.NoError(t, a.AssignInstance("i-abc", "1.2.3.4", "10.0.0.1"))
	a.UpdateStatus(StatusRunning)
	a.UpdateServiceStatus(ServiceAvailable, "https://1.2.3.4")
	cpu := 42.0
	mem := 55.0
	a.UpdateCloudMetrics(&cpu, &mem, DefaultChangeThresholdPercent, 300, time.Now().Add(5*time.Minute))

	events := a.PendingEvents()
	replayed := Replay(events)

	assert.Equal(t, a.State().ID, replayed.State().ID)
	assert.Equal(t, a.State().Status, replayed.State().Status)
	assert.Equal(t, a.State().ServiceStatus, replayed.State().ServiceStatus)
	assert.Equal(t, a.State().InstanceID, replayed.State().InstanceID)
	assert.Equal(t, *a.State().CPUUtilization, *replayed.State().CPUUtilization)
}

func TestIsIdle_RequiresEnabledNoActivityNoLabs(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()

	assert.False(t, a.IsIdle(30)) // no activity recorded yet

	old := time.Now().Add(-45 * time.Minute)
	a.RecordActivity(old)

	assert.True(t, a.IsIdle(30))

	a.SetIdleDetectionEnabled(false)
	assert.False(t, a.IsIdle(30))
}

func TestCanConnect_RequiresRunningAvailableAndEndpoint(t *testing.T) {
	a := Create("cml-01", "us-east-1", "m5.xlarge", "ami-123", "cml-2.7", "alice")
	a.DrainEvents()
	assert.False(t, a.CanConnect())

	a.UpdateStatus(StatusRunning)
	a.UpdateServiceStatus(ServiceAvailable, "")
	assert.False(t, a.CanConnect())

	a.UpdateServiceStatus(ServiceAvailable, "https://1.2.3.4")
	assert.True(t, a.CanConnect())
}
