package lab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate_RegistersCreatedEventAndFirstHistoryEntry(t *testing.T) {
	now := time.Now().UTC()
	r := Create("w-1", "l-1", Snapshot{Title: "Topology A", LabState: "STARTED", NodeCount: 3}, now)

	require.Len(t, r.PendingEvents(), 1)
	assert.IsType(t, CreatedEvent{}, r.PendingEvents()[0])
	assert.Len(t, r.State().OperationHistory, 1)
	assert.Equal(t, "STARTED", r.State().OperationHistory[0].NewState)
}

func TestApplyRefresh_NoEventWhenNothingChanged(t *testing.T) {
	now := time.Now().UTC()
	r := Create("w-1", "l-1", Snapshot{Title: "Topology A", LabState: "STARTED", NodeCount: 3}, now)
	r.DrainEvents()

	r.ApplyRefresh(Snapshot{Title: "Topology A", LabState: "STARTED", NodeCount: 3}, now.Add(time.Minute))

	assert.Empty(t, r.PendingEvents())
	assert.Len(t, r.State().OperationHistory, 1) // unchanged, no new entry
}

func TestApplyRefresh_RegistersUpdatedAndStateChanged(t *testing.T) {
	now := time.Now().UTC()
	r := Create("w-1", "l-1", Snapshot{Title: "Topology A", LabState: "STARTED", NodeCount: 3}, now)
	r.DrainEvents()

	r.ApplyRefresh(Snapshot{Title: "Topology A", LabState: "STOPPED", NodeCount: 3}, now.Add(time.Minute))

	events := r.PendingEvents()
	require.Len(t, events, 2)
	assert.IsType(t, UpdatedEvent{}, events[0])
	assert.IsType(t, StateChangedEvent{}, events[1])
	assert.Len(t, r.State().OperationHistory, 2)
}

func TestApplyRefresh_CapsOperationHistoryAt50(t *testing.T) {
	now := time.Now().UTC()
	r := Create("w-1", "l-1", Snapshot{Title: "Topology A", LabState: "STARTED"}, now)

	state := "STARTED"
	for i := 0; i < 60; i++ {
		if state == "STARTED" {
			state = "STOPPED"
		} else {
			state = "STARTED"
		}
		r.ApplyRefresh(Snapshot{Title: "Topology A", LabState: state}, now.Add(time.Duration(i+1)*time.Minute))
	}

	history := r.State().OperationHistory
	assert.LessOrEqual(t, len(history), MaxOperationHistory)
	assert.Equal(t, MaxOperationHistory, len(history))
	// most recent entry's timestamp must be >= all others
	last := history[len(history)-1].Timestamp
	for _, h := range history {
		assert.False(t, h.Timestamp.After(last))
	}
}

func TestDiffOrphans(t *testing.T) {
	known := []string{"l1", "l2", "l3"}
	apiIDs := []string{"l1", "l3"}

	orphans := DiffOrphans(known, apiIDs)

	assert.Equal(t, []string{"l2"}, orphans)
}

func TestDiffOrphans_NoneWhenAllPresent(t *testing.T) {
	known := []string{"l1", "l2"}
	apiIDs := []string{"l1", "l2", "l3"}

	orphans := DiffOrphans(known, apiIDs)

	assert.Empty(t, orphans)
}
