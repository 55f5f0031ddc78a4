// Package lab implements the LabRecord secondary aggregate:
// the most recent snapshot of one lab hosted on a worker, plus a bounded
// ring buffer of its state transitions.
package lab

import (
	"time"

	"github.com/cml-fleet/worker-engine/domain/event"
)

// MaxOperationHistory is the cap on a lab record's operation_history
// ring buffer: length never exceeds 50, oldest transitions drop first.
const MaxOperationHistory = 50

// Transition is one entry in a LabRecord's operation_history.
type Transition struct {
	Timestamp     time.Time
	PreviousState string
	NewState      string
	ChangedFields []string
}

// State is the projected attribute set of one LabRecord.
type State struct {
	LabID         string
	WorkerID      string
	Title         string
	Description   string
	Notes         string
	LabState      string
	OwnerUsername string
	OwnerFullName string
	NodeCount     int
	LinkCount     int
	Groups        []string

	LabServiceCreatedAt  *time.Time
	LabServiceModifiedAt *time.Time
	FirstSeenAt          time.Time
	LastSyncedAt         time.Time

	OperationHistory []Transition
}

func (s State) clone() State {
	out := s
	if s.Groups != nil {
		out.Groups = append([]string(nil), s.Groups...)
	}
	if s.OperationHistory != nil {
		out.OperationHistory = append([]Transition(nil), s.OperationHistory...)
	}
	if s.LabServiceCreatedAt != nil {
		v := *s.LabServiceCreatedAt
		out.LabServiceCreatedAt = &v
	}
	if s.LabServiceModifiedAt != nil {
		v := *s.LabServiceModifiedAt
		out.LabServiceModifiedAt = &v
	}
	return out
}

// Record is the LabRecord aggregate root, identified by (worker_id, lab_id).
type Record struct {
	state   State
	pending []event.Event
}

// ID returns the (worker_id, lab_id) composite identity as used by the
// document store's secondary index.
func (r *Record) ID() (workerID, labID string) { return r.state.WorkerID, r.state.LabID }

// State returns a defensive copy of the current projected state.
func (r *Record) State() State { return r.state.clone() }

// PendingEvents returns events registered since the last DrainEvents.
func (r *Record) PendingEvents() []event.Event {
	out := make([]event.Event, len(r.pending))
	copy(out, r.pending)
	return out
}

// DrainEvents returns and clears pending events (called by the repository
// after a successful persist).
func (r *Record) DrainEvents() []event.Event {
	out := r.pending
	r.pending = nil
	return out
}

func (r *Record) register(e event.Event) {
	r.pending = append(r.pending, e)
}

func (r *Record) pushHistory(previousState, newState string, changedFields []string, at time.Time) {
	r.state.OperationHistory = append(r.state.OperationHistory, Transition{
		Timestamp:     at,
		PreviousState: previousState,
		NewState:      newState,
		ChangedFields: changedFields,
	})
	if excess := len(r.state.OperationHistory) - MaxOperationHistory; excess > 0 {
		r.state.OperationHistory = r.state.OperationHistory[excess:]
	}
}

// Snapshot is the data reported by the lab HTTPS API's GET /labs/{id}
//, used by both Create and ApplyRefresh.
type Snapshot struct {
	Title         string
	Description   string
	Notes         string
	LabState      string
	OwnerUsername string
	OwnerFullName string
	NodeCount     int
	LinkCount     int
	Groups        []string
	CreatedAt     *time.Time
	ModifiedAt    *time.Time
}

// Create builds a new LabRecord on first observation by a labs refresh.
func Create(workerID, labID string, snap Snapshot, observedAt time.Time) *Record {
	r := &Record{state: State{
		LabID:                labID,
		WorkerID:             workerID,
		Title:                snap.Title,
		Description:          snap.Description,
		Notes:                snap.Notes,
		LabState:             snap.LabState,
		OwnerUsername:        snap.OwnerUsername,
		OwnerFullName:        snap.OwnerFullName,
		NodeCount:            snap.NodeCount,
		LinkCount:            snap.LinkCount,
		Groups:               snap.Groups,
		LabServiceCreatedAt:  snap.CreatedAt,
		LabServiceModifiedAt: snap.ModifiedAt,
		FirstSeenAt:          observedAt,
		LastSyncedAt:         observedAt,
	}}
	r.pushHistory("", snap.LabState, []string{"created"}, observedAt)
	r.register(CreatedEvent{
		WorkerID: workerID, LabID: labID, Title: snap.Title, LabState: snap.LabState, At: observedAt,
	})
	return r
}

// Rehydrate builds a Record from a persisted snapshot without registering
// events (used by the repository on Get).
func Rehydrate(st State) *Record {
	return &Record{state: st.clone()}
}

// ApplyRefresh updates the record from a fresh snapshot taken during labs
// refresh. It appends an
// operation_history entry, registers LabRecordUpdated for field changes and
// additionally LabStateChanged when lab_state itself transitioned.
func (r *Record) ApplyRefresh(snap Snapshot, observedAt time.Time) {
	changed := []string{}
	prevState := r.state.LabState

	if r.state.Title != snap.Title {
		changed = append(changed, "title")
	}
	if r.state.Description != snap.Description {
		changed = append(changed, "description")
	}
	if r.state.NodeCount != snap.NodeCount {
		changed = append(changed, "node_count")
	}
	if r.state.LinkCount != snap.LinkCount {
		changed = append(changed, "link_count")
	}
	if r.state.LabState != snap.LabState {
		changed = append(changed, "lab_state")
	}

	r.state.Title = snap.Title
	r.state.Description = snap.Description
	r.state.Notes = snap.Notes
	r.state.LabState = snap.LabState
	r.state.OwnerUsername = snap.OwnerUsername
	r.state.OwnerFullName = snap.OwnerFullName
	r.state.NodeCount = snap.NodeCount
	r.state.LinkCount = snap.LinkCount
	r.state.Groups = snap.Groups
	r.state.LabServiceModifiedAt = snap.ModifiedAt
	r.state.LastSyncedAt = observedAt

	if len(changed) == 0 {
		return
	}

	r.pushHistory(prevState, snap.LabState, changed, observedAt)
	r.register(UpdatedEvent{
		WorkerID: r.state.WorkerID, LabID: r.state.LabID, ChangedFields: changed, At: observedAt,
	})

	if prevState != snap.LabState {
		r.register(StateChangedEvent{
			WorkerID: r.state.WorkerID, LabID: r.state.LabID,
			PreviousState: prevState, NewState: snap.LabState, At: observedAt,
		})
	}
}

// DiffOrphans compares the lab ids currently known for a worker against the
// ids the lab API reports existing, returning the subset that should be
// removed.
func DiffOrphans(knownLabIDs, apiLabIDs []string) []string {
	present := make(map[string]struct{}, len(apiLabIDs))
	for _, id := range apiLabIDs {
		present[id] = struct{}{}
	}
	var orphans []string
	for _, id := range knownLabIDs {
		if _, ok := present[id]; !ok {
			orphans = append(orphans, id)
		}
	}
	return orphans
}
