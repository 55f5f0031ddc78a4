package lab

import (
	"fmt"
	"time"

	"github.com/cml-fleet/worker-engine/domain/event"
)

// CreatedEvent is registered by Create.
type CreatedEvent struct {
	WorkerID string
	LabID    string
	Title    string
	LabState string
	At       time.Time
}

func (e CreatedEvent) EventType() event.Type { return event.TypeLabRecordCreated }
func (e CreatedEvent) Source() string        { return event.SourceLab }
func (e CreatedEvent) AggregateID() string   { return fmt.Sprintf("%s/%s", e.WorkerID, e.LabID) }
func (e CreatedEvent) OccurredAt() time.Time { return e.At }
func (e CreatedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id": e.WorkerID,
		"lab_id":    e.LabID,
		"title":     e.Title,
		"lab_state": e.LabState,
	}
}

// UpdatedEvent is registered by ApplyRefresh whenever any tracked field
// differs from the previous snapshot.
type UpdatedEvent struct {
	WorkerID      string
	LabID         string
	ChangedFields []string
	At            time.Time
}

func (e UpdatedEvent) EventType() event.Type { return event.TypeLabRecordUpdated }
func (e UpdatedEvent) Source() string        { return event.SourceLab }
func (e UpdatedEvent) AggregateID() string   { return fmt.Sprintf("%s/%s", e.WorkerID, e.LabID) }
func (e UpdatedEvent) OccurredAt() time.Time { return e.At }
func (e UpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":      e.WorkerID,
		"lab_id":         e.LabID,
		"changed_fields": e.ChangedFields,
	}
}

// StateChangedEvent is registered in addition to UpdatedEvent specifically
// when lab_state itself transitioned, so UI clients that only care about
// state machine transitions need not inspect changed_fields.
type StateChangedEvent struct {
	WorkerID      string
	LabID         string
	PreviousState string
	NewState      string
	At            time.Time
}

func (e StateChangedEvent) EventType() event.Type { return event.TypeLabStateChanged }
func (e StateChangedEvent) Source() string        { return event.SourceLab }
func (e StateChangedEvent) AggregateID() string   { return fmt.Sprintf("%s/%s", e.WorkerID, e.LabID) }
func (e StateChangedEvent) OccurredAt() time.Time { return e.At }
func (e StateChangedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":      e.WorkerID,
		"lab_id":         e.LabID,
		"previous_state": e.PreviousState,
		"new_state":      e.NewState,
	}
}
