// Package event defines the domain event envelope shared by the worker and
// lab aggregates and consumed by the event relay.
package event

import "time"

// Type is a dot-separated, present-tense event type name, e.g.
// "worker.status.updated". It matches the relay's wire format.
type Type string

const (
	TypeWorkerCreated          Type = "worker.created"
	TypeWorkerImported         Type = "worker.imported"
	TypeWorkerStatusUpdated    Type = "worker.status.updated"
	TypeServiceStatusUpdated   Type = "worker.service_status.updated"
	TypeInstanceAssigned       Type = "worker.instance.assigned"
	TypeLicenseUpdated         Type = "worker.license.updated"
	TypeTelemetryUpdated       Type = "worker.telemetry.updated"
	TypeEndpointUpdated        Type = "worker.endpoint.updated"
	TypeWorkerTerminated       Type = "worker.terminated"
	TypeIdleDetected           Type = "worker.idle.detected"
	TypeWorkerPaused           Type = "worker.paused"
	TypeWorkerResumed          Type = "worker.resumed"
	TypeTagsUpdated            Type = "worker.tags.updated"
	TypeActivityObserved       Type = "worker.activity.observed"
	TypeDataRefreshRequested   Type = "worker.refresh.requested"
	TypeDataRefreshSkipped     Type = "worker.refresh.skipped"
	TypeLabRecordCreated       Type = "lab.record.created"
	TypeLabRecordUpdated       Type = "lab.record.updated"
	TypeLabStateChanged        Type = "lab.state.changed"
)

// Source identifies the aggregate kind that produced the event.
const (
	SourceWorker = "domain.worker"
	SourceLab    = "domain.lab"
)

// Event is the common interface implemented by every concrete domain event
// variant. Aggregates register events of this interface; the repository
// drains and publishes them after a successful persist.
type Event interface {
	EventType() Type
	Source() string
	AggregateID() string
	OccurredAt() time.Time
	// Payload returns the event-specific fields to carry in the wire
	// envelope's "data" object (always includes at least aggregate_id).
	Payload() map[string]any
}

// Envelope is the wire format published to the pub/sub bus and delivered to
// relay subscribers,
//
//	{
//	  "type":   "worker.status.updated",
//	  "source": "domain.worker",
//	  "time":   "2025-01-01T12:00:00Z",
//	  "data":   { "worker_id": "...", ... }
//	}
type Envelope struct {
	Type   Type           `json:"type"`
	Source string         `json:"source"`
	Time   time.Time      `json:"time"`
	Data   map[string]any `json:"data"`
}

// NewEnvelope builds the wire envelope for an event.
func NewEnvelope(e Event) Envelope {
	return Envelope{
		Type:   e.EventType(),
		Source: e.Source(),
		Time:   e.OccurredAt().UTC(),
		Data:   e.Payload(),
	}
}
