package worker

import (
	"time"

	"github.com/cml-fleet/worker-engine/domain/event"
)

// CreatedEvent is registered by Create.
type CreatedEvent struct {
	AggID        string
	Name         string
	Region       string
	InstanceID   string
	InstanceType string
	ImageID      string
	ImageName    string
	Status       Status
	CreatedAt    time.Time
	CreatedBy    string
}

func (e CreatedEvent) EventType() event.Type   { return event.TypeWorkerCreated }
func (e CreatedEvent) Source() string          { return event.SourceWorker }
func (e CreatedEvent) AggregateID() string     { return e.AggID }
func (e CreatedEvent) OccurredAt() time.Time   { return e.CreatedAt }
func (e CreatedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":     e.AggID,
		"name":          e.Name,
		"region":        e.Region,
		"instance_id":   e.InstanceID,
		"instance_type": e.InstanceType,
		"image_id":      e.ImageID,
		"image_name":    e.ImageName,
		"status":        string(e.Status),
		"created_by":    e.CreatedBy,
	}
}

// ImportedEvent is registered by ImportFromExisting.
type ImportedEvent struct {
	AggID         string
	Name          string
	Region        string
	InstanceID    string
	InstanceType  string
	ImageID       string
	ImageName     string
	InstanceState string
	PublicIP      string
	PrivateIP     string
	CreatedAt     time.Time
	CreatedBy     string
}

func (e ImportedEvent) EventType() event.Type   { return event.TypeWorkerImported }
func (e ImportedEvent) Source() string          { return event.SourceWorker }
func (e ImportedEvent) AggregateID() string     { return e.AggID }
func (e ImportedEvent) OccurredAt() time.Time   { return e.CreatedAt }
func (e ImportedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":      e.AggID,
		"name":           e.Name,
		"region":         e.Region,
		"instance_id":    e.InstanceID,
		"instance_type":  e.InstanceType,
		"instance_state": e.InstanceState,
		"public_ip":      e.PublicIP,
		"created_by":     e.CreatedBy,
	}
}

// StatusUpdatedEvent is registered by UpdateStatus.
type StatusUpdatedEvent struct {
	AggID     string
	OldStatus Status
	NewStatus Status
	At        time.Time
}

func (e StatusUpdatedEvent) EventType() event.Type  { return event.TypeWorkerStatusUpdated }
func (e StatusUpdatedEvent) Source() string         { return event.SourceWorker }
func (e StatusUpdatedEvent) AggregateID() string    { return e.AggID }
func (e StatusUpdatedEvent) OccurredAt() time.Time  { return e.At }
func (e StatusUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":  e.AggID,
		"old_status": string(e.OldStatus),
		"new_status": string(e.NewStatus),
	}
}

// ServiceStatusUpdatedEvent is registered by UpdateServiceStatus.
type ServiceStatusUpdatedEvent struct {
	AggID         string
	OldStatus     ServiceStatus
	NewStatus     ServiceStatus
	HTTPSEndpoint string
	At            time.Time
}

func (e ServiceStatusUpdatedEvent) EventType() event.Type { return event.TypeServiceStatusUpdated }
func (e ServiceStatusUpdatedEvent) Source() string        { return event.SourceWorker }
func (e ServiceStatusUpdatedEvent) AggregateID() string   { return e.AggID }
func (e ServiceStatusUpdatedEvent) OccurredAt() time.Time { return e.At }
func (e ServiceStatusUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":      e.AggID,
		"old_status":     string(e.OldStatus),
		"new_status":     string(e.NewStatus),
		"https_endpoint": e.HTTPSEndpoint,
	}
}

// InstanceAssignedEvent is registered by AssignInstance.
type InstanceAssignedEvent struct {
	AggID      string
	InstanceID string
	PublicIP   string
	PrivateIP  string
	At         time.Time
}

func (e InstanceAssignedEvent) EventType() event.Type  { return event.TypeInstanceAssigned }
func (e InstanceAssignedEvent) Source() string         { return event.SourceWorker }
func (e InstanceAssignedEvent) AggregateID() string    { return e.AggID }
func (e InstanceAssignedEvent) OccurredAt() time.Time  { return e.At }
func (e InstanceAssignedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":   e.AggID,
		"instance_id": e.InstanceID,
		"public_ip":   e.PublicIP,
		"private_ip":  e.PrivateIP,
	}
}

// LicenseUpdatedEvent carries a license-info change. No Aggregate method
// registers it; UpdateLabMetrics sets license info directly.
type LicenseUpdatedEvent struct {
	AggID       string
	LicenseInfo string
	At          time.Time
}

func (e LicenseUpdatedEvent) EventType() event.Type  { return event.TypeLicenseUpdated }
func (e LicenseUpdatedEvent) Source() string         { return event.SourceWorker }
func (e LicenseUpdatedEvent) AggregateID() string    { return e.AggID }
func (e LicenseUpdatedEvent) OccurredAt() time.Time  { return e.At }
func (e LicenseUpdatedEvent) Payload() map[string]any {
	return map[string]any{"worker_id": e.AggID, "license_info": e.LicenseInfo}
}

// TelemetryUpdatedEvent is registered by UpdateCloudMetrics when the
// change-threshold test passes, and by UpdateLabMetrics when any
// lab-derived field differs from the stored value.
type TelemetryUpdatedEvent struct {
	AggID             string
	CPUUtilization    *float64
	MemoryUtilization *float64
	LabsCount         int
	Ready             bool
	LabServiceVersion string
	At                time.Time
}

func (e TelemetryUpdatedEvent) EventType() event.Type { return event.TypeTelemetryUpdated }
func (e TelemetryUpdatedEvent) Source() string        { return event.SourceWorker }
func (e TelemetryUpdatedEvent) AggregateID() string   { return e.AggID }
func (e TelemetryUpdatedEvent) OccurredAt() time.Time { return e.At }
func (e TelemetryUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":          e.AggID,
		"cpu_utilization":    e.CPUUtilization,
		"memory_utilization": e.MemoryUtilization,
		"labs_count":         e.LabsCount,
		"ready":              e.Ready,
	}
}

// EndpointUpdatedEvent is registered by UpdateEndpoint.
type EndpointUpdatedEvent struct {
	AggID         string
	HTTPSEndpoint string
	PublicIP      string
	At            time.Time
}

func (e EndpointUpdatedEvent) EventType() event.Type  { return event.TypeEndpointUpdated }
func (e EndpointUpdatedEvent) Source() string         { return event.SourceWorker }
func (e EndpointUpdatedEvent) AggregateID() string    { return e.AggID }
func (e EndpointUpdatedEvent) OccurredAt() time.Time  { return e.At }
func (e EndpointUpdatedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":      e.AggID,
		"https_endpoint": e.HTTPSEndpoint,
		"public_ip":      e.PublicIP,
	}
}

// TerminatedEvent is registered by Terminate.
type TerminatedEvent struct {
	AggID        string
	Name         string
	TerminatedBy string
	At           time.Time
}

func (e TerminatedEvent) EventType() event.Type  { return event.TypeWorkerTerminated }
func (e TerminatedEvent) Source() string         { return event.SourceWorker }
func (e TerminatedEvent) AggregateID() string    { return e.AggID }
func (e TerminatedEvent) OccurredAt() time.Time  { return e.At }
func (e TerminatedEvent) Payload() map[string]any {
	return map[string]any{"worker_id": e.AggID, "name": e.Name, "terminated_by": e.TerminatedBy}
}

// IdleDetectedEvent marks a worker as idle and eligible for pause. No
// Aggregate method registers it.
type IdleDetectedEvent struct {
	AggID          string
	IdleForMinutes float64
	At             time.Time
}

func (e IdleDetectedEvent) EventType() event.Type  { return event.TypeIdleDetected }
func (e IdleDetectedEvent) Source() string         { return event.SourceWorker }
func (e IdleDetectedEvent) AggregateID() string    { return e.AggID }
func (e IdleDetectedEvent) OccurredAt() time.Time  { return e.At }
func (e IdleDetectedEvent) Payload() map[string]any {
	return map[string]any{"worker_id": e.AggID, "idle_for_minutes": e.IdleForMinutes}
}

// PausedEvent is registered by Pause.
type PausedEvent struct {
	AggID    string
	Reason   string
	PausedBy string
	IsAuto   bool
	At       time.Time
}

func (e PausedEvent) EventType() event.Type  { return event.TypeWorkerPaused }
func (e PausedEvent) Source() string         { return event.SourceWorker }
func (e PausedEvent) AggregateID() string    { return e.AggID }
func (e PausedEvent) OccurredAt() time.Time  { return e.At }
func (e PausedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id": e.AggID,
		"reason":    e.Reason,
		"paused_by": e.PausedBy,
		"is_auto":   e.IsAuto,
	}
}

// ResumedEvent is registered by Resume.
type ResumedEvent struct {
	AggID     string
	Reason    string
	ResumedBy string
	IsAuto    bool
	At        time.Time
}

func (e ResumedEvent) EventType() event.Type  { return event.TypeWorkerResumed }
func (e ResumedEvent) Source() string         { return event.SourceWorker }
func (e ResumedEvent) AggregateID() string    { return e.AggID }
func (e ResumedEvent) OccurredAt() time.Time  { return e.At }
func (e ResumedEvent) Payload() map[string]any {
	return map[string]any{
		"worker_id":  e.AggID,
		"reason":     e.Reason,
		"resumed_by": e.ResumedBy,
		"is_auto":    e.IsAuto,
	}
}

// TagsUpdatedEvent is registered by UpdateCloudTags.
type TagsUpdatedEvent struct {
	AggID string
	Tags  map[string]string
	At    time.Time
}

func (e TagsUpdatedEvent) EventType() event.Type  { return event.TypeTagsUpdated }
func (e TagsUpdatedEvent) Source() string         { return event.SourceWorker }
func (e TagsUpdatedEvent) AggregateID() string    { return e.AggID }
func (e TagsUpdatedEvent) OccurredAt() time.Time  { return e.At }
func (e TagsUpdatedEvent) Payload() map[string]any {
	return map[string]any{"worker_id": e.AggID, "tags": e.Tags}
}

// ActivityObservedEvent is registered by RecordActivity.
type ActivityObservedEvent struct {
	AggID      string
	ObservedAt time.Time
}

func (e ActivityObservedEvent) EventType() event.Type  { return event.TypeActivityObserved }
func (e ActivityObservedEvent) Source() string         { return event.SourceWorker }
func (e ActivityObservedEvent) AggregateID() string    { return e.AggID }
func (e ActivityObservedEvent) OccurredAt() time.Time  { return e.ObservedAt }
func (e ActivityObservedEvent) Payload() map[string]any {
	return map[string]any{"worker_id": e.AggID}
}

// DataRefreshRequestedEvent is registered by RequestDataRefresh. It mutates
// no domain field; it exists so the relay can notify the UI a refresh was
// accepted.
type DataRefreshRequestedEvent struct {
	AggID       string
	RequestedBy string
	At          time.Time
}

func (e DataRefreshRequestedEvent) EventType() event.Type { return event.TypeDataRefreshRequested }
func (e DataRefreshRequestedEvent) Source() string        { return event.SourceWorker }
func (e DataRefreshRequestedEvent) AggregateID() string   { return e.AggID }
func (e DataRefreshRequestedEvent) OccurredAt() time.Time { return e.At }
func (e DataRefreshRequestedEvent) Payload() map[string]any {
	return map[string]any{"worker_id": e.AggID, "requested_by": e.RequestedBy}
}

// DataRefreshSkippedEvent is registered by SkipDataRefresh, carrying the
// soft-skip reason so the UI can distinguish "refused" from "failed".
type DataRefreshSkippedEvent struct {
	AggID  string
	Reason string
	At     time.Time
}

func (e DataRefreshSkippedEvent) EventType() event.Type { return event.TypeDataRefreshSkipped }
func (e DataRefreshSkippedEvent) Source() string        { return event.SourceWorker }
func (e DataRefreshSkippedEvent) AggregateID() string   { return e.AggID }
func (e DataRefreshSkippedEvent) OccurredAt() time.Time { return e.At }
func (e DataRefreshSkippedEvent) Payload() map[string]any {
	return map[string]any{"worker_id": e.AggID, "reason": e.Reason}
}
