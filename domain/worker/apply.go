package worker

import "github.com/cml-fleet/worker-engine/domain/event"

// apply mutates st in place according to e. Replay and every
// event-registering aggregate method funnel through it. The fields that
// some aggregate methods set directly (see State) are not carried by any
// event, so replaying published events against a fresh state does not
// reproduce them.
func apply(st *State, e event.Event) {
	switch ev := e.(type) {
	case CreatedEvent:
		st.ID = ev.AggID
		st.Name = ev.Name
		st.Region = ev.Region
		st.InstanceID = ev.InstanceID
		st.InstanceType = ev.InstanceType
		st.ImageID = ev.ImageID
		st.ImageName = ev.ImageName
		st.Status = ev.Status
		st.ServiceStatus = ServiceUnavailable
		st.CreatedAt = ev.CreatedAt
		st.CreatedBy = ev.CreatedBy
		st.UpdatedAt = ev.CreatedAt
		st.IsIdleDetectionEnabled = true

	case ImportedEvent:
		st.ID = ev.AggID
		st.Name = ev.Name
		st.Region = ev.Region
		st.InstanceID = ev.InstanceID
		st.InstanceType = ev.InstanceType
		st.ImageID = ev.ImageID
		st.ImageName = ev.ImageName
		st.PublicIP = ev.PublicIP
		st.PrivateIP = ev.PrivateIP
		st.ServiceStatus = ServiceUnavailable
		st.CreatedAt = ev.CreatedAt
		st.CreatedBy = ev.CreatedBy
		st.UpdatedAt = ev.CreatedAt
		st.IsIdleDetectionEnabled = true
		st.Status = mapImportedCloudState(ev.InstanceState)

	case StatusUpdatedEvent:
		st.Status = ev.NewStatus
		st.UpdatedAt = ev.At

	case ServiceStatusUpdatedEvent:
		st.ServiceStatus = ev.NewStatus
		if ev.HTTPSEndpoint != "" {
			st.HTTPSEndpoint = ev.HTTPSEndpoint
		}
		st.UpdatedAt = ev.At

	case InstanceAssignedEvent:
		st.InstanceID = ev.InstanceID
		if ev.PublicIP != "" {
			st.PublicIP = ev.PublicIP
		}
		if ev.PrivateIP != "" {
			st.PrivateIP = ev.PrivateIP
		}
		st.UpdatedAt = ev.At

	case LicenseUpdatedEvent:
		st.LicenseInfo = ev.LicenseInfo
		st.UpdatedAt = ev.At

	case TelemetryUpdatedEvent:
		st.CPUUtilization = ev.CPUUtilization
		st.MemoryUtilization = ev.MemoryUtilization
		st.LabsCount = ev.LabsCount
		st.Ready = ev.Ready
		if ev.LabServiceVersion != "" {
			st.LabServiceVersion = ev.LabServiceVersion
		}
		now := ev.At
		st.CloudWatchLastCollected = &now
		st.UpdatedAt = ev.At

	case EndpointUpdatedEvent:
		st.HTTPSEndpoint = ev.HTTPSEndpoint
		if ev.PublicIP != "" {
			st.PublicIP = ev.PublicIP
		}
		st.UpdatedAt = ev.At

	case TerminatedEvent:
		st.Status = StatusTerminated
		st.ServiceStatus = ServiceUnavailable
		at := ev.At
		st.TerminatedAt = &at
		st.TerminatedBy = ev.TerminatedBy
		st.UpdatedAt = ev.At

	case IdleDetectedEvent:
		st.UpdatedAt = ev.At

	case PausedEvent:
		if ev.IsAuto {
			st.AutoPauseCount++
		} else {
			st.ManualPauseCount++
		}
		at := ev.At
		st.LastPausedAt = &at
		st.PauseReason = ev.Reason
		st.PausedBy = ev.PausedBy
		st.UpdatedAt = ev.At

	case ResumedEvent:
		if ev.IsAuto {
			st.AutoResumeCount++
		} else {
			st.ManualResumeCount++
		}
		at := ev.At
		st.LastResumedAt = &at
		st.UpdatedAt = ev.At

	case TagsUpdatedEvent:
		st.CloudTags = ev.Tags
		st.UpdatedAt = ev.At

	case ActivityObservedEvent:
		at := ev.ObservedAt
		st.LastActivityAt = &at
		st.UpdatedAt = ev.ObservedAt

	case DataRefreshRequestedEvent:
		st.UpdatedAt = ev.At

	case DataRefreshSkippedEvent:
		st.UpdatedAt = ev.At
	}
}

// mapImportedCloudState maps the cloud instance state observed at import
// time to a worker Status. Unlike the Metrics Service's steady-state mapping
//, an unrecognized
// state at import time lands in the explicit Unknown status described by
// the state-machine diagram, since we have no prior status
// to best-effort-preserve.
func mapImportedCloudState(cloudState string) Status {
	switch cloudState {
	case "pending":
		return StatusPending
	case "running":
		return StatusRunning
	case "stopping":
		return StatusStopping
	case "stopped":
		return StatusStopped
	case "shutting-down", "terminated":
		return StatusTerminated
	default:
		return StatusUnknown
	}
}
