// Package worker implements the Worker Aggregate: the
// sole in-memory owner of one appliance's projected state, mutated only
// through its own methods. Most of them register one domain event per
// change; the ones listed on State set some fields without an event.
package worker

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cml-fleet/worker-engine/domain/event"
)

// DefaultChangeThresholdPercent is the default minimum percentage change
// required before a numeric telemetry field is considered "changed" for
// the purposes of suppressing spurious TelemetryUpdated broadcasts.
const DefaultChangeThresholdPercent = 5.0

// Aggregate is the Worker Aggregate root.
type Aggregate struct {
	state   State
	pending []event.Event
}

// ID returns the aggregate identifier.
func (a *Aggregate) ID() string { return a.state.ID }

// State returns a defensive copy of the current projected state.
func (a *Aggregate) State() State { return a.state.clone() }

// PendingEvents returns the events registered since the last Drain.
func (a *Aggregate) PendingEvents() []event.Event {
	out := make([]event.Event, len(a.pending))
	copy(out, a.pending)
	return out
}

// DrainEvents returns and clears the pending events. The repository calls
// this only after a successful persist: "publish after
// commit".
func (a *Aggregate) DrainEvents() []event.Event {
	out := a.pending
	a.pending = nil
	return out
}

func (a *Aggregate) register(e event.Event) {
	a.pending = append(a.pending, e)
	apply(&a.state, e)
}

// isTerminal reports whether the aggregate has been terminated; every
// mutating method below short-circuits on this, per invariant 4: "after terminate(), any further state-mutating call is a no-op."
func (a *Aggregate) isTerminal() bool { return a.state.Status.terminal() }

// Create constructs a brand-new worker and registers CreatedEvent.
func Create(name, region, instanceType, imageID, imageName, createdBy string) *Aggregate {
	now := time.Now().UTC()
	a := &Aggregate{}
	a.register(CreatedEvent{
		AggID:        uuid.NewString(),
		Name:         name,
		Region:       region,
		InstanceType: instanceType,
		ImageID:      imageID,
		ImageName:    imageName,
		Status:       StatusPending,
		CreatedAt:    now,
		CreatedBy:    createdBy,
	})
	return a
}

// ImportFromExisting registers an imported worker from an already
// provisioned cloud instance.
func ImportFromExisting(name, region, instanceID, instanceType, imageID, instanceState, publicIP, privateIP, createdBy string) *Aggregate {
	now := time.Now().UTC()
	a := &Aggregate{}
	a.register(ImportedEvent{
		AggID:         uuid.NewString(),
		Name:          name,
		Region:        region,
		InstanceID:    instanceID,
		InstanceType:  instanceType,
		ImageID:       imageID,
		InstanceState: instanceState,
		PublicIP:      publicIP,
		PrivateIP:     privateIP,
		CreatedAt:     now,
		CreatedBy:     createdBy,
	})
	return a
}

// Rehydrate builds an Aggregate from a persisted snapshot (used by the
// repository on Get) without registering any events — the state is already
// durable. Use Replay instead when reconstructing purely from event
// history.
func Rehydrate(st State) *Aggregate {
	return &Aggregate{state: st.clone()}
}

// Replay reconstructs an Aggregate purely by applying a prior event
// history to a fresh state, used by tests to verify the event-sourced
// replay property. No events are left pending.
func Replay(events []event.Event) *Aggregate {
	a := &Aggregate{}
	for _, e := range events {
		apply(&a.state, e)
	}
	return a
}

// UpdateStatus transitions status. Returns false and registers no event if
// the status is unchanged. Transitions out
// of Terminated are rejected silently (invariant 4); transitions into
// Terminated are accepted from any status via this method, but callers
// should generally prefer Terminate() which also stamps terminated_at/by.
func (a *Aggregate) UpdateStatus(newStatus Status) bool {
	if a.isTerminal() {
		return false
	}
	if a.state.Status == newStatus {
		return false
	}
	old := a.state.Status
	a.register(StatusUpdatedEvent{AggID: a.state.ID, OldStatus: old, NewStatus: newStatus, At: time.Now().UTC()})
	return true
}

// UpdateServiceStatus updates lab-service reachability and, optionally,
// the HTTPS endpoint. Registers ServiceStatusUpdated only if either field
// changes.
func (a *Aggregate) UpdateServiceStatus(newStatus ServiceStatus, endpoint string) bool {
	if a.isTerminal() {
		return false
	}
	if a.state.ServiceStatus == newStatus && a.state.HTTPSEndpoint == endpoint {
		return false
	}
	old := a.state.ServiceStatus
	a.register(ServiceStatusUpdatedEvent{
		AggID: a.state.ID, OldStatus: old, NewStatus: newStatus,
		HTTPSEndpoint: endpoint, At: time.Now().UTC(),
	})
	return true
}

// AssignInstance assigns cloud instance details. Fails if instance_id is
// already set to a different value, since instance_id is immutable once
// set on a given aggregate.
func (a *Aggregate) AssignInstance(instanceID, publicIP, privateIP string) error {
	if a.isTerminal() {
		return nil
	}
	if a.state.InstanceID != "" && a.state.InstanceID != instanceID {
		return fmt.Errorf("%w: worker %s has %q, got %q", ErrInstanceAlreadyAssigned, a.state.ID, a.state.InstanceID, instanceID)
	}
	a.register(InstanceAssignedEvent{
		AggID: a.state.ID, InstanceID: instanceID, PublicIP: publicIP, PrivateIP: privateIP,
		At: time.Now().UTC(),
	})
	return nil
}

// UpdateEndpoint registers EndpointUpdated if anything changes. The
// https endpoint is derived as https://<public_ip> when public_ip is
// first observed and endpoint is unset; callers (Metrics Service) compute
// that derivation and pass it in here.
func (a *Aggregate) UpdateEndpoint(httpsEndpoint, publicIP string) bool {
	if a.isTerminal() {
		return false
	}
	if a.state.HTTPSEndpoint == httpsEndpoint && (publicIP == "" || a.state.PublicIP == publicIP) {
		return false
	}
	a.register(EndpointUpdatedEvent{AggID: a.state.ID, HTTPSEndpoint: httpsEndpoint, PublicIP: publicIP, At: time.Now().UTC()})
	return true
}

// UpdateCloudHealth updates instance_state_detail/system_status_check with
// no event if unchanged. This is intentionally a silent
// field update with no dedicated event type: these fall under
// "Cloud metrics" as last-sampled values, not broadcast-worthy deltas on
// their own — TelemetryUpdated carries the broadcast-worthy numeric/boolean
// deltas instead.
func (a *Aggregate) UpdateCloudHealth(instanceStateDetail, systemStatusCheck string) bool {
	if a.isTerminal() {
		return false
	}
	if a.state.InstanceStateDetail == instanceStateDetail && a.state.SystemStatusCheck == systemStatusCheck {
		return false
	}
	a.state.InstanceStateDetail = instanceStateDetail
	a.state.SystemStatusCheck = systemStatusCheck
	a.state.UpdatedAt = time.Now().UTC()
	return true
}

// UpdateInstanceDetails silently refreshes instance_type/image_id/image_name
// from the cloud provider's describe-instance/describe-image responses.
// Like UpdateCloudHealth, this carries no dedicated event: these are
// cloud-reported metadata, not user-visible deltas.
func (a *Aggregate) UpdateInstanceDetails(instanceType, imageID, imageName string) bool {
	if a.isTerminal() {
		return false
	}
	if a.state.InstanceType == instanceType && a.state.ImageID == imageID && a.state.ImageName == imageName {
		return false
	}
	a.state.InstanceType = instanceType
	a.state.ImageID = imageID
	a.state.ImageName = imageName
	a.state.UpdatedAt = time.Now().UTC()
	return true
}

// UpdateCloudTags registers TagsUpdated if the tag set (by key and value)
// differs from the current one.
func (a *Aggregate) UpdateCloudTags(tags map[string]string) bool {
	if a.isTerminal() {
		return false
	}
	if tagsEqual(a.state.CloudTags, tags) {
		return false
	}
	a.register(TagsUpdatedEvent{AggID: a.state.ID, Tags: tags, At: time.Now().UTC()})
	return true
}

func tagsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// UpdateCloudMetrics applies cpu/memory utilization deltas, registering
// TelemetryUpdated only when either numeric metric changed by at least
// thresholdPercent, or a boolean/categorical field changed.
// It also always persists the poll_interval/next_refresh_at timing hints
// independent of whether the event fires: these are UI countdown hints,
// not broadcast-worthy domain deltas.
func (a *Aggregate) UpdateCloudMetrics(cpu, memory *float64, thresholdPercent float64, pollIntervalSeconds int, nextRefreshAt time.Time) bool {
	if a.isTerminal() {
		return false
	}
	changed := changedBeyondThreshold(a.state.CPUUtilization, cpu, thresholdPercent) ||
		changedBeyondThreshold(a.state.MemoryUtilization, memory, thresholdPercent)

	poll := pollIntervalSeconds
	next := nextRefreshAt
	a.state.PollIntervalSeconds = &poll
	a.state.NextRefreshAt = &next

	if !changed {
		// Still record the sampled values even when not broadcast-worthy,
		// so subsequent threshold comparisons are against the latest
		// sample, not a stale one.
		a.state.CPUUtilization = cpu
		a.state.MemoryUtilization = memory
		now := time.Now().UTC()
		a.state.CloudWatchLastCollected = &now
		return false
	}

	a.register(TelemetryUpdatedEvent{
		AggID: a.state.ID, CPUUtilization: cpu, MemoryUtilization: memory,
		LabsCount: a.state.LabsCount, Ready: a.state.Ready,
		LabServiceVersion: a.state.LabServiceVersion, At: time.Now().UTC(),
	})
	return true
}

// UpdateLabMetrics applies lab-service-derived telemetry (version, ready,
// labs_count, system/health/license info). Every field is compared by plain
// equality and any difference registers TelemetryUpdated; thresholdPercent
// is not used, so no lab-derived field goes through the change-threshold
// test.
func (a *Aggregate) UpdateLabMetrics(version string, ready bool, labsCount int, systemInfo, systemHealth, licenseInfo string, thresholdPercent float64) bool {
	if a.isTerminal() {
		return false
	}
	changed := ready != a.state.Ready ||
		labsCount != a.state.LabsCount ||
		version != a.state.LabServiceVersion ||
		systemInfo != a.state.SystemInfo ||
		systemHealth != a.state.SystemHealth ||
		licenseInfo != a.state.LicenseInfo

	a.state.SystemInfo = systemInfo
	a.state.SystemHealth = systemHealth
	a.state.LicenseInfo = licenseInfo
	now := time.Now().UTC()
	a.state.LastSyncedAt = &now

	if !changed {
		return false
	}

	a.register(TelemetryUpdatedEvent{
		AggID: a.state.ID, CPUUtilization: a.state.CPUUtilization, MemoryUtilization: a.state.MemoryUtilization,
		LabsCount: labsCount, Ready: ready, LabServiceVersion: version, At: time.Now().UTC(),
	})
	return true
}

// changedBeyondThreshold reports whether new differs from old by at least
// pct percent. Either side transitioning to/from nil always counts as
// changed (there is no magnitude to compare); nil/nil counts as unchanged.
func changedBeyondThreshold(old, new *float64, pct float64) bool {
	if (old == nil) != (new == nil) {
		return true
	}
	if old == nil && new == nil {
		return false
	}
	if *old == 0 {
		return *new != 0
	}
	delta := (*new - *old) / *old
	if delta < 0 {
		delta = -delta
	}
	return delta*100 >= pct
}

// Terminate sets the terminal status. Any subsequent mutation call on this
// aggregate is a no-op.
func (a *Aggregate) Terminate(terminatedBy string) {
	if a.isTerminal() {
		return
	}
	a.register(TerminatedEvent{AggID: a.state.ID, Name: a.state.Name, TerminatedBy: terminatedBy, At: time.Now().UTC()})
}

// Pause increments the appropriate pause counter and records timestamps.
func (a *Aggregate) Pause(reason, pausedBy string, isAuto bool) {
	if a.isTerminal() {
		return
	}
	a.register(PausedEvent{AggID: a.state.ID, Reason: reason, PausedBy: pausedBy, IsAuto: isAuto, At: time.Now().UTC()})
}

// Resume increments the appropriate resume counter and records timestamps.
func (a *Aggregate) Resume(reason, resumedBy string, isAuto bool) {
	if a.isTerminal() {
		return
	}
	a.register(ResumedEvent{AggID: a.state.ID, Reason: reason, ResumedBy: resumedBy, IsAuto: isAuto, At: time.Now().UTC()})
}

// SkipDataRefresh registers a synthetic DataRefreshSkipped event carrying
// a soft-skip reason for the UI.
func (a *Aggregate) SkipDataRefresh(reason string) {
	a.register(DataRefreshSkippedEvent{AggID: a.state.ID, Reason: reason, At: time.Now().UTC()})
}

// RequestDataRefresh registers a synthetic DataRefreshRequested event used
// by the relay for UI hints.
func (a *Aggregate) RequestDataRefresh(requestedAt time.Time, requestedBy string) {
	a.register(DataRefreshRequestedEvent{AggID: a.state.ID, RequestedBy: requestedBy, At: requestedAt})
}

// RecordActivity updates last_activity_at, used by the idle detector.
func (a *Aggregate) RecordActivity(observedAt time.Time) {
	if a.isTerminal() {
		return
	}
	a.register(ActivityObservedEvent{AggID: a.state.ID, ObservedAt: observedAt})
}

// SetIdleDetectionEnabled toggles idle detection, idempotently.
func (a *Aggregate) SetIdleDetectionEnabled(enabled bool) {
	a.state.IsIdleDetectionEnabled = enabled
	a.state.UpdatedAt = time.Now().UTC()
}

// IsIdle reports whether the worker has been idle beyond thresholdMinutes
// with zero active labs, used by the scheduler's activity detection job.
func (a *Aggregate) IsIdle(thresholdMinutes int) bool {
	if !a.state.IsIdleDetectionEnabled {
		return false
	}
	if a.state.LastActivityAt == nil {
		return false
	}
	if a.state.LabsCount > 0 {
		return false
	}
	idleMinutes := time.Since(*a.state.LastActivityAt).Minutes()
	return idleMinutes >= float64(thresholdMinutes)
}

// CanConnect reports whether the worker is ready for user connections.
func (a *Aggregate) CanConnect() bool {
	return a.state.Status == StatusRunning &&
		a.state.ServiceStatus == ServiceAvailable &&
		a.state.HTTPSEndpoint != ""
}
