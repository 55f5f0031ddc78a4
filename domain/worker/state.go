package worker

import "time"

// State holds the full projected attribute set, mirroring the attribute
// table. Most aggregate methods change it only by registering an event and
// immediately applying it (apply.go). UpdateCloudHealth,
// UpdateInstanceDetails, SetIdleDetectionEnabled, UpdateCloudMetrics (its
// timing hints, and samples below the change threshold) and
// UpdateLabMetrics (system/health/license info and last_synced_at) set
// fields directly without an event, so replaying the events against a zero
// State does not reproduce those fields.
type State struct {
	// Identity
	ID        string
	Name      string
	CreatedAt time.Time
	CreatedBy string

	// Cloud
	Region       string
	InstanceID   string // empty until first assigned; immutable once set
	InstanceType string
	ImageID      string
	ImageName    string
	PublicIP     string
	PrivateIP    string
	CloudTags    map[string]string

	// Lifecycle
	Status        Status
	ServiceStatus ServiceStatus

	// Endpoint
	HTTPSEndpoint string

	// Cloud metrics
	InstanceStateDetail      string
	SystemStatusCheck        string
	DetailedMonitoringEnabled bool

	// Resource metrics
	CPUUtilization          *float64
	MemoryUtilization       *float64
	CloudWatchLastCollected *time.Time

	// Lab metrics
	LabServiceVersion string
	Ready             bool
	LabsCount         int
	LicenseInfo       string
	SystemInfo        string
	SystemHealth      string
	LastSyncedAt      *time.Time

	// Activity
	LastActivityAt          *time.Time
	IsIdleDetectionEnabled   bool
	TargetPauseAt            *time.Time

	// Pause/resume counters
	AutoPauseCount    int
	ManualPauseCount  int
	AutoResumeCount   int
	ManualResumeCount int
	LastPausedAt      *time.Time
	LastResumedAt     *time.Time
	PauseReason       string
	PausedBy          string

	// Refresh timing
	PollIntervalSeconds *int
	NextRefreshAt       *time.Time

	// Terminal
	TerminatedAt *time.Time
	TerminatedBy string

	UpdatedAt time.Time
}

// clone returns a deep-enough copy for safe external hand-off (tags map and
// pointer fields are copied so callers cannot mutate aggregate internals).
func (s State) clone() State {
	out := s
	if s.CloudTags != nil {
		out.CloudTags = make(map[string]string, len(s.CloudTags))
		for k, v := range s.CloudTags {
			out.CloudTags[k] = v
		}
	}
	out.CPUUtilization = clonePtr(s.CPUUtilization)
	out.MemoryUtilization = clonePtr(s.MemoryUtilization)
	out.CloudWatchLastCollected = cloneTimePtr(s.CloudWatchLastCollected)
	out.LastSyncedAt = cloneTimePtr(s.LastSyncedAt)
	out.LastActivityAt = cloneTimePtr(s.LastActivityAt)
	out.TargetPauseAt = cloneTimePtr(s.TargetPauseAt)
	out.LastPausedAt = cloneTimePtr(s.LastPausedAt)
	out.LastResumedAt = cloneTimePtr(s.LastResumedAt)
	out.NextRefreshAt = cloneTimePtr(s.NextRefreshAt)
	out.TerminatedAt = cloneTimePtr(s.TerminatedAt)
	if s.PollIntervalSeconds != nil {
		v := *s.PollIntervalSeconds
		out.PollIntervalSeconds = &v
	}
	return out
}

func clonePtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
