// Package metricsvc implements the Metrics Service: pure
// orchestration that samples a worker's cloud state and resource
// utilization and applies the result to the aggregate in memory. It
// never persists; the caller (a command handler or scheduled job) calls
// the repository afterward.
package metricsvc

import (
	"context"
	"fmt"
	"time"

	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/cml-fleet/worker-engine/internal/logging"
	"github.com/cml-fleet/worker-engine/internal/metrics"
)

// Result mirrors the original's MetricsResult dataclass.
type Result struct {
	WorkerID         string
	StatusUpdated    bool
	CloudState       string
	CPUUtilization   *float64
	MemoryUtilization *float64
	MetricsCollected bool
	Error            string
}

// NextRunTimeFunc returns the scheduler's actual next fire time for the
// fleet metrics job, when known.
type NextRunTimeFunc func() (time.Time, bool)

// Service collects metrics for a single worker from the cloud provider.
type Service struct {
	cloud        cloudprovider.Client
	nextRunTime  NextRunTimeFunc
	pollInterval time.Duration
	log          *logging.Logger
	metrics      *metrics.Metrics
}

// New builds a Service. nextRunTime may be nil, in which case the
// fallback now+pollInterval is always used.
func New(cloud cloudprovider.Client, pollInterval time.Duration, nextRunTime NextRunTimeFunc, log *logging.Logger, m *metrics.Metrics) *Service {
	return &Service{cloud: cloud, nextRunTime: nextRunTime, pollInterval: pollInterval, log: log, metrics: m}
}

// CollectWorkerMetrics samples cloud status (and, if requested and the
// instance is Running, resource utilization) for one worker and applies
// the result to agg in place. It never returns an error for expected
// upstream conditions (no instance, terminated, instance not found) —
// those are reported via Result.Error, matching the original's
// never-raise contract for a job loop iterating many workers.
func (s *Service) CollectWorkerMetrics(ctx context.Context, agg *worker.Aggregate, collectResourceMetrics bool) Result {
	st := agg.State()

	if st.InstanceID == "" {
		return Result{WorkerID: agg.ID(), CloudState: "unknown", Error: "no instance"}
	}
	if st.Status == worker.StatusTerminated {
		return Result{WorkerID: agg.ID(), CloudState: "terminated", Error: "worker already terminated"}
	}

	start := time.Now()
	status, err := s.cloud.DescribeInstanceStatus(ctx, st.Region, st.InstanceID)
	s.recordCall("describe_instance_status", start, err)
	if err != nil {
		return Result{WorkerID: agg.ID(), CloudState: "error", Error: err.Error()}
	}
	if status == nil {
		return Result{WorkerID: agg.ID(), CloudState: "unknown", Error: fmt.Sprintf("instance %s not found", st.InstanceID)}
	}

	agg.UpdateCloudHealth(status.InstanceStatusCheck, status.SystemStatusCheck)

	newStatus, _ := mapCloudState(status.InstanceState)
	statusUpdated := agg.UpdateStatus(newStatus)

	result := Result{
		WorkerID:      agg.ID(),
		StatusUpdated: statusUpdated,
		CloudState:    status.InstanceState,
	}

	if collectResourceMetrics && newStatus == worker.StatusRunning {
		s.collectUtilization(ctx, agg, st, &result)
	} else {
		// Always persist the poll/next-refresh countdown hints even when
		// resource metrics are not collected this pass.
		agg.UpdateCloudMetrics(st.CPUUtilization, st.MemoryUtilization, worker.DefaultChangeThresholdPercent, int(s.pollInterval.Seconds()), s.nextRefresh())
	}

	s.syncInstanceDetails(ctx, agg, st)

	if s.log != nil {
		s.log.LogRefreshDecision(ctx, agg.ID(), true, fmt.Sprintf("cloud_state=%s status_updated=%v", status.InstanceState, statusUpdated))
	}
	return result
}

func (s *Service) collectUtilization(ctx context.Context, agg *worker.Aggregate, st worker.State, result *Result) {
	start := time.Now()
	util, err := s.cloud.GetResourceUtilization(ctx, st.Region, st.InstanceID)
	s.recordCall("get_resource_utilization", start, err)
	if err != nil {
		// Do not fail the whole operation on a metrics-collection error
		//: log and continue with no metrics this pass.
		if s.log != nil {
			s.log.WithError(err).Warn("failed to collect resource utilization")
		}
		agg.UpdateCloudMetrics(nil, nil, worker.DefaultChangeThresholdPercent, int(s.pollInterval.Seconds()), s.nextRefresh())
		return
	}

	var cpu, mem *float64
	if util != nil {
		cpu, mem = util.CPUPercent, util.MemoryPercent
	}

	agg.UpdateCloudMetrics(cpu, mem, worker.DefaultChangeThresholdPercent, int(s.pollInterval.Seconds()), s.nextRefresh())
	result.CPUUtilization = cpu
	result.MemoryUtilization = mem
	result.MetricsCollected = true
}

func (s *Service) syncInstanceDetails(ctx context.Context, agg *worker.Aggregate, st worker.State) {
	details, err := s.cloud.DescribeInstance(ctx, st.Region, st.InstanceID)
	if err != nil || details == nil {
		return
	}

	agg.UpdateInstanceDetails(details.InstanceType, details.ImageID, st.ImageName)
	agg.UpdateCloudTags(details.Tags)

	if details.PublicIP != "" {
		_ = agg.AssignInstance(st.InstanceID, details.PublicIP, details.PrivateIP)
	}

	// Auto-populate the HTTPS endpoint the first time a public IP is
	// observed and no endpoint is set yet.
	if details.PublicIP != "" && st.HTTPSEndpoint == "" {
		agg.UpdateEndpoint(fmt.Sprintf("https://%s", details.PublicIP), details.PublicIP)
	}
}

func (s *Service) nextRefresh() time.Time {
	if s.nextRunTime != nil {
		if t, ok := s.nextRunTime(); ok {
			return t
		}
	}
	return time.Now().UTC().Add(s.pollInterval)
}

func (s *Service) recordCall(op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordCollaboratorCall("cloud_provider", op, status, time.Since(start))
}

// mapCloudState applies the fixed cloud-state → worker-status mapping of
// defaulting unrecognized states to Pending
// ("best-effort") — deliberately distinct from domain/worker's own
// import-time mapping (mapImportedCloudState), which defaults to Unknown;
// see DESIGN.md for the Open Question resolution.
func mapCloudState(cloudState string) (worker.Status, bool) {
	switch cloudState {
	case "pending":
		return worker.StatusPending, true
	case "running":
		return worker.StatusRunning, true
	case "stopping":
		return worker.StatusStopping, true
	case "stopped":
		return worker.StatusStopped, true
	case "shutting-down":
		return worker.StatusTerminated, true
	case "terminated":
		return worker.StatusTerminated, true
	default:
		return worker.StatusPending, false
	}
}
