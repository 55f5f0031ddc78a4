package commands

import (
	"time"

	"github.com/cml-fleet/worker-engine/cloudprovider"
	"github.com/cml-fleet/worker-engine/internal/config"
	"github.com/cml-fleet/worker-engine/internal/logging"
	"github.com/cml-fleet/worker-engine/internal/metrics"
	"github.com/cml-fleet/worker-engine/labclient"
	"github.com/cml-fleet/worker-engine/metricsvc"
	"github.com/cml-fleet/worker-engine/throttle"
)

// JobScheduler is the narrow view of the Job Scheduler that commands needs:
// reading a job's next fire time (to implement the decision engine's
// imminent-job and already-scheduled checks) and enqueuing a one-shot run.
// Defined here rather than depending on package scheduler directly, since
// scheduler's jobs call back into these command handlers.
type JobScheduler interface {
	// NextRun reports the next fire time for jobID and whether the job is
	// currently registered with a pending run at all.
	NextRun(jobID string) (runAt time.Time, scheduled bool)
	// EnqueueOnce schedules a one-shot run of jobID at runAt, replacing any
	// existing one-shot of the same id.
	EnqueueOnce(jobID string, runAt time.Time, payload map[string]any) error
}

// LabClientFactory builds a lab HTTPS API client bound to one worker's
// endpoint, sharing the fleet-wide username/password/TLS settings.
type LabClientFactory func(httpsEndpoint string) labclient.API

// Service bundles every collaborator the command/query handlers need.
// Constructed once at startup and shared by the admin server, the
// scheduler's jobs, and (indirectly) the relay's event-sourced triggers.
type Service struct {
	Workers WorkerStore
	Labs    LabStore
	Cloud   cloudprovider.Client
	LabAPI  LabClientFactory
	Metrics *metricsvc.Service
	Throttle *throttle.Throttle
	Scheduler JobScheduler
	Config  *config.Config
	Log     *logging.Logger
	Stats   *metrics.Metrics
}

// New constructs a Service from its collaborators.
func New(
	workers WorkerStore,
	labs LabStore,
	cloud cloudprovider.Client,
	labAPI LabClientFactory,
	metricsSvc *metricsvc.Service,
	thr *throttle.Throttle,
	sched JobScheduler,
	cfg *config.Config,
	log *logging.Logger,
	stats *metrics.Metrics,
) *Service {
	return &Service{
		Workers: workers, Labs: labs, Cloud: cloud, LabAPI: labAPI,
		Metrics: metricsSvc, Throttle: thr, Scheduler: sched,
		Config: cfg, Log: log, Stats: stats,
	}
}

func (s *Service) recordCommand(name string, start time.Time, err error) {
	if s.Stats == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.Stats.RecordCommand(name, status, time.Since(start))
}
