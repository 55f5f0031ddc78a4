package scheduler

import "github.com/cml-fleet/worker-engine/internal/config"

// DefaultRecurrentSpecs builds the fleet's four always-on recurrent jobs
// from cfg, wiring each job kind to its own configured cadence instead of
// sharing one global interval.
func DefaultRecurrentSpecs(cfg *config.Config) []RecurrentSpec {
	return []RecurrentSpec{
		{Kind: KindFleetMetrics, Interval: cfg.Monitoring.FleetJobInterval},
		{Kind: KindLabsRefresh, Interval: cfg.Monitoring.LabsRefreshJobInterval},
		{Kind: KindActivityDetection, Interval: cfg.IdleDetection.JobInterval},
		{Kind: KindAutoImport, Interval: cfg.AutoImport.JobInterval},
	}
}
