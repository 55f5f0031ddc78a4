// Package metrics provides the Prometheus metrics surface exposed at
// /metrics by adminserver.
package metrics

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector exported by the worker engine.
type Metrics struct {
	// Command/query dispatch
	CommandsTotal    *prometheus.CounterVec
	CommandDuration  *prometheus.HistogramVec

	// Refresh pipeline
	RefreshDecisionsTotal *prometheus.CounterVec
	RefreshSuppressedTotal *prometheus.CounterVec

	// Job scheduler
	JobExecutionsTotal   *prometheus.CounterVec
	JobExecutionDuration *prometheus.HistogramVec
	JobsInFlight         *prometheus.GaugeVec

	// Event relay
	EventsPublishedTotal *prometheus.CounterVec
	EventsDroppedTotal   *prometheus.CounterVec
	SubscribersGauge     prometheus.Gauge

	// Collaborator calls (cloud SDK, lab HTTPS API, document store)
	CollaboratorCallsTotal    *prometheus.CounterVec
	CollaboratorCallDuration  *prometheus.HistogramVec
	CircuitBreakerTripsTotal  *prometheus.CounterVec

	// Fleet gauges
	WorkersByStatus prometheus.GaugeVec
	ServiceUptime   prometheus.Gauge
}

// New creates a Metrics instance registered against the default registerer.
func New(serviceName string) *Metrics {
	return NewWithRegistry(serviceName, prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a custom
// registerer (tests use a fresh prometheus.NewRegistry() to avoid
// colliding with other test cases' global registrations).
func NewWithRegistry(serviceName string, registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_commands_total", Help: "Total commands/queries dispatched"},
			[]string{"name", "status"},
		),
		CommandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_engine_command_duration_seconds",
				Help:    "Command/query handler duration",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"name"},
		),
		RefreshDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_refresh_decisions_total", Help: "RequestWorkerDataRefresh outcomes"},
			[]string{"scheduled", "reason"},
		),
		RefreshSuppressedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_telemetry_suppressed_total", Help: "Telemetry updates suppressed by the change-threshold policy"},
			[]string{"field"},
		),
		JobExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_job_executions_total", Help: "Scheduled job executions"},
			[]string{"kind", "status"},
		),
		JobExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_engine_job_duration_seconds",
				Help:    "Job execution duration",
				Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"kind"},
		),
		JobsInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "worker_engine_jobs_in_flight", Help: "Currently executing jobs"},
			[]string{"kind"},
		),
		EventsPublishedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_events_published_total", Help: "Domain events published to the relay"},
			[]string{"type"},
		),
		EventsDroppedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_events_dropped_total", Help: "Events dropped because a subscriber queue was full"},
			[]string{"type"},
		),
		SubscribersGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "worker_engine_relay_subscribers", Help: "Currently registered relay subscribers"},
		),
		CollaboratorCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_collaborator_calls_total", Help: "Calls to external collaborators"},
			[]string{"collaborator", "operation", "status"},
		),
		CollaboratorCallDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_engine_collaborator_call_duration_seconds",
				Help:    "External collaborator call duration",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"collaborator", "operation"},
		),
		CircuitBreakerTripsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "worker_engine_circuit_breaker_trips_total", Help: "Circuit breaker state transitions to open"},
			[]string{"collaborator"},
		),
		WorkersByStatus: *prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "worker_engine_workers_by_status", Help: "Fleet size by worker status"},
			[]string{"status"},
		),
		ServiceUptime: prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "worker_engine_uptime_seconds", Help: "Process uptime"},
		),
	}

	if registerer != nil {
		registerer.MustRegister(
			m.CommandsTotal, m.CommandDuration,
			m.RefreshDecisionsTotal, m.RefreshSuppressedTotal,
			m.JobExecutionsTotal, m.JobExecutionDuration, m.JobsInFlight,
			m.EventsPublishedTotal, m.EventsDroppedTotal, m.SubscribersGauge,
			m.CollaboratorCallsTotal, m.CollaboratorCallDuration, m.CircuitBreakerTripsTotal,
			&m.WorkersByStatus, m.ServiceUptime,
		)
	}

	return m
}

// RecordCommand records a command/query dispatch.
func (m *Metrics) RecordCommand(name, status string, duration time.Duration) {
	m.CommandsTotal.WithLabelValues(name, status).Inc()
	m.CommandDuration.WithLabelValues(name).Observe(duration.Seconds())
}

// RecordRefreshDecision records a RequestWorkerDataRefresh outcome.
func (m *Metrics) RecordRefreshDecision(scheduled bool, reason string) {
	m.RefreshDecisionsTotal.WithLabelValues(boolLabel(scheduled), reason).Inc()
}

// RecordJobExecution records one job run.
func (m *Metrics) RecordJobExecution(kind, status string, duration time.Duration) {
	m.JobExecutionsTotal.WithLabelValues(kind, status).Inc()
	m.JobExecutionDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordEventPublished records a successfully published domain event.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records a lossy drop at the relay (subscriber queue full).
func (m *Metrics) RecordEventDropped(eventType string) {
	m.EventsDroppedTotal.WithLabelValues(eventType).Inc()
}

// RecordCollaboratorCall records one external collaborator call.
func (m *Metrics) RecordCollaboratorCall(collaborator, operation, status string, duration time.Duration) {
	m.CollaboratorCallsTotal.WithLabelValues(collaborator, operation, status).Inc()
	m.CollaboratorCallDuration.WithLabelValues(collaborator, operation).Observe(duration.Seconds())
}

// RecordCircuitBreakerTrip records a breaker transition into the open state.
func (m *Metrics) RecordCircuitBreakerTrip(collaborator string) {
	m.CircuitBreakerTripsTotal.WithLabelValues(collaborator).Inc()
}

// UpdateUptime refreshes the process uptime gauge.
func (m *Metrics) UpdateUptime(startTime time.Time) {
	m.ServiceUptime.Set(time.Since(startTime).Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// Enabled reports whether the /metrics endpoint should be mounted.
// Defaults to enabled unless explicitly disabled via METRICS_ENABLED.
func Enabled() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv("METRICS_ENABLED")))
	switch raw {
	case "0", "false", "no", "off":
		return false
	default:
		return true
	}
}

var (
	global   *Metrics
	globalMu sync.Mutex
)

// Init initializes the process-wide Metrics instance.
func Init(serviceName string) *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New(serviceName)
	}
	return global
}

// Global returns the process-wide Metrics instance.
func Global() *Metrics {
	globalMu.Lock()
	defer globalMu.Unlock()
	if global == nil {
		global = New("worker-engine")
	}
	return global
}
