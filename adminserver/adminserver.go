// Package adminserver exposes the worker engine's operational surface: a
// small gorilla/mux router serving liveness, readiness, Prometheus
// metrics, and a narrow read-only debug view over the fleet. It carries
// no worker/lab mutation endpoints and no authentication — it is not the
// command/query controller layer, which this module does not implement.
package adminserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cml-fleet/worker-engine/commands"
	"github.com/cml-fleet/worker-engine/domain/worker"
	"github.com/cml-fleet/worker-engine/internal/logging"
)

// Pinger is the narrow readiness check every collaborator the admin
// surface cares about exposes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a plain function to Pinger, for collaborators (the
// document store, the cloud client) that don't themselves expose a Ping
// method.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server hosts the admin/health HTTP surface.
type Server struct {
	router   *mux.Router
	http     *http.Server
	commands *commands.Service
	log      *logging.Logger
	version  string
	startedAt time.Time

	storePing Pinger
	cloudPing Pinger
}

// Config configures a Server.
type Config struct {
	Addr      string
	Commands  *commands.Service
	Log       *logging.Logger
	Version   string
	StorePing Pinger // nil disables the store leg of /readyz
	CloudPing Pinger // nil disables the cloud leg of /readyz
}

// New builds a Server and registers its routes, but does not start
// listening — call Start for that.
func New(cfg Config) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		commands:  cfg.Commands,
		log:       cfg.Log,
		version:   cfg.Version,
		startedAt: time.Now(),
		storePing: cfg.StorePing,
		cloudPing: cfg.CloudPing,
	}

	s.router.Use(loggingMiddleware(cfg.Log))
	s.router.Use(recoveryMiddleware(cfg.Log))

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/debug/workers", s.handleDebugWorkers).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s
}

// Start begins serving in a background goroutine. Errors other than a
// clean shutdown are logged, not returned, since the caller has already
// moved on to blocking on the shutdown signal by the time they'd surface.
func (s *Server) Start() {
	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.log != nil {
				s.log.WithError(err).Error("admin server stopped unexpectedly")
			}
		}
	}()
}

// Shutdown gracefully stops the HTTP server, waiting for in-flight
// requests to finish until ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type healthResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	UptimeSec int64  `json:"uptime_seconds"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   "worker-engine",
		Version:   s.version,
		UptimeSec: int64(time.Since(s.startedAt).Seconds()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

type readyResponse struct {
	Ready bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// handleReadyz pings every configured collaborator with a bounded
// deadline and reports ready only if every check passes — a degraded
// document store or cloud provider must take this process out of load
// balancer rotation, not just log a warning.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true

	if s.storePing != nil {
		if err := s.storePing.Ping(ctx); err != nil {
			checks["store"] = err.Error()
			ready = false
		} else {
			checks["store"] = "ok"
		}
	}
	if s.cloudPing != nil {
		if err := s.cloudPing.Ping(ctx); err != nil {
			checks["cloud"] = err.Error()
			ready = false
		} else {
			checks["cloud"] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, readyResponse{Ready: ready, Checks: checks})
}

// handleDebugWorkers dispatches the read-only GetCMLWorkersByRegion query
// for operational visibility; it is ambient observability, not the
// excluded command/query dispatch surface.
func (s *Server) handleDebugWorkers(w http.ResponseWriter, r *http.Request) {
	if s.commands == nil {
		http.Error(w, "commands not wired", http.StatusServiceUnavailable)
		return
	}
	region := r.URL.Query().Get("region")
	if region == "" {
		http.Error(w, "region query parameter is required", http.StatusBadRequest)
		return
	}

	var status *worker.Status
	if raw := r.URL.Query().Get("status"); raw != "" {
		st := worker.Status(raw)
		status = &st
	}

	res := s.commands.GetCMLWorkersByRegion(r.Context(), region, status)
	writeJSON(w, res.StatusCode, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func loggingMiddleware(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			if log != nil {
				log.WithFields(map[string]interface{}{
					"method":   r.Method,
					"path":     r.URL.Path,
					"duration": time.Since(start).String(),
				}).Info("admin request")
			}
		})
	}
}

func recoveryMiddleware(log *logging.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.WithFields(map[string]interface{}{"panic": fmt.Sprintf("%v", rec)}).Error("admin handler panicked")
					}
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
