// Package logging provides the application-wide structured logger used by
// every package except the Event Relay hot path (zerolog, see relay) and
// the Job Scheduler (zap, see scheduler).
package logging

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContextKey is the type for context keys carried by WithContext.
type ContextKey string

const (
	TraceIDKey ContextKey = "trace_id"
	WorkerIDKey ContextKey = "worker_id"
	ServiceKey ContextKey = "service"
)

// Logger wraps logrus.Logger with request/worker-scoped field injection.
type Logger struct {
	*logrus.Logger
	service string
}

// New creates a Logger for the named service.
func New(service, level, format string) *Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
		})
	}

	logger.SetOutput(os.Stdout)

	return &Logger{Logger: logger, service: service}
}

// NewFromEnv builds a logger using LOG_LEVEL/LOG_FORMAT, defaulting to
// info/json.
func NewFromEnv(service string) *Logger {
	level := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if level == "" {
		level = "info"
	}
	format := strings.TrimSpace(os.Getenv("LOG_FORMAT"))
	if format == "" {
		format = "json"
	}
	return New(service, level, format)
}

// WithContext returns an entry carrying trace_id/worker_id/service fields
// found on ctx.
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithField("service", l.service)
	if traceID := ctx.Value(TraceIDKey); traceID != nil {
		entry = entry.WithField("trace_id", traceID)
	}
	if workerID := ctx.Value(WorkerIDKey); workerID != nil {
		entry = entry.WithField("worker_id", workerID)
	}
	return entry
}

// WithFields returns an entry with service plus the given fields.
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["service"] = l.service
	return l.Logger.WithFields(fields)
}

// WithError returns an entry carrying the error's message.
func (l *Logger) WithError(err error) *logrus.Entry {
	return l.Logger.WithFields(logrus.Fields{"service": l.service, "error": err.Error()})
}

// NewTraceID generates a trace id for a new command/query invocation.
func NewTraceID() string { return uuid.New().String() }

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

// WithWorkerID attaches a worker id to ctx, used by job execution and
// command handlers so every log line in the call chain is correlated.
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	return context.WithValue(ctx, WorkerIDKey, workerID)
}

// LogCollaboratorCall logs a call to an external collaborator (cloud SDK,
// lab HTTPS API, document store, pub/sub).
func (l *Logger) LogCollaboratorCall(ctx context.Context, collaborator, operation string, duration time.Duration, err error) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"collaborator": collaborator,
		"operation":    operation,
		"duration_ms":  duration.Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Error("collaborator call failed")
		return
	}
	entry.Debug("collaborator call succeeded")
}

// LogRefreshDecision logs the outcome of RequestWorkerDataRefresh's
// decision engine, one line per call regardless of outcome
// so the throttle/imminent-job/happy-path branches are all observable.
func (l *Logger) LogRefreshDecision(ctx context.Context, workerID string, scheduled bool, reason string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"worker_id": workerID,
		"scheduled": scheduled,
		"reason":    reason,
	}).Info("data refresh requested")
}

// LogAudit records a command's effect for operational audit trails.
func (l *Logger) LogAudit(ctx context.Context, action, resourceID, result string) {
	l.WithContext(ctx).WithFields(logrus.Fields{
		"action":      action,
		"resource_id": resourceID,
		"result":      result,
		"audit":       true,
	}).Info("audit")
}

var defaultLogger *Logger

// InitDefault initializes the package-wide default logger.
func InitDefault(service, level, format string) {
	defaultLogger = New(service, level, format)
}

// Default returns the package-wide logger, initializing a fallback if
// InitDefault was never called.
func Default() *Logger {
	if defaultLogger == nil {
		defaultLogger = New("worker-engine", "info", "json")
	}
	return defaultLogger
}
