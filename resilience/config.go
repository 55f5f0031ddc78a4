package resilience

import (
	"time"

	"github.com/cml-fleet/worker-engine/internal/logging"
)

// CollaboratorCBConfig builds a Config from seconds-based settings plus an
// optional logger hook, used to wire up cloudprovider and labclient's
// breakers without repeating boilerplate.
type CollaboratorCBConfig struct {
	MaxFailures    int
	TimeoutSeconds int
	HalfOpenMax    int
	Logger         *logging.Logger
}

// DefaultCollaboratorCBConfig suits most collaborator HTTP/SDK calls.
func DefaultCollaboratorCBConfig(logger *logging.Logger) Config {
	return buildCBConfig(CollaboratorCBConfig{MaxFailures: 5, TimeoutSeconds: 30, HalfOpenMax: 3, Logger: logger})
}

// StrictCollaboratorCBConfig fails fast; used for the lab HTTPS client,
// whose auth failures should not be masked by lingering half-open probes.
func StrictCollaboratorCBConfig(logger *logging.Logger) Config {
	return buildCBConfig(CollaboratorCBConfig{MaxFailures: 3, TimeoutSeconds: 60, HalfOpenMax: 1, Logger: logger})
}

// LenientCollaboratorCBConfig tolerates more failures; used for the cloud
// metrics call, which is treated as non-critical.
func LenientCollaboratorCBConfig(logger *logging.Logger) Config {
	return buildCBConfig(CollaboratorCBConfig{MaxFailures: 10, TimeoutSeconds: 15, HalfOpenMax: 5, Logger: logger})
}

func buildCBConfig(cfg CollaboratorCBConfig) Config {
	cb := Config{
		MaxFailures: cfg.MaxFailures,
		Timeout:     time.Duration(cfg.TimeoutSeconds) * time.Second,
		HalfOpenMax: cfg.HalfOpenMax,
	}
	if cb.MaxFailures <= 0 {
		cb.MaxFailures = 5
	}
	if cb.Timeout <= 0 {
		cb.Timeout = 30 * time.Second
	}
	if cb.HalfOpenMax <= 0 {
		cb.HalfOpenMax = 3
	}
	if cfg.Logger != nil {
		cb.OnStateChange = func(from, to State) {
			cfg.Logger.WithFields(map[string]interface{}{
				"from_state": from.String(),
				"to_state":   to.String(),
			}).Warn("circuit breaker state changed")
		}
	}
	return cb
}
