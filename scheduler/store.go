package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/cml-fleet/worker-engine/repository/docstore"
)

// Record is the durable, serializable shape of one job: a minimal
// primitive-typed snapshot. Collaborators (repositories, clients) never
// appear here; they are re-injected fresh as Deps at execution time.
type Record struct {
	ID              string         `json:"id"`
	Kind            string         `json:"kind"`
	Payload         map[string]any `json:"payload,omitempty"`
	RunAt           time.Time      `json:"run_at,omitempty"`
	IntervalSeconds int            `json:"interval_seconds,omitempty"`
	Recurring       bool           `json:"recurring"`
}

// Store persists job records so recurrent jobs survive a restart without
// duplicating (upsert-by-id, id derived from kind name) and one-shot jobs
// survive long enough to still fire after a process restart.
//
// TryLease provides the leader-election primitive for a shared backend:
// at most one process holds the lease for a given record at a time, for
// leaseFor. The in-process backend ("memory") applies the same rule within
// its one process: a second TryLease on a record fails until the lease
// expires.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
	TryLease(ctx context.Context, id string, leaseFor time.Duration) (bool, error)
}

// NewStore selects a Store backend by name. "memory" never requires docs
// or redisClient; "postgres" requires docs; "redis" requires redisClient.
func NewStore(backend string, docs *docstore.Store, redisClient *redis.Client) (Store, error) {
	switch backend {
	case "", "memory":
		return newMemoryStore(), nil
	case "postgres":
		if docs == nil {
			return nil, fmt.Errorf("scheduler: postgres job store backend requires a document store")
		}
		return newPostgresStore(docs), nil
	case "redis":
		if redisClient == nil {
			return nil, fmt.Errorf("scheduler: redis job store backend requires a redis client")
		}
		return newRedisStore(redisClient), nil
	default:
		return nil, fmt.Errorf("scheduler: unknown job store backend %q", backend)
	}
}
