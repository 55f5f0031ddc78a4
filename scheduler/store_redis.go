package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// redisStore persists job records in a Redis hash (jobs data, keyed by
// id) plus a sorted set (due ordering, scored by run_at unix seconds),
// mirroring the Postgres store's (data, index2) split without a second
// table. Leader election uses SETNX with a TTL instead of SKIP LOCKED,
// since Redis has no row-level locking primitive.
type redisStore struct {
	client   *redis.Client
	hashKey  string
	dueKey   string
	leasePfx string
}

func newRedisStore(client *redis.Client) *redisStore {
	return &redisStore{
		client:   client,
		hashKey:  "worker_engine:scheduler:jobs",
		dueKey:   "worker_engine:scheduler:due",
		leasePfx: "worker_engine:scheduler:lease:",
	}
}

func (s *redisStore) Upsert(ctx context.Context, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("scheduler: marshal record %s: %w", rec.ID, err)
	}
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.hashKey, rec.ID, data)
	if !rec.RunAt.IsZero() {
		pipe.ZAdd(ctx, s.dueKey, &redis.Z{Score: float64(rec.RunAt.Unix()), Member: rec.ID})
	}
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: upsert record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (Record, bool, error) {
	data, err := s.client.HGet(ctx, s.hashKey, id).Bytes()
	if err == redis.Nil {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("scheduler: get record %s: %w", id, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("scheduler: unmarshal record %s: %w", id, err)
	}
	return rec, true, nil
}

func (s *redisStore) List(ctx context.Context) ([]Record, error) {
	all, err := s.client.HGetAll(ctx, s.hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("scheduler: list records: %w", err)
	}
	out := make([]Record, 0, len(all))
	for id, data := range all {
		var rec Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("scheduler: unmarshal record %s: %w", id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.HDel(ctx, s.hashKey, id)
	pipe.ZRem(ctx, s.dueKey, id)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: delete record %s: %w", id, err)
	}
	return nil
}

// TryLease claims id via SETNX with a TTL: the first process to set the
// key wins the lease, every other process's SetNX call returns false
// until the TTL expires.
func (s *redisStore) TryLease(ctx context.Context, id string, leaseFor time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.leasePfx+id, 1, leaseFor).Result()
	if err != nil {
		return false, fmt.Errorf("scheduler: lease %s: %w", id, err)
	}
	return ok, nil
}
