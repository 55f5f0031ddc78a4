package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cml-fleet/worker-engine/repository/docstore"
)

// postgresStore persists job records in the same docstore-shaped "jobs"
// table RefreshWorkerLabs's siblings use (id, data jsonb, index1, index2),
// with index1 holding the job kind and index2 the run_at timestamp
// (RFC3339) for ordered polling. The locked_until column added by
// migration 000005 is not part of the generic docstore.Collection
// surface, so TryLease issues its own SQL against the table directly.
type postgresStore struct {
	store *docstore.Store
	col   *docstore.Collection[Record]
}

func newPostgresStore(s *docstore.Store) *postgresStore {
	return &postgresStore{store: s, col: docstore.NewCollection[Record](s, "jobs")}
}

func (s *postgresStore) Upsert(ctx context.Context, rec Record) error {
	index2 := ""
	if !rec.RunAt.IsZero() {
		index2 = rec.RunAt.UTC().Format(time.RFC3339Nano)
	}
	return s.col.Upsert(ctx, rec.ID, rec, rec.Kind, index2)
}

func (s *postgresStore) Get(ctx context.Context, id string) (Record, bool, error) {
	rec, err := s.col.Get(ctx, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return *rec, true, nil
}

func (s *postgresStore) List(ctx context.Context) ([]Record, error) {
	return s.col.List(ctx)
}

func (s *postgresStore) Delete(ctx context.Context, id string) error {
	return s.col.Delete(ctx, id)
}

// TryLease claims id for leaseFor using SELECT ... FOR UPDATE SKIP LOCKED:
// a concurrent claim attempt from another process simply skips the
// locked row rather than blocking on it, so at most one process wins per
// call and every other process observes "not leased" immediately.
func (s *postgresStore) TryLease(ctx context.Context, id string, leaseFor time.Duration) (bool, error) {
	tx, err := s.store.DB().BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("scheduler: begin lease tx: %w", err)
	}
	defer tx.Rollback()

	var rowID string
	err = tx.GetContext(ctx, &rowID, `
		SELECT id FROM jobs
		WHERE id = $1 AND (locked_until IS NULL OR locked_until < now())
		FOR UPDATE SKIP LOCKED
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("scheduler: claim lease: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE jobs SET locked_until = $2 WHERE id = $1`,
		id, time.Now().Add(leaseFor).UTC()); err != nil {
		return false, fmt.Errorf("scheduler: set lease: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("scheduler: commit lease: %w", err)
	}
	return true, nil
}
