// Package docstore implements the document store collaborator:
// per-entity-type collections with a string primary key, a secondary
// index on instance_id (unique), and one on (worker_id, lab_id) for
// LabRecord. Supports single-document read, single-document upsert,
// batched upsert, and filtered find, backed by a JSONB Postgres table
// accessed through jmoiron/sqlx and lib/pq, with a Redis-backed
// implementation available for the job store (see scheduler/store_redis.go).
package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned by Get/GetByIndex1 when no row matches.
var ErrNotFound = errors.New("docstore: not found")

// Store wraps a *sqlx.DB connection to the document store's backing
// Postgres instance.
type Store struct {
	db *sqlx.DB
}

// Open connects to databaseURL (a postgres:// DSN) and verifies
// connectivity.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("docstore: connect: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromDB wraps an already-connected *sqlx.DB, letting other
// packages' tests inject a sqlmock-backed connection without a live
// Postgres instance.
func NewStoreFromDB(db *sqlx.DB) *Store { return &Store{db: db} }

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying *sqlx.DB for migration tooling.
func (s *Store) DB() *sqlx.DB { return s.db }

// row is the physical shape of every document-store table: an id, a JSONB
// payload, and up to two secondary-index columns populated from the
// payload at write time.
type row struct {
	ID      string         `db:"id"`
	Data    []byte         `db:"data"`
	Index1  sql.NullString `db:"index1"`
	Index2  sql.NullString `db:"index2"`
}

// Collection is a generic per-entity-type document collection. T is the domain-facing document shape; ID/Index1/Index2 are
// extracted from T by the caller at write time so the secondary indexes
// stay queryable without a JSONB expression index per field.
type Collection[T any] struct {
	store *Store
	table string
}

// NewCollection binds a Collection to a physical table (created by the
// migrations in repository/docstore/migrations).
func NewCollection[T any](s *Store, table string) *Collection[T] {
	return &Collection[T]{store: s, table: table}
}

// Get fetches a single document by primary key.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	var r row
	query := fmt.Sprintf("SELECT id, data, index1, index2 FROM %s WHERE id = $1", c.table)
	if err := c.store.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("docstore: get %s: %w", c.table, err)
	}
	return decode[T](r.Data)
}

// GetByIndex1 fetches the single document whose index1 column equals
// value (used for the instance_id unique secondary index).
func (c *Collection[T]) GetByIndex1(ctx context.Context, value string) (*T, error) {
	var r row
	query := fmt.Sprintf("SELECT id, data, index1, index2 FROM %s WHERE index1 = $1 LIMIT 1", c.table)
	if err := c.store.db.GetContext(ctx, &r, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("docstore: get %s by index1: %w", c.table, err)
	}
	return decode[T](r.Data)
}

// ListByIndex2 lists documents whose index2 column equals value (used for
// LabRecord's worker_id secondary index).
func (c *Collection[T]) ListByIndex2(ctx context.Context, value string) ([]T, error) {
	var rows []row
	query := fmt.Sprintf("SELECT id, data, index1, index2 FROM %s WHERE index2 = $1", c.table)
	if err := c.store.db.SelectContext(ctx, &rows, query, value); err != nil {
		return nil, fmt.Errorf("docstore: list %s by index2: %w", c.table, err)
	}
	return decodeAll[T](rows)
}

// List fetches every document in the collection.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	var rows []row
	query := fmt.Sprintf("SELECT id, data, index1, index2 FROM %s", c.table)
	if err := c.store.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("docstore: list %s: %w", c.table, err)
	}
	return decodeAll[T](rows)
}

// Upsert writes a single document, optionally setting its secondary index
// columns. Optimistic concurrency
// is the caller's responsibility — Upsert always wins,
// last writer wins.
func (c *Collection[T]) Upsert(ctx context.Context, id string, doc T, index1, index2 string) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("docstore: marshal %s: %w", c.table, err)
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, index1, index2)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, index1 = EXCLUDED.index1, index2 = EXCLUDED.index2
	`, c.table)
	if _, err := c.store.db.ExecContext(ctx, query, id, data, index1, index2); err != nil {
		return fmt.Errorf("docstore: upsert %s: %w", c.table, err)
	}
	return nil
}

// Item is one (id, doc, index1, index2) tuple for a batched write.
type Item[T any] struct {
	ID     string
	Doc    T
	Index1 string
	Index2 string
}

// UpdateMany batches writes in a single unordered round-trip"). A failure on
// one row does not roll back the others — each statement runs
// independently within the transaction's savepoint-free batch, matching
// the "ordered=false" semantics of best-effort bulk writes.
func (c *Collection[T]) UpdateMany(ctx context.Context, items []Item[T]) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := c.store.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin batch upsert %s: %w", c.table, err)
	}
	defer tx.Rollback()

	query := fmt.Sprintf(`
		INSERT INTO %s (id, data, index1, index2)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, index1 = EXCLUDED.index1, index2 = EXCLUDED.index2
	`, c.table)

	var firstErr error
	for _, item := range items {
		data, err := json.Marshal(item.Doc)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("docstore: marshal %s %s: %w", c.table, item.ID, err)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, query, item.ID, data, item.Index1, item.Index2); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("docstore: batch upsert %s %s: %w", c.table, item.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore: commit batch upsert %s: %w", c.table, err)
	}
	return firstErr
}

// Delete removes a document by primary key. Deleting a non-existent id is
// not an error.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", c.table)
	if _, err := c.store.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("docstore: delete %s: %w", c.table, err)
	}
	return nil
}

// DeleteByIndex2AndIDs removes every document whose index2 column equals
// index2 and whose id is in ids, used by orphan-lab cleanup.
func (c *Collection[T]) DeleteByIndex2AndIDs(ctx context.Context, index2 string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, index2)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE index2 = $1 AND id IN (%s)", c.table, strings.Join(placeholders, ","))
	if _, err := c.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("docstore: delete by index2 %s: %w", c.table, err)
	}
	return nil
}

func decode[T any](data []byte) (*T, error) {
	var doc T
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("docstore: unmarshal: %w", err)
	}
	return &doc, nil
}

func decodeAll[T any](rows []row) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		doc, err := decode[T](r.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}
