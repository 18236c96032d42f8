// Package sqlite persists the in-memory model store to a single SQLite table
// as JSON blobs. It re-snapshots the full state after every successful
// commit batch and hydrates from the snapshot on open.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"tablecore/internal/infra/modelstore/memory"
	"tablecore/pkg/tabular"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Compile-time contract assertion.
var _ tabular.ModelStore = (*Store)(nil)

// Store wraps the memory store with SQLite-backed durability.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

const stateBucket = "tables"

// NewStore opens (or creates) the snapshot database at path and hydrates the
// in-memory store from it. An empty path defaults to tablecore.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "tablecore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM state WHERE bucket = ?`, stateBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	var st memory.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	s.ImportState(st)
	return nil
}

func (s *Store) persist() error {
	payload, err := json.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT INTO state (bucket, payload) VALUES (?, ?)
		 ON CONFLICT(bucket) DO UPDATE SET payload = excluded.payload`,
		stateBucket, payload,
	); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// CommitEdits applies the batch in memory, then snapshots to SQLite. A failed
// snapshot surfaces as an error so callers do not mistake unpersisted state
// for durable state.
func (s *Store) CommitEdits(ctx context.Context, edits []tabular.TableEdit, fillLog bool) (tabular.CommitStats, error) {
	stats, err := s.Store.CommitEdits(ctx, edits, fillLog)
	if err != nil {
		return stats, err
	}
	if err := s.persist(); err != nil {
		return stats, err
	}
	return stats, nil
}

// Snapshot forces a state snapshot outside the commit path, e.g. after
// seeding definitions.
func (s *Store) Snapshot() error { return s.persist() }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the snapshot database path.
func (s *Store) Path() string { return s.path }
