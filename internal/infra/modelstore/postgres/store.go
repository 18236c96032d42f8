// Package postgres provides a PostgreSQL-backed model store that mirrors the
// in-memory semantics: the memory store arbitrates commits and the full state
// is re-snapshotted to a single JSONB row after each successful batch.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"tablecore/internal/infra/modelstore/memory"
	"tablecore/pkg/tabular"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion.
var _ tabular.ModelStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/tablecore?sslmode=disable"
	stateBucket   = "tables"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store wraps the memory store with PostgreSQL-backed durability.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a PostgreSQL-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists and hydrates the memory
// store from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("ensure state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// DB exposes the underlying handle for integration-testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) load(ctx context.Context) error {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM state WHERE bucket = $1`, stateBucket).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("select state: %w", err)
	}
	if len(payload) == 0 {
		return nil
	}
	var st memory.State
	if err := json.Unmarshal(payload, &st); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	s.ImportState(st)
	return nil
}

func (s *Store) persist(ctx context.Context) error {
	payload, err := json.Marshal(s.ExportState())
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO state (bucket, payload) VALUES ($1, $2)
		 ON CONFLICT (bucket) DO UPDATE SET payload = EXCLUDED.payload`,
		stateBucket, payload,
	); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	return nil
}

// CommitEdits applies the batch in memory, then snapshots to PostgreSQL.
func (s *Store) CommitEdits(ctx context.Context, edits []tabular.TableEdit, fillLog bool) (tabular.CommitStats, error) {
	stats, err := s.Store.CommitEdits(ctx, edits, fillLog)
	if err != nil {
		return stats, err
	}
	if err := s.persist(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// Snapshot forces a state snapshot outside the commit path.
func (s *Store) Snapshot(ctx context.Context) error { return s.persist(ctx) }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }
