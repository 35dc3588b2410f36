// Package postgres mirrors the in-memory store into a Postgres JSONB table,
// one row per collection.
package postgres

import (
	"bizdesk/internal/infra/persistence/memory"
	"bizdesk/pkg/domain"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

var _ domain.PersistentStore = (*Store)(nil)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/bizdesk?sslmode=disable"

	createStateTable = `CREATE TABLE IF NOT EXISTS state (
		bucket TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`
	selectState = `SELECT bucket, payload FROM state`
	upsertState = `INSERT INTO state(bucket,payload) VALUES($1,$2) ON CONFLICT(bucket) DO UPDATE SET payload=EXCLUDED.payload`
)

var (
	openMu  sync.Mutex
	sqlOpen = sql.Open
)

// Store runs transactions against the embedded memory store and, after each
// commit, upserts the collections whose contents changed.
type Store struct {
	*memory.Store
	db      *sql.DB
	mu      sync.Mutex
	digests memory.BucketDigests
	logger  *slog.Logger
}

// NewStore connects to dsn (a local default when empty), creates the state
// table and loads any records already stored there.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine, opts ...memory.Option) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	s := &Store{Store: memory.NewStore(engine, opts...), db: db, logger: slog.New(slog.DiscardHandler)}
	if err := s.init(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("create state table: %w", err)
	}
	payloads, err := s.readBuckets(ctx)
	if err != nil || len(payloads) == 0 {
		return err
	}
	snapshot, err := memory.DecodeBuckets(payloads)
	if err != nil {
		return err
	}
	s.ImportState(snapshot)
	encoded, err := memory.EncodeBuckets(s.ExportState())
	if err != nil {
		return err
	}
	s.digests.Mark(encoded)
	return nil
}

func (s *Store) readBuckets(ctx context.Context) (map[string][]byte, error) {
	rows, err := s.db.QueryContext(ctx, selectState)
	if err != nil {
		return nil, fmt.Errorf("select state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	payloads := make(map[string][]byte)
	for rows.Next() {
		var (
			bucket  string
			payload []byte
		)
		if err := rows.Scan(&bucket, &payload); err != nil {
			return nil, fmt.Errorf("scan state: %w", err)
		}
		if len(payload) > 0 {
			payloads[bucket] = payload
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state: %w", err)
	}
	return payloads, nil
}

// SetLogger sets where snapshot failures are reported.
func (s *Store) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// RunInTransaction commits fn in memory and then writes the changed
// collections. The table is a best-effort mirror: a failed write is logged,
// the commit still succeeds, and the unwritten buckets go out with the next
// commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	res, err := s.Store.RunInTransaction(ctx, fn)
	if err != nil {
		return res, err
	}
	if err := s.persist(ctx); err != nil {
		s.logger.ErrorContext(ctx, "postgres snapshot failed, retrying on next commit", "error", err)
	}
	return res, nil
}

func (s *Store) persist(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := memory.EncodeBuckets(s.ExportState())
	if err != nil {
		return err
	}
	changed := s.digests.Changed(encoded)
	if len(changed) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range memory.Buckets {
		payload, ok := changed[bucket]
		if !ok {
			continue
		}
		if _, err = tx.ExecContext(ctx, upsertState, bucket, payload); err != nil {
			return fmt.Errorf("upsert %s: %w", bucket, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.digests.Mark(changed)
	return nil
}

// DB returns the connection pool.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen replaces the connection opener until the returned restore
// func is called.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	prev := sqlOpen
	sqlOpen = fn
	openMu.Unlock()
	return func() {
		openMu.Lock()
		sqlOpen = prev
		openMu.Unlock()
	}
}
