package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pumbayo1/quiltracker/internal/config"
)

const (
	createObservationsTableSQL = `CREATE TABLE IF NOT EXISTS balance_observations (
        id          BIGSERIAL PRIMARY KEY,
        peer_id     TEXT NOT NULL,
        observed_at TEXT NOT NULL,
        balance     TEXT NOT NULL,
        created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
    );`

	createObservationsIndexSQL = `CREATE INDEX IF NOT EXISTS balance_observations_peer_idx
        ON balance_observations (peer_id, id);`

	insertObservationSQL = `INSERT INTO balance_observations (peer_id, observed_at, balance)
        VALUES ($1, $2, $3);`

	listSeriesSQL = `SELECT DISTINCT peer_id FROM balance_observations ORDER BY peer_id;`

	readSeriesSQL = `SELECT observed_at, peer_id, balance
        FROM balance_observations
        WHERE peer_id = $1
        ORDER BY id;`
)

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StoreConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("store.dsn is required for the postgres backend")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse store dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

// PostgresStore keeps every peer's series in one append-only table. Values
// stay textual, mirroring the CSV layout, so ingest and load semantics are
// identical across backends.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wires a pgx pool into a store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the observations table and index if missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createObservationsTableSQL); err != nil {
		return fmt.Errorf("create observations table: %w", err)
	}
	if _, err := pool.Exec(ctx, createObservationsIndexSQL); err != nil {
		return fmt.Errorf("create observations index: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Append inserts one record; append order is the serial id.
func (s *PostgresStore) Append(ctx context.Context, rec RawRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if rec.PeerID == "" {
		return fmt.Errorf("append: peer id required")
	}
	if _, err := pool.Exec(ctx, insertObservationSQL, rec.PeerID, rec.Timestamp, rec.Balance); err != nil {
		return fmt.Errorf("insert observation for %s: %w", rec.PeerID, err)
	}
	return nil
}

// Series lists the distinct peer IDs with at least one record.
func (s *PostgresStore) Series(ctx context.Context) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSeriesSQL)
	if queryErr != nil {
		return nil, fmt.Errorf("list series: %w", queryErr)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan series name: %w", err)
		}
		names = append(names, name)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return names, nil
}

// ReadSeries returns one peer's records in append order.
func (s *PostgresStore) ReadSeries(ctx context.Context, name string) ([]RawRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, readSeriesSQL, name)
	if queryErr != nil {
		return nil, fmt.Errorf("read series %s: %w", name, queryErr)
	}
	defer rows.Close()

	records := make([]RawRecord, 0)
	for rows.Next() {
		var rec RawRecord
		if err := rows.Scan(&rec.Timestamp, &rec.PeerID, &rec.Balance); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

var _ ObservationStore = (*PostgresStore)(nil)
