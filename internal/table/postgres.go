package table

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresStore upserts items into a Postgres table keyed by name.
type PostgresStore struct {
	db    Execer
	table string
}

// NewPostgresPool opens a connection pool.
func NewPostgresPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	poolConfig.MaxConns = 4
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	return pool, nil
}

// NewPostgresStore wraps a pool or connection.
func NewPostgresStore(db Execer, tableName string) *PostgresStore {
	return &PostgresStore{db: db, table: tableName}
}

func (s *PostgresStore) ident() string {
	return pgx.Identifier{s.table}.Sanitize()
}

// EnsureSchema creates the table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name            TEXT PRIMARY KEY,
	pc_name         TEXT NOT NULL,
	cpu_name        TEXT NOT NULL,
	ram_gb          DOUBLE PRECISION NOT NULL,
	storage_gb      DOUBLE PRECISION NOT NULL,
	resolution      TEXT NOT NULL,
	monitor_size_in DOUBLE PRECISION NOT NULL,
	bucket          TEXT NOT NULL DEFAULT '',
	provider        TEXT NOT NULL DEFAULT '',
	model_id        TEXT NOT NULL DEFAULT '',
	extracted_at    TIMESTAMPTZ NOT NULL
)`, s.ident()))
	if err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// Put upserts the item.
func (s *PostgresStore) Put(ctx context.Context, item Item) error {
	if item.Name == "" {
		return ErrEmptyKey
	}
	sql := fmt.Sprintf(`INSERT INTO %s
	(name, pc_name, cpu_name, ram_gb, storage_gb, resolution, monitor_size_in, bucket, provider, model_id, extracted_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (name) DO UPDATE SET
	pc_name = EXCLUDED.pc_name,
	cpu_name = EXCLUDED.cpu_name,
	ram_gb = EXCLUDED.ram_gb,
	storage_gb = EXCLUDED.storage_gb,
	resolution = EXCLUDED.resolution,
	monitor_size_in = EXCLUDED.monitor_size_in,
	bucket = EXCLUDED.bucket,
	provider = EXCLUDED.provider,
	model_id = EXCLUDED.model_id,
	extracted_at = EXCLUDED.extracted_at`, s.ident())

	_, err := s.db.Exec(ctx, sql,
		item.Name,
		item.PCName,
		item.CPUName,
		item.RAMGB,
		item.StorageGB,
		item.Resolution,
		item.MonitorSizeIn,
		item.Bucket,
		item.Provider,
		item.ModelID,
		item.ExtractedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.Name, err)
	}
	return nil
}
