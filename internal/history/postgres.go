package history

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresConfig controls the Postgres connection pool for run rows.
type PostgresConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresProvider writes pipeline records into Postgres.
//
// Expected schema:
//
//	CREATE TABLE backup_runs (
//		run_id UUID NOT NULL,
//		site TEXT NOT NULL,
//		url TEXT NOT NULL,
//		status TEXT NOT NULL,
//		failed_stage TEXT,
//		error TEXT,
//		started_at TIMESTAMPTZ NOT NULL,
//		finished_at TIMESTAMPTZ NOT NULL,
//		uploaded_files INT NOT NULL,
//		uploaded_bytes BIGINT NOT NULL,
//		PRIMARY KEY (run_id, site)
//	);
type PostgresProvider struct {
	pool  execCloser
	table string
}

// NewPostgresProvider connects a pool using the provided config.
func NewPostgresProvider(ctx context.Context, cfg PostgresConfig) (*PostgresProvider, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "backup_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresProvider{pool: pool, table: table}, nil
}

// NewPostgresProviderWithPool constructs a provider from an existing
// pool (primarily for testing).
func NewPostgresProviderWithPool(pool execCloser, table string) (*PostgresProvider, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "backup_runs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresProvider{pool: pool, table: table}, nil
}

// SaveResult inserts one pipeline record.
func (p *PostgresProvider) SaveResult(ctx context.Context, rec Record) error {
	if p == nil || p.pool == nil {
		return fmt.Errorf("history provider is not configured")
	}
	if rec.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if rec.Site == "" {
		return fmt.Errorf("site is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	site,
	url,
	status,
	failed_stage,
	error,
	started_at,
	finished_at,
	uploaded_files,
	uploaded_bytes
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, p.table)

	args := []any{
		rec.RunID,
		rec.Site,
		rec.URL,
		rec.Status,
		rec.FailedStage,
		rec.Error,
		rec.StartedAt,
		rec.FinishedAt,
		rec.UploadedFiles,
		rec.UploadedBytes,
	}
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert backup run: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (p *PostgresProvider) Close() {
	if p == nil || p.pool == nil {
		return
	}
	p.pool.Close()
}
