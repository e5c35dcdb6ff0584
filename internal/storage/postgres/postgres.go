// Package postgres persists territory snapshots in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/factions/internal/config"
)

// ApplicationName tags every session opened by the pool in pg_stat_activity.
const ApplicationName = "factiond"

var (
	// ErrNotMigrated is returned by SchemaVersion and Health when no migration
	// has been applied.
	ErrNotMigrated = errors.New("database schema has not been migrated")
	// ErrDirtySchema is returned by Health when a migration failed part way.
	ErrDirtySchema = errors.New("database schema is dirty")
)

// undefinedTable is the SQLSTATE for a missing relation.
const undefinedTable = "42P01"

// Pool is the connection pool behind Store. Sessions run in UTC so claim and
// membership timestamps round-trip unchanged, and carry the configured
// statement timeout so a stuck Save cannot hold the snapshot transaction open.
type Pool struct {
	pool *pgxpool.Pool
}

// NewPool connects to the database described by cfg.
//
// Precondition: cfg must pass config validation.
// Postcondition: Returns a pool that answered a ping, or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	params := poolCfg.ConnConfig.RuntimeParams
	params["application_name"] = ApplicationName
	params["timezone"] = "UTC"
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %s: %w", cfg.Host, err)
	}
	return &Pool{pool: pool}, nil
}

// SchemaVersion reports the applied migration version and whether the last
// migration left the schema dirty.
//
// Postcondition: Returns ErrNotMigrated if the migrations table is missing or empty.
func (p *Pool) SchemaVersion(ctx context.Context) (version uint, dirty bool, err error) {
	var v int64
	err = p.pool.QueryRow(ctx, `SELECT version, dirty FROM schema_migrations LIMIT 1`).Scan(&v, &dirty)
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return 0, false, ErrNotMigrated
	case errors.As(err, &pgErr) && pgErr.Code == undefinedTable:
		return 0, false, ErrNotMigrated
	case err != nil:
		return 0, false, fmt.Errorf("reading schema version: %w", err)
	}
	return uint(v), dirty, nil
}

// Health checks that the database answers within timeout and that the schema
// is migrated and clean.
//
// Precondition: The pool must not be closed.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	version, dirty, err := p.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}
	return nil
}

// Close releases all pool resources.
func (p *Pool) Close() {
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
