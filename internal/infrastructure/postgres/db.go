package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName = "user-admin"

	// One admin request holds at most one connection at a time.
	maxConns        = int32(10)
	minConns        = int32(1)
	maxConnLifetime = time.Hour
	maxConnIdleTime = 15 * time.Minute

	connectTimeout = 30 * time.Second
	healthTimeout  = 5 * time.Second
)

var errSchemaMissing = errors.New("user_profiles table is missing; run cmd/migrate")

// DB owns the pool backing the profile store.
type DB struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewConnection opens the pool and checks that the profile schema is migrated.
func NewConnection(ctx context.Context, dsn string, logger *slog.Logger) (*DB, error) {
	poolConfig, err := newPoolConfig(dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := checkSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	logger.InfoContext(ctx, "profile store connected",
		"host", poolConfig.ConnConfig.Host,
		"database", poolConfig.ConnConfig.Database,
		"max_conns", poolConfig.MaxConns)

	return &DB{pool: pool, logger: logger.With("component", "profile_db")}, nil
}

func newPoolConfig(dsn string) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = maxConns
	poolConfig.MinConns = minConns
	poolConfig.MaxConnLifetime = maxConnLifetime
	poolConfig.MaxConnIdleTime = maxConnIdleTime
	if _, set := poolConfig.ConnConfig.RuntimeParams["application_name"]; !set {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	return poolConfig, nil
}

// checkSchema fails when the database answers but user_profiles was never created.
func checkSchema(ctx context.Context, db DatabaseIface) error {
	var present bool
	if err := db.QueryRow(ctx, `SELECT to_regclass('user_profiles') IS NOT NULL`).Scan(&present); err != nil {
		return fmt.Errorf("failed to reach profile store: %w", err)
	}
	if !present {
		return errSchemaMissing
	}
	return nil
}

// Close closes the pool.
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
		db.logger.Info("profile store connection closed")
	}
}

// Pool returns the underlying pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// HealthCheck backs /ready: the store must answer and still hold the profile table.
func (db *DB) HealthCheck(ctx context.Context) error {
	if db.pool == nil {
		return errors.New("profile store is not connected")
	}

	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	return checkSchema(ctx, db.pool)
}
