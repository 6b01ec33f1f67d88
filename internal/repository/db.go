package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	sqlite "modernc.org/sqlite"

	"github.com/astrodock/fuel-exports-tracker/internal/common"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB wraps database/sql with the driver identity the repositories need for
// placeholder syntax, plus the underlying pgx pool when running on Postgres.
type DB struct {
	*sql.DB
	driver string
	pool   *pgxpool.Pool
}

func (d *DB) Driver() string { return d.driver }

// placeholder renders the n-th (1-based) bind parameter for the driver.
func (d *DB) placeholder(n int) string {
	if d.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Open connects to the configured store. Postgres goes through a pgx pool
// wrapped as database/sql; SQLite opens directly (local runs and tests).
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	switch cfg.Driver {
	case DriverPostgres:
		return openPostgres(ctx, cfg, logger)
	case DriverSQLite:
		return openSQLite(cfg, logger)
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unsupported driver %q", cfg.Driver), common.ErrConfig)
	}
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "driver", cfg.Driver)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database config", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "fuel-exports-tracker"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{DB: db, driver: DriverPostgres, pool: pool}, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("opening sqlite database", "dsn", cfg.DSN)
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		logger.Error("failed to open sqlite database", "error", err)
		return nil, err
	}
	// A single writer keeps in-memory and file databases consistent without
	// SQLITE_BUSY handling.
	db.SetMaxOpenConns(1)
	return &DB{DB: db, driver: DriverSQLite}, nil
}

// Close closes the database connections gracefully
func Close(db *DB, logger *slog.Logger) {
	if db == nil {
		return
	}
	logger.Info("closing database connections")
	if err := db.DB.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the store to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("database ping successful")
	return nil
}

// isUniqueViolation reports whether err is the store's uniqueness-constraint
// failure, which the ledger and the transaction store translate into
// idempotency outcomes rather than storage errors.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		// SQLITE_CONSTRAINT_UNIQUE / SQLITE_CONSTRAINT_PRIMARYKEY
		return sqErr.Code() == 2067 || sqErr.Code() == 1555
	}
	// Some drivers flatten constraint errors into plain strings.
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
