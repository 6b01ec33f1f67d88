package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Timestamp decltypes differ per driver: Postgres stores TIMESTAMPTZ, but the
// SQLite driver only maps TIMESTAMP/DATETIME/DATE declarations back to
// time.Time on scan, so the DDL is rendered per driver.
const schemaTemplate = `
CREATE TABLE IF NOT EXISTS fuel_exports (
    transaction_id TEXT PRIMARY KEY,
    station_id     INTEGER NOT NULL,
    dock_bay       TEXT,
    dock_level     INTEGER,
    ship_name      TEXT,
    franchise      TEXT,
    captain_name   TEXT,
    species        TEXT,
    fuel_type      TEXT NOT NULL,
    fuel_units     DOUBLE PRECISION NOT NULL,
    price_per_unit NUMERIC(12,2),
    total_cost     NUMERIC(12,2),
    services       TEXT,
    is_emergency   BOOLEAN NOT NULL DEFAULT FALSE,
    visited_at     %[1]s,
    arrival_date   DATE,
    coords_x       DOUBLE PRECISION,
    coords_y       DOUBLE PRECISION,
    created_at     %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fuel_exports_station_id ON fuel_exports (station_id);

CREATE INDEX IF NOT EXISTS idx_fuel_exports_visited_at ON fuel_exports (visited_at);

CREATE INDEX IF NOT EXISTS idx_fuel_exports_fuel_type ON fuel_exports (fuel_type);

CREATE INDEX IF NOT EXISTS idx_fuel_exports_franchise ON fuel_exports (franchise);

CREATE TABLE IF NOT EXISTS processed_files (
    filename     TEXT PRIMARY KEY,
    processed_at %[1]s NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_processed_files_processed_at ON processed_files (processed_at);
`

func timestampType(driver string) string {
	if driver == DriverPostgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// Migrate applies the schema. Statements are idempotent, so re-running on an
// existing database is a no-op.
func Migrate(ctx context.Context, db *DB, logger *slog.Logger) error {
	ddl := fmt.Sprintf(schemaTemplate, timestampType(db.Driver()))
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			logger.Error("migration statement failed", "error", err)
			return fmt.Errorf("migrate: %w", err)
		}
	}
	logger.Info("schema migration complete")
	return nil
}
