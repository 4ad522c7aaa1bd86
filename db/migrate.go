package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/Dosada05/arcade-tournaments/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrate applies the embedded schema for the driver. Every statement is
// idempotent, so it runs on each start.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var file string
	switch driver {
	case config.DriverPostgres:
		file = "migrations/postgres.sql"
	case config.DriverSQLite:
		file = "migrations/sqlite.sql"
	default:
		return fmt.Errorf("no schema for driver %q", driver)
	}

	schema, err := migrationFS.ReadFile(file)
	if err != nil {
		return fmt.Errorf("failed to read schema %s: %w", file, err)
	}
	if _, err := db.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("failed to apply schema %s: %w", file, err)
	}
	return nil
}
