package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// ErrNotFound is returned when a task or component does not exist
var ErrNotFound = errors.New("not found")

// Connect opens the database and makes sure the schema exists.
// For SQLite, dsn is a file path (its directory is created) or ":memory:".
func Connect(driver, dsn string) (*sqlx.DB, error) {
	switch driver {
	case DriverSQLite:
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
		}
		// SQLite doesn't support multiple writers. A single connection also keeps
		// ":memory:" databases alive across queries.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	if err := initializeSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

var schema = []struct {
	name string
	ddl  string
}{
	{"tasks", `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			spec TEXT NOT NULL,
			provenance TEXT,
			metadata TEXT,
			is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at_millis BIGINT NOT NULL,
			updated_at_millis BIGINT NOT NULL
		)
	`},
	{"task_components", `
		CREATE TABLE IF NOT EXISTS task_components (
			task_id TEXT NOT NULL REFERENCES tasks(id),
			component_id TEXT NOT NULL,
			created_at_millis BIGINT NOT NULL,
			last_repetition_millis BIGINT,
			due_millis BIGINT NOT NULL,
			interval_millis BIGINT NOT NULL DEFAULT 0,
			ease_factor DOUBLE PRECISION,
			learning_step INTEGER,
			PRIMARY KEY (task_id, component_id)
		)
	`},
	{"task_components due index", `
		CREATE INDEX IF NOT EXISTS idx_task_components_due ON task_components (due_millis)
	`},
	{"events", `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			timestamp_millis BIGINT NOT NULL,
			payload TEXT NOT NULL
		)
	`},
	{"events entity index", `
		CREATE INDEX IF NOT EXISTS idx_events_entity ON events (entity_id, timestamp_millis)
	`},
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
	}
	return nil
}
