package db

import (
	"database/sql"
	"fmt"
	"net/url"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

// Applied to every pooled connection by the driver.
var connPragmas = []string{
	"journal_mode(WAL)",
	"foreign_keys(1)",
	"busy_timeout(5000)",
}

// migrations[i] brings the schema from user_version i to i+1. Append only.
var migrations = []string{
	// 1: device snapshot, event log, users. Enum columns hold the device
	// sentinels; the CHECKs mirror the record invariants.
	`
CREATE TABLE IF NOT EXISTS dehumidifier_state (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    power_on BOOLEAN NOT NULL,
    mode INTEGER NOT NULL CHECK (mode BETWEEN 1 AND 4),
    fan_speed INTEGER NOT NULL CHECK (fan_speed IN (40, 60, 80)),
    humidity_setpoint INTEGER NOT NULL CHECK (humidity_setpoint BETWEEN 0 AND 100),
    current_humidity INTEGER NOT NULL CHECK (current_humidity BETWEEN 0 AND 100),
    error_code INTEGER NOT NULL CHECK (error_code BETWEEN 0 AND 255),
    source TEXT,
    observed_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS dehumidifier_events (
    id TEXT PRIMARY KEY,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
CREATE INDEX IF NOT EXISTS idx_dehumidifier_events_occurred_at ON dehumidifier_events (occurred_at);
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);`,
	// 2: type filter on the log
	`CREATE INDEX IF NOT EXISTS idx_dehumidifier_events_type_time ON dehumidifier_events (type, occurred_at);`,
}

// SchemaVersion is the user_version of a fully migrated database.
func SchemaVersion() int { return len(migrations) }

// InitDB opens (or creates) the SQLite file at path and migrates it.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range connPragmas {
		q.Add("_pragma", p)
	}
	return "file:" + path + "?" + q.Encode()
}

// migrate applies the pending migrations, each in its own transaction
// together with the user_version bump.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(migrations) {
		return fmt.Errorf("schema version %d is newer than this build (%d)", version, len(migrations))
	}

	for i := version; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}
		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		// PRAGMA does not accept bound parameters.
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("set schema version %d: %w", i+1, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}
	return nil
}
