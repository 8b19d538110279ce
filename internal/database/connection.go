package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Open connects to the configured database and creates missing tables
func Open(opts Options) (*sqlx.DB, error) {
	driver := normalizeDriver(opts.Driver)
	dsn := opts.DSN

	switch driver {
	case DriverSQLite:
		if dsn == "" {
			dsn = filepath.Join("data", "webvoca.db")
		}
		if !isMemoryDSN(dsn) {
			// Create data directory if it doesn't exist
			if dir := filepath.Dir(dsn); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("failed to create data directory: %w", err)
				}
			}
		}
	case DriverPostgres:
		if dsn == "" {
			return nil, fmt.Errorf("failed to connect to database: postgres dsn is empty")
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// SQLite doesn't support multiple writers, and every :memory: connection is a new database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}

	if err := InitializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func normalizeDriver(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "sqlite", "sqlite3":
		return DriverSQLite
	case "postgres", "postgresql", "pq":
		return DriverPostgres
	}
	return name
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// InitializeSchema creates necessary tables if they don't exist.
// Column types are shared by sqlite and postgres.
func InitializeSchema(db *sqlx.DB) error {
	statements := []struct {
		name  string
		query string
	}{
		{"word_entries table", `
			CREATE TABLE IF NOT EXISTS word_entries (
				id TEXT PRIMARY KEY,
				word TEXT NOT NULL,
				normalized_word TEXT NOT NULL,
				context TEXT NOT NULL DEFAULT '',
				url TEXT NOT NULL DEFAULT '',
				source_title TEXT NOT NULL DEFAULT '',
				language TEXT NOT NULL DEFAULT '',
				tags TEXT NOT NULL DEFAULT '[]',
				is_favorite BOOLEAN NOT NULL DEFAULT FALSE,
				manually_edited BOOLEAN NOT NULL DEFAULT FALSE,
				include_in_quiz BOOLEAN NOT NULL DEFAULT TRUE,
				note TEXT NOT NULL DEFAULT '',
				definitions TEXT NOT NULL DEFAULT '[]',
				phonetic TEXT NOT NULL DEFAULT '',
				audio_url TEXT NOT NULL DEFAULT '',
				view_count BIGINT NOT NULL DEFAULT 0,
				last_viewed_at BIGINT NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL,
				updated_at BIGINT NOT NULL
			)`},
		{"created_at index", `CREATE INDEX IF NOT EXISTS idx_word_entries_created_at ON word_entries (created_at)`},
		{"normalized_word index", `CREATE INDEX IF NOT EXISTS idx_word_entries_normalized_word ON word_entries (normalized_word)`},
		{"review_states table", `
			CREATE TABLE IF NOT EXISTS review_states (
				id TEXT PRIMARY KEY,
				word_id TEXT NOT NULL,
				next_review_at BIGINT NOT NULL,
				interval_days BIGINT NOT NULL DEFAULT 0,
				ease_factor DOUBLE PRECISION NOT NULL DEFAULT 2.5,
				repetitions BIGINT NOT NULL DEFAULT 0,
				history TEXT NOT NULL DEFAULT '[]',
				version BIGINT NOT NULL DEFAULT 1
			)`},
		{"next_review_at index", `CREATE INDEX IF NOT EXISTS idx_review_states_next_review_at ON review_states (next_review_at)`},
		{"pending_requests table", `
			CREATE TABLE IF NOT EXISTS pending_requests (
				id TEXT PRIMARY KEY,
				payload TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				attempt_count BIGINT NOT NULL DEFAULT 0,
				last_attempted_at BIGINT NOT NULL DEFAULT 0,
				created_at BIGINT NOT NULL
			)`},
		{"quiz_sessions table", `
			CREATE TABLE IF NOT EXISTS quiz_sessions (
				id TEXT PRIMARY KEY,
				word_ids TEXT NOT NULL DEFAULT '[]',
				started_at BIGINT NOT NULL,
				completed_at BIGINT NOT NULL DEFAULT 0,
				correct_count BIGINT NOT NULL DEFAULT 0,
				incorrect_count BIGINT NOT NULL DEFAULT 0
			)`},
		{"settings table", `
			CREATE TABLE IF NOT EXISTS settings (
				id TEXT PRIMARY KEY,
				setting_key TEXT NOT NULL UNIQUE,
				value TEXT NOT NULL,
				updated_at BIGINT NOT NULL
			)`},
	}

	for _, s := range statements {
		if _, err := db.Exec(s.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", s.name, err)
		}
	}
	return nil
}
