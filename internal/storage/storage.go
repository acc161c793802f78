// Package storage is the optional SQLite backend: it mirrors each worker's
// latest status into a worker_status table and keeps one row per run in
// run_history. The worker loop runs fine without it; the filesystem artifacts
// remain the source of truth.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DefaultFilename is the database file created inside the state directory.
const DefaultFilename = "drudge.db"

const schema = `
CREATE TABLE IF NOT EXISTS worker_status (
	worker_id        TEXT PRIMARY KEY,
	run_id           TEXT NOT NULL,
	pid              INTEGER NOT NULL,
	state            TEXT NOT NULL,
	started_at       TIMESTAMP NOT NULL,
	last_cycle_at    TIMESTAMP,
	updated_at       TIMESTAMP NOT NULL,
	cycles_completed INTEGER NOT NULL DEFAULT 0,
	last_error       TEXT NOT NULL DEFAULT '',
	operations       TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS run_history (
	run_id           TEXT PRIMARY KEY,
	worker_id        TEXT NOT NULL,
	pid              INTEGER NOT NULL,
	hostname         TEXT NOT NULL DEFAULT '',
	started_at       TIMESTAMP NOT NULL,
	ended_at         TIMESTAMP,
	cycles_completed INTEGER NOT NULL DEFAULT 0,
	failures         INTEGER NOT NULL DEFAULT 0,
	last_error       TEXT NOT NULL DEFAULT '',
	clean_shutdown   INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_run_history_worker
	ON run_history(worker_id, started_at);
`

// Store wraps the SQLite database holding status mirrors and run history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path, ensuring the parent
// directory, the pragmas, and the schema.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// WAL keeps the writing worker from blocking the status CLI's reads.
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

// DefaultPath returns the database path inside a state directory.
func DefaultPath(stateDir string) string {
	return filepath.Join(stateDir, DefaultFilename)
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
