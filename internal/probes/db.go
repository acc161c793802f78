package probes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/drudgelabs/drudge/internal/stats"
)

// DB checks that a SQLite database opens and passes a quick integrity
// check. The pool is opened during Setup and closed during Cleanup; each
// cycle pings and runs the check, so a database that disappears mid-run
// fails cycles without stopping the probe.
type DB struct {
	id   string
	path string
	db   *sql.DB
}

// NewDB builds a SQLite probe.
//
// Params:
//   - path: database file to check (required)
func NewDB(id string, params map[string]interface{}) (*DB, error) {
	path, err := requireString(params, "path")
	if err != nil {
		return nil, err
	}
	return &DB{id: id, path: path}, nil
}

func (d *DB) Name() string { return "db-probe" }

// Setup opens the pool. mode=rw opens WAL databases cleanly but never
// creates a missing file; the open is lazy, so a missing database fails
// the first cycle rather than the whole run.
func (d *DB) Setup(ctx context.Context) error {
	dsn := "file:" + d.path + "?mode=rw&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	d.db = db
	return nil
}

// Cleanup closes the pool.
func (d *DB) Cleanup(ctx context.Context) error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func (d *DB) Work(ctx context.Context, tracker *stats.Tracker) error {
	if d.db == nil {
		return errors.New("probe not initialized")
	}
	if err := d.ping(ctx, tracker); err != nil {
		return err
	}
	return d.check(ctx, tracker)
}

func (d *DB) ping(ctx context.Context, tracker *stats.Tracker) (err error) {
	scope := tracker.Begin("ping")
	defer func() { scope.EndWith(err) }()

	if err = d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	return nil
}

func (d *DB) check(ctx context.Context, tracker *stats.Tracker) (err error) {
	scope := tracker.Begin("check")
	defer func() { scope.EndWith(err) }()

	var result string
	if err = d.db.QueryRowContext(ctx, "PRAGMA quick_check(1)").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check reported: %s", result)
	}
	return nil
}
