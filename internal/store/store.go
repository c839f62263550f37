// Package store keeps a sqlite history of walkthrough runs.
package store

import (
	"database/sql"
	"strings"

	"github.com/YuminosukeSato/craftcans/pkg/errors"
	_ "modernc.org/sqlite"
)

// ErrNotInitialized is returned when the runs table does not exist yet.
var ErrNotInitialized = errors.New("run history is not initialized; run `craftcans run --store <path>` first")

// ErrNotFound is returned by GetRun for an unknown id.
var ErrNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    created_at TEXT NOT NULL,
    dataset TEXT NOT NULL,
    best_params TEXT NOT NULL,
    best_cv_score REAL,
    test_r2 REAL,
    test_mse REAL,
    train_rows INTEGER,
    test_rows INTEGER,
    n_features INTEGER,
    duration_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

// Store provides SQLite operations for the run history.
type Store struct {
	db *sql.DB
}

// New opens the database at dbPath. Use ":memory:" in tests.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	// SQLite only allows one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateSchema creates the runs table and its index.
func (s *Store) CreateSchema() error {
	if _, err := s.db.Exec(schema); err != nil {
		return errors.Wrap(err, "failed to create schema")
	}
	return nil
}

// translate maps a missing-table failure onto ErrNotInitialized.
func translate(err error, msg string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "no such table") {
		return ErrNotInitialized
	}
	return errors.Wrap(err, msg)
}
