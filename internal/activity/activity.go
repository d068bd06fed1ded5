// Package activity is the long-lived audit trail of everything the
// Supervisor does to an instance: start/stop/crash, dispatched commands,
// migrations and update applies. It survives daemon restarts in a SQLite
// file separate from the Instance Store's JSON (which stays JSON per the
// Instance Store's own persistence requirement).
package activity

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Log persists instance activity events to a SQLite-backed table.
type Log struct {
	db *sql.DB
}

// Entry is one row of the activity log.
type Entry struct {
	ID         int64     `json:"id"`
	InstanceID string    `json:"instance_id"`
	Action     string    `json:"action"`
	Details    string    `json:"details"`
	CreatedAt  time.Time `json:"created_at"`
}

// Open creates (if needed) and opens the SQLite file at path, initializing
// its schema.
func Open(path string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("activity log: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("activity log: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single writer; sqlite serializes anyway

	l := &Log{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS activity (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instance_id TEXT NOT NULL,
		action TEXT NOT NULL,
		details TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_instance ON activity(instance_id, created_at);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("activity log: init schema: %w", err)
	}
	return nil
}

// Record appends one activity entry.
func (l *Log) Record(instanceID, action, details string) error {
	_, err := l.db.Exec(
		`INSERT INTO activity (instance_id, action, details, created_at) VALUES (?, ?, ?, ?)`,
		instanceID, action, details, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("activity log: insert: %w", err)
	}
	return nil
}

// Recent returns the most recent limit entries for an instance, newest
// first.
func (l *Log) Recent(instanceID string, limit int) ([]Entry, error) {
	rows, err := l.db.Query(
		`SELECT id, instance_id, action, details, created_at FROM activity
		 WHERE instance_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		instanceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("activity log: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.InstanceID, &e.Action, &e.Details, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("activity log: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}
