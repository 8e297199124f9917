// Package storage persists healing-session history to a SQLite database at
// .ghost/ghost.db so outcomes survive restarts and `ghost history` can
// report them.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id          TEXT PRIMARY KEY,
	path        TEXT NOT NULL,
	kind        TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	attempts    INTEGER NOT NULL DEFAULT 0,
	diagnostic  TEXT NOT NULL DEFAULT '',
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_path ON sessions(path);
CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);
`

// SessionRecord is one healing session's persisted history row.
type SessionRecord struct {
	ID         string
	Path       string
	Kind       string
	Outcome    string
	Attempts   int
	Diagnostic string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Store wraps the session-history database.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the database location for a project root.
func DefaultPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".ghost", "ghost.db")
}

// Open opens (creating if needed) the history database and applies the
// schema. WAL mode keeps the watcher loop and history queries from
// contending.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordStart inserts a session row when a qualified change enters the
// orchestrator. The outcome is updated on completion.
func (s *Store) RecordStart(ctx context.Context, rec *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, path, kind, outcome, attempts, diagnostic, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.Kind, rec.Outcome, rec.Attempts, rec.Diagnostic, rec.StartedAt)
	if err != nil {
		return fmt.Errorf("recording session start: %w", err)
	}
	return nil
}

// RecordFinish stamps the terminal outcome of a session.
func (s *Store) RecordFinish(ctx context.Context, rec *SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sessions
		SET outcome = ?, attempts = ?, diagnostic = ?, finished_at = ?
		WHERE id = ?`,
		rec.Outcome, rec.Attempts, rec.Diagnostic, rec.FinishedAt, rec.ID)
	if err != nil {
		return fmt.Errorf("recording session finish: %w", err)
	}
	return nil
}

// ListRecent returns the most recently started sessions, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, path, kind, outcome, attempts, diagnostic, started_at, finished_at
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var records []*SessionRecord
	for rows.Next() {
		rec := &SessionRecord{}
		var finished sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.Kind, &rec.Outcome,
			&rec.Attempts, &rec.Diagnostic, &rec.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		if finished.Valid {
			rec.FinishedAt = finished.Time
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
