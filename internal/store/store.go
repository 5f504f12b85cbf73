// Package store provides SQLite storage for session history.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Session is one completed review session.
type Session struct {
	ID                 string
	StartedAt          string
	EndedAt            string
	Mode               string
	DryRun             bool
	Processed          int
	Kept               int
	Deleted            int
	Skipped            int
	Agreements         int
	Disagreements      int
	AutoAccepted       int
	InstructionUpdates int
	Undos              int
}

// Totals aggregates all recorded sessions.
type Totals struct {
	Sessions  int
	Processed int
	Kept      int
	Deleted   int
	Skipped   int
}

// DB wraps a SQLite connection for mailsift session history.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens (or creates) a session database at the given path.
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", dir, err)
	}

	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := conn.Exec(Schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return &DB{conn: conn, path: dbPath}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	if d.conn != nil {
		return d.conn.Close()
	}
	return nil
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// Now returns the current time as an ISO 8601 string.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// InsertSession records a completed session. A missing ID is assigned.
func (d *DB) InsertSession(s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := d.conn.Exec(`
		INSERT INTO sessions
			(id, started_at, ended_at, mode, dry_run, processed, kept, deleted,
			 skipped, agreements, disagreements, auto_accepted, instruction_updates, undos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.StartedAt, s.EndedAt, s.Mode, s.DryRun, s.Processed, s.Kept, s.Deleted,
		s.Skipped, s.Agreements, s.Disagreements, s.AutoAccepted, s.InstructionUpdates, s.Undos,
	)
	return err
}

// RecentSessions returns the newest sessions, most recent first.
func (d *DB) RecentSessions(limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := d.conn.Query(`
		SELECT id, started_at, ended_at, mode, dry_run, processed, kept, deleted,
		       skipped, agreements, disagreements, auto_accepted, instruction_updates, undos
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*Session
	for rows.Next() {
		s := &Session{}
		if err := rows.Scan(
			&s.ID, &s.StartedAt, &s.EndedAt, &s.Mode, &s.DryRun, &s.Processed, &s.Kept, &s.Deleted,
			&s.Skipped, &s.Agreements, &s.Disagreements, &s.AutoAccepted, &s.InstructionUpdates, &s.Undos,
		); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// LifetimeTotals aggregates counters across all sessions.
func (d *DB) LifetimeTotals() (*Totals, error) {
	t := &Totals{}
	err := d.conn.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(processed), 0),
		       COALESCE(SUM(kept), 0),
		       COALESCE(SUM(deleted), 0),
		       COALESCE(SUM(skipped), 0)
		FROM sessions`).Scan(&t.Sessions, &t.Processed, &t.Kept, &t.Deleted, &t.Skipped)
	if err != nil {
		return nil, err
	}
	return t, nil
}
