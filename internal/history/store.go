// Package history persists REPL sessions and executed statements in a
// SQLite database so the slate host can recall past runs.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Store wraps the history database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and applies
// migrations. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			result TEXT NOT NULL DEFAULT '',
			ok INTEGER NOT NULL DEFAULT 1,
			at INTEGER NOT NULL,
			PRIMARY KEY (session_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_session ON entries(session_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Session identifies one host session.
type Session struct {
	ID        string
	StartedAt time.Time
}

// Entry is one executed statement with its outcome.
type Entry struct {
	Session string
	Seq     int
	Source  string
	Result  string
	OK      bool
	At      time.Time
}

// BeginSession creates a new session row and returns it.
func (s *Store) BeginSession() (Session, error) {
	sess := Session{ID: uuid.NewString(), StartedAt: time.Now()}
	_, err := s.db.Exec(`INSERT INTO sessions (id, started_at) VALUES (?, ?)`,
		sess.ID, sess.StartedAt.Unix())
	if err != nil {
		return Session{}, fmt.Errorf("begin session: %w", err)
	}
	return sess, nil
}

// Record stores one executed statement and its outcome.
func (s *Store) Record(session string, seq int, source, result string, ok bool) error {
	_, err := s.db.Exec(
		`INSERT INTO entries (session_id, seq, source, result, ok, at) VALUES (?, ?, ?, ?, ?, ?)`,
		session, seq, source, result, boolInt(ok), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("record entry: %w", err)
	}
	return nil
}

// Entries returns a session's statements in execution order.
func (s *Store) Entries(session string) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT session_id, seq, source, result, ok, at FROM entries WHERE session_id = ? ORDER BY seq`,
		session)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var ok int
		var at int64
		if err := rows.Scan(&e.Session, &e.Seq, &e.Source, &e.Result, &ok, &at); err != nil {
			return nil, err
		}
		e.OK = ok != 0
		e.At = time.Unix(at, 0)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Sessions returns the most recent sessions, newest first.
func (s *Store) Sessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT id, started_at FROM sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var at int64
		if err := rows.Scan(&sess.ID, &at); err != nil {
			return nil, err
		}
		sess.StartedAt = time.Unix(at, 0)
		out = append(out, sess)
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
