package activity

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "modernc.org/sqlite"

	"aegisd/internal/events"
)

// Store persists events to SQLite so the audit trail survives restarts.
type Store struct {
	db *sql.DB
}

// OpenStore opens (and migrates) the audit database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS activity (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  at DATETIME NOT NULL,
  name TEXT NOT NULL,
  subject TEXT NOT NULL DEFAULT '',
  fields TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS activity_at ON activity(at);
`)
	return err
}

// Append writes one event.
func (s *Store) Append(ctx context.Context, e events.Event) error {
	if s == nil || s.db == nil {
		return nil
	}
	fields := "{}"
	if len(e.Fields) > 0 {
		if b, err := json.Marshal(e.Fields); err == nil {
			fields = string(b)
		}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO activity(at, name, subject, fields) VALUES(?, ?, ?, ?);
`, e.At, e.Name, e.Subject, fields)
	return err
}

// Recent returns up to limit events, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]events.Event, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultSize
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT at, name, subject, fields FROM activity ORDER BY id DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var fields string
		if err := rows.Scan(&e.At, &e.Name, &e.Subject, &fields); err != nil {
			return nil, err
		}
		if fields != "" && fields != "{}" {
			_ = json.Unmarshal([]byte(fields), &e.Fields)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
