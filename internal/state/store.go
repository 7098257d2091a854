// Package state manages the SQLite database that tracks which app entities
// (tee-time postings and reservations) have been mirrored into the device
// calendar.
//
// Only this package may open or query the database. All other packages
// receive a [*Store] and call its methods.
package state

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/threeputt/teesync/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS mappings (
    entity_kind TEXT    NOT NULL,
    entity_id   INTEGER NOT NULL,
    event_id    TEXT    NOT NULL,
    course_name TEXT    NOT NULL,
    tee_time    TEXT    NOT NULL,
    notes       TEXT,
    location    TEXT,
    created_at  TEXT    NOT NULL,
    PRIMARY KEY (entity_kind, entity_id)
);
`

// Mapping links one app entity to the calendar event created for it, along
// with the snapshot that was current when the event was last written.
type Mapping struct {
	Ref       model.Ref
	EventID   string
	Snapshot  model.Snapshot
	CreatedAt time.Time
}

// Store is the SQLite-backed mapping repository.
type Store struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the mapping database:
// ~/.local/share/teesync/state.db
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "teesync", "state.db"), nil
}

// Open opens (or creates) the SQLite database at path, applies the schema,
// and configures WAL mode for better concurrent read performance.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", path, err)
	}

	// Single writer to avoid SQLITE_BUSY under WAL.
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the schema DDL idempotently (CREATE IF NOT EXISTS).
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Save upserts the mapping for its entity reference. Any existing mapping
// with the same reference is replaced, so at most one row ever exists per
// entity.
func (s *Store) Save(ctx context.Context, m *Mapping) error {
	const q = `
		INSERT INTO mappings
		    (entity_kind, entity_id, event_id, course_name, tee_time, notes, location, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_kind, entity_id) DO UPDATE SET
		    event_id    = excluded.event_id,
		    course_name = excluded.course_name,
		    tee_time    = excluded.tee_time,
		    notes       = excluded.notes,
		    location    = excluded.location,
		    created_at  = excluded.created_at`

	_, err := s.db.ExecContext(ctx, q,
		string(m.Ref.Kind),
		m.Ref.ID,
		m.EventID,
		m.Snapshot.CourseName,
		formatTime(m.Snapshot.TeeTime),
		nullString(m.Snapshot.Notes),
		nullString(m.Snapshot.Location),
		formatTime(m.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("saving mapping for %s: %w", m.Ref, err)
	}
	return nil
}

// Get returns the mapping for the given entity reference, or (nil, nil) if
// none exists.
func (s *Store) Get(ctx context.Context, ref model.Ref) (*Mapping, error) {
	const q = `
		SELECT entity_kind, entity_id, event_id, course_name, tee_time, notes, location, created_at
		FROM mappings WHERE entity_kind = ? AND entity_id = ?`
	row := s.db.QueryRowContext(ctx, q, string(ref.Kind), ref.ID)
	return scanMapping(row)
}

// GetAll returns every stored mapping, in arbitrary order.
func (s *Store) GetAll(ctx context.Context) ([]*Mapping, error) {
	const q = `
		SELECT entity_kind, entity_id, event_id, course_name, tee_time, notes, location, created_at
		FROM mappings`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var mappings []*Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}

// Delete removes the mapping for the given reference. Deleting an absent
// mapping is a no-op, not an error.
func (s *Store) Delete(ctx context.Context, ref model.Ref) error {
	const q = `DELETE FROM mappings WHERE entity_kind = ? AND entity_id = ?`
	if _, err := s.db.ExecContext(ctx, q, string(ref.Kind), ref.ID); err != nil {
		return fmt.Errorf("deleting mapping for %s: %w", ref, err)
	}
	return nil
}

// ClearAll removes every stored mapping. Used by sign-out flows, not by the
// sync manager itself.
func (s *Store) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM mappings`); err != nil {
		return fmt.Errorf("clearing mappings: %w", err)
	}
	return nil
}

// --- helpers -----------------------------------------------------------------

// scanner matches both *sql.Row and *sql.Rows so scanMapping can be reused.
type scanner interface {
	Scan(dest ...any) error
}

func scanMapping(s scanner) (*Mapping, error) {
	var m Mapping
	var kind, teeTime, createdAt string
	var notes, location sql.NullString

	err := s.Scan(
		&kind,
		&m.Ref.ID,
		&m.EventID,
		&m.Snapshot.CourseName,
		&teeTime,
		&notes,
		&location,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil //nolint:nilnil // intentional: "not found" sentinel
	}
	if err != nil {
		return nil, fmt.Errorf("scanning mapping row: %w", err)
	}

	m.Ref.Kind = model.Kind(kind)
	m.Snapshot.TeeTime, _ = parseTime(teeTime)
	m.Snapshot.Notes = fromNullString(notes)
	m.Snapshot.Location = fromNullString(location)
	m.CreatedAt, _ = parseTime(createdAt)

	return &m, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
