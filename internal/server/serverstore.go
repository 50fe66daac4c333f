// Package server implements the sync endpoint the client's internal/sync
// engine talks to: a SQLite-backed store keyed by a single monotonic
// global_revision counter, plus the chi HTTP router that exposes it.
//
// The server's schema mirrors the client's (schema.go in internal/store)
// with one structural difference: soft deletes are represented as
// is_deleted bool rather than a nullable deleted_at column, because the
// server never needs the deleted timestamp for anything but the tombstone
// itself — updated_at already carries it. internal/wire bridges the two
// representations at the HTTP boundary.
package server

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/ncruces/go-sqlite3/driver"

	"github.com/kittclouds/notesync/internal/apperr"
)

const schema = `
CREATE TABLE IF NOT EXISTS notebooks (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	color TEXT,
	icon TEXT,
	parent_id TEXT,
	revision INTEGER NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	color TEXT,
	revision INTEGER NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS notes (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	notebook_id TEXT,
	tags TEXT NOT NULL DEFAULT '[]',
	status TEXT NOT NULL DEFAULT 'active',
	is_pinned INTEGER NOT NULL DEFAULT 0,
	revision INTEGER NOT NULL,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_notes_revision ON notes(revision);
CREATE INDEX IF NOT EXISTS idx_notebooks_revision ON notebooks(revision);
CREATE INDEX IF NOT EXISTS idx_tags_revision ON tags(revision);

CREATE TABLE IF NOT EXISTS sync_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	global_revision INTEGER NOT NULL DEFAULT 0
);
INSERT OR IGNORE INTO sync_state (id, global_revision) VALUES (1, 0);
`

// Store is the server-side sync store. All writes that bump
// global_revision go through nextRevisionTx inside the same critical
// section as the row mutation, so two concurrent pushes never observe the
// same revision number.
type Store struct {
	mu  sync.Mutex
	db  *sql.DB
	log zerolog.Logger
}

func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, apperr.Wrap(apperr.Database, err, "open server database")
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperr.Wrap(apperr.Database, err, "apply server schema")
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// GlobalRevision returns the current counter without advancing it.
func (s *Store) GlobalRevision() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rev int64
	if err := s.db.QueryRow(`SELECT global_revision FROM sync_state WHERE id = 1`).Scan(&rev); err != nil {
		return 0, apperr.Wrap(apperr.Database, err, "read global revision")
	}
	return rev, nil
}

// nextRevisionTx must be called with s.mu already held and inside the same
// tx that stamps the row being upserted.
func nextRevisionTx(tx *sql.Tx) (int64, error) {
	var rev int64
	if err := tx.QueryRow(`UPDATE sync_state SET global_revision = global_revision + 1 WHERE id = 1 RETURNING global_revision`).Scan(&rev); err != nil {
		return 0, apperr.Wrap(apperr.Database, err, "advance global revision")
	}
	return rev, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool { return i != 0 }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) (time.Time, error) { return time.Parse(time.RFC3339Nano, s) }

func nullableStringToSQL(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func sqlToNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
