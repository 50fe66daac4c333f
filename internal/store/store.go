// Package store provides the client-side Entity Store: SQLite-backed,
// transactional persistence for Note, Notebook, Tag, and Reminder, plus the
// LocalSyncState row the sync engine owns. It is adapted from the donor
// WASM note layer's SQLiteStore, generalized from a single temporal Note
// table to the four flat, soft-deletable entity kinds this system models.
package store

import (
	"database/sql"
	"sync"
	"time"

	"github.com/rs/zerolog"

	_ "github.com/ncruces/go-sqlite3/driver"
)

// Store is the SQLite-backed client Entity Store. All mutations serialize
// through mu, matching the "store-wide exclusive lock" failure semantics
// required by the spec; reads take the read lock and may proceed
// concurrently with each other.
type Store struct {
	mu  sync.RWMutex
	db  *sql.DB
	log zerolog.Logger
}

// Open creates or opens the client database file at path.
func Open(path string, log zerolog.Logger) (*Store, error) {
	return openDSN(path, log)
}

// OpenMemory opens a private in-memory database, used by tests.
func OpenMemory(log zerolog.Logger) (*Store, error) {
	return openDSN(":memory:", log)
}

func openDSN(dsn string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // one SQLite connection; mu.RWMutex does the serialization above it
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, log: log}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool { return i != 0 }

func nowFn() time.Time { return time.Now().UTC() }

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullableTimeToSQL(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func sqlToNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

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
