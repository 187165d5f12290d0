// Package sqlite implements the storage interface using SQLite.
//
// The store keeps one connection open (SQLite is single-writer) and relies
// on WAL mode plus a busy timeout for concurrent readers. Per-team sequence
// numbers for issues are assigned inside the insert statement itself, so two
// concurrent creates for the same team cannot observe the same max.
//
// File layout:
//   - sqlite.go:   Store struct, Open, Close
//   - schema.go:   schema DDL
//   - teams.go:    teams, memberships
//   - projects.go: projects, workflow states, labels, issue-label links
//   - issues.go:   issue CRUD, comments, counters
//   - sessions.go: conversation sessions, invitations
package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/tracklane/tracklane/internal/storage"
)

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
}

var _ storage.Store = (*Store)(nil)

// Open opens or creates the SQLite database at the given path and applies
// the schema. Use ":memory:" for an ephemeral database in tests.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite is single-writer; limit the pool to one connection to avoid
	// lock contention and make the single-connection intent explicit.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// scanner abstracts *sql.Row and *sql.Rows for scanning a single row.
type scanner interface {
	Scan(dest ...any) error
}
