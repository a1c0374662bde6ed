// Package catalog stores try-on products in SQLite.
package catalog

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is the product catalog database.
type Store struct {
	db   *sql.DB
	path string
}

// New opens the catalog at dbPath, creating and migrating it if needed.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying connection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}
