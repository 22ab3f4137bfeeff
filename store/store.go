// Package store is the crawler's single embedded SQLite database: the
// document catalog, the FAQ and link-graph tables, asset and external
// registries, the durable frontier queue, and a full-text index over
// document title + content.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

// Store wraps the database. Writes are serialized through a single lock;
// crawl throughput is network-bound so one writer is never the
// bottleneck.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the database at path, applies the
// production pragmas, and ensures the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: mkdir: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	return &Store{db: db}, nil
}

// OpenMemory opens an in-memory store for tests. MaxOpenConns(1) keeps
// every query on the same in-memory database.
func OpenMemory(t testing.TB) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("store.OpenMemory: %v", err)
	}
	s.db.SetMaxOpenConns(1)
	t.Cleanup(func() { s.Close() })
	return s
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
