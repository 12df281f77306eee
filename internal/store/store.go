// Package store persists the constant-definition cache. Listing
// definitions means booting the checker's Ruby environment, which takes
// seconds on large workspaces; caching the result in SQLite gives the
// server instant go-to-definition on startup while a refresh runs in the
// background.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"packls/internal/checker"
)

// Store is the persistence interface for the definitions cache.
type Store interface {
	// ReplaceDefinitions swaps the entire cache in one transaction.
	// Wholesale replace, never a partial patch: the cache must always
	// reflect exactly one list-definitions run.
	ReplaceDefinitions(ctx context.Context, defs []checker.Definition) error

	// Lookup returns the defining path for a fully qualified constant.
	Lookup(ctx context.Context, constant string) (string, bool, error)

	// LookupPrefix returns definitions whose constant starts with prefix,
	// capped at limit.
	LookupPrefix(ctx context.Context, prefix string, limit int) ([]checker.Definition, error)

	// Count returns the number of cached definitions.
	Count(ctx context.Context) (int, error)

	// Lifecycle
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-backed store at the given path.
// Creates parent directories if needed. Enables WAL mode and a busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// NewMemoryStore creates an in-memory SQLite store for testing.
// Uses a shared cache so multiple connections see the same database.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	connStr := "file::memory:?mode=memory&cache=shared"
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
