package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"packls/internal/checker"
)

// ReplaceDefinitions swaps the entire definitions table in one transaction.
func (s *SQLiteStore) ReplaceDefinitions(ctx context.Context, defs []checker.Definition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM definitions"); err != nil {
		return fmt.Errorf("clearing definitions: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO definitions (constant, path) VALUES (?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, def := range defs {
		if _, err := stmt.ExecContext(ctx, def.Constant, def.Path); err != nil {
			return fmt.Errorf("inserting %s: %w", def.Constant, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing definitions: %w", err)
	}
	return nil
}

// Lookup returns the defining path for a fully qualified constant.
// Constants are stored with the leading "::"; a bare name is normalized.
func (s *SQLiteStore) Lookup(ctx context.Context, constant string) (string, bool, error) {
	if !strings.HasPrefix(constant, "::") {
		constant = "::" + constant
	}

	var path string
	err := s.db.QueryRowContext(ctx,
		"SELECT path FROM definitions WHERE constant = ?", constant).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("looking up %s: %w", constant, err)
	}
	return path, true, nil
}

// LookupPrefix returns definitions whose constant starts with prefix,
// ordered by constant name and capped at limit.
func (s *SQLiteStore) LookupPrefix(ctx context.Context, prefix string, limit int) ([]checker.Definition, error) {
	if limit <= 0 {
		limit = 50
	}
	if !strings.HasPrefix(prefix, "::") {
		prefix = "::" + prefix
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT constant, path FROM definitions WHERE constant LIKE ? || '%' ORDER BY constant LIMIT ?",
		prefix, limit)
	if err != nil {
		return nil, fmt.Errorf("prefix query %s: %w", prefix, err)
	}
	defer rows.Close()

	var defs []checker.Definition
	for rows.Next() {
		var def checker.Definition
		if err := rows.Scan(&def.Constant, &def.Path); err != nil {
			return nil, fmt.Errorf("scanning definition: %w", err)
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

// Count returns the number of cached definitions.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM definitions").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting definitions: %w", err)
	}
	return n, nil
}
