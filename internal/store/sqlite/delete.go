package sqlite

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/maloquacious/xrefstore/internal/store"
)

// Deletions are plain, non-batched-transaction deletes: removal volume is
// assumed low relative to bulk loads, so no pragma switching here.

// RemoveOne deletes every row where value occurs in the given column.
func (s *Store) RemoveOne(ctx context.Context, value string, col store.Column) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	if err := checkColumn(col); err != nil {
		return err
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s = ?`, s.table, col)
	if _, err := s.db.ExecContext(ctx, stmt, value); err != nil {
		return fmt.Errorf("remove from %s: %w", col, err)
	}
	return nil
}

// RemoveOneBoth deletes every row where value occurs in either column.
func (s *Store) RemoveOneBoth(ctx context.Context, value string) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	stmt := fmt.Sprintf(`DELETE FROM %s WHERE a = ? OR b = ?`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt, value, value); err != nil {
		return fmt.Errorf("remove both: %w", err)
	}
	return nil
}

// RemoveMany deletes every row whose col value is in values, chunked to
// the bound-parameter budget.
func (s *Store) RemoveMany(ctx context.Context, values []string, col store.Column) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	if err := checkColumn(col); err != nil {
		return err
	}
	for chunk := range slices.Chunk(values, maxBindVars) {
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE %s IN (%s)`,
			s.table, col, placeholders(len(chunk)))
		args := make([]any, len(chunk))
		for i, v := range chunk {
			args[i] = v
		}
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("remove many from %s: %w", col, err)
		}
	}
	return nil
}

// RemoveManyBoth deletes every row where any of values occurs in either
// column. Each value binds twice, so chunks are half the parameter budget.
func (s *Store) RemoveManyBoth(ctx context.Context, values []string) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	for chunk := range slices.Chunk(values, maxBindVars/2) {
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE a IN (%s) OR b IN (%s)`,
			s.table, placeholders(len(chunk)), placeholders(len(chunk)))
		args := make([]any, 0, len(chunk)*2)
		for _, v := range chunk {
			args = append(args, v)
		}
		for _, v := range chunk {
			args = append(args, v)
		}
		if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("remove many both: %w", err)
		}
	}
	return nil
}

// DeleteDatabase closes the connection and removes the backing file along
// with SQLite's WAL side files. Destructive and irreversible; the store
// may be reconstructed by reopening, which starts from an empty file.
func (s *Store) DeleteDatabase() error {
	if err := s.Close(); err != nil {
		return fmt.Errorf("close before delete: %w", err)
	}
	if err := os.Remove(s.dbPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove database file: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if err := os.Remove(s.dbPath + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove database side file: %w", err)
		}
	}
	return nil
}
