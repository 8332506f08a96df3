package sqlite

import (
	"context"
	"fmt"

	"github.com/maloquacious/xrefstore/internal/store"
)

// The pair (a, b) is the natural key: declaring it as the composite
// primary key makes INSERT OR IGNORE meaningful and keeps Len and
// iteration duplicate-free.
const createTableSQL = `
CREATE TABLE IF NOT EXISTS %s (
    a TEXT NOT NULL,
    b TEXT NOT NULL,
    PRIMARY KEY (a, b)
) WITHOUT ROWID;
`

// tableExists introspects the catalog for the association table.
func (s *Store) tableExists(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`,
		s.table,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", s.table, err)
	}
	return count > 0, nil
}

func (s *Store) createTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(createTableSQL, s.table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", s.table, err)
	}
	return nil
}

// ensureTable creates the table only if it does not exist yet. Called by
// Open; safe to call repeatedly.
func (s *Store) ensureTable(ctx context.Context) error {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.createTable(ctx)
}

// CreateIndices builds one single-column index per key column. Lookups
// are always single-column, so no composite index is created. Invoked
// explicitly after bulk loads; index maintenance during high-volume
// insertion dominates total load time otherwise.
func (s *Store) CreateIndices(ctx context.Context) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	for _, col := range []store.Column{store.ColumnA, store.ColumnB} {
		stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s (%s)`,
			s.table, col, s.table, col)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create index on %s.%s: %w", s.table, col, err)
		}
	}
	return nil
}

func (s *Store) dropTable(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, s.table)); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", s.table, err)
	}
	return nil
}

// Wipe resets the store to empty by dropping and recreating the table.
// Much cheaper than row-by-row deletion; the backing file is kept.
func (s *Store) Wipe(ctx context.Context) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	if err := s.dropTable(ctx); err != nil {
		return err
	}
	return s.createTable(ctx)
}
