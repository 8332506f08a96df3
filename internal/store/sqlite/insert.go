package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/maloquacious/xrefstore/internal/store"
)

const (
	// maxBindVars is the engine's bound-parameter budget per statement.
	// 999 is the historical SQLITE_MAX_VARIABLE_NUMBER floor; staying
	// under it keeps statements valid on every build.
	maxBindVars = 999

	// insertChunk is the pairs-per-statement chunk size: two parameters
	// per pair must fit in maxBindVars.
	insertChunk = maxBindVars / 2
)

// InsertOne inserts a single pair, ignoring it if already present. No
// pragma switching or chunking on this path.
func (s *Store) InsertOne(ctx context.Context, a, b string) error {
	if s.db == nil {
		return store.ErrNotOpen
	}
	stmt := fmt.Sprintf(`INSERT OR IGNORE INTO %s (a, b) VALUES (?, ?)`, s.table)
	if _, err := s.db.ExecContext(ctx, stmt, a, b); err != nil {
		return fmt.Errorf("insert pair: %w", err)
	}
	return nil
}

// InsertPairs inserts a small literal batch of pairs and returns the
// number actually inserted.
func (s *Store) InsertPairs(ctx context.Context, pairs ...store.Pair) (int64, error) {
	return s.InsertMany(ctx, slices.Values(pairs), false)
}

// InsertMany bulk-inserts pairs inside one transaction under the
// insert_many pragma profile. The returned count is rows actually
// inserted; duplicates are ignored and not counted. Any failure rolls
// back the entire transaction before the error is returned, and the
// default profile is restored on every exit path. When buildIndices is
// true the per-column indices are built after the commit; streaming
// loaders pass false and build them once at the very end.
func (s *Store) InsertMany(ctx context.Context, pairs iter.Seq[store.Pair], buildIndices bool) (int64, error) {
	if s.db == nil {
		return 0, store.ErrNotOpen
	}

	if err := s.applyProfile(ProfileInsertMany); err != nil {
		return 0, err
	}
	inserted, err := s.insertAll(ctx, pairs)
	if rerr := s.restoreDefault(); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return 0, fmt.Errorf("bulk insert: %w", err)
	}

	if buildIndices {
		if err := s.CreateIndices(ctx); err != nil {
			return inserted, err
		}
	}
	return inserted, nil
}

// insertAll drains pairs into the table inside one transaction, one
// multi-row statement per chunk.
func (s *Store) insertAll(ctx context.Context, pairs iter.Seq[store.Pair]) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var total int64
	chunk := make([]store.Pair, 0, insertChunk)

	flush := func() error {
		n, err := s.execChunk(ctx, tx, chunk)
		if err != nil {
			return err
		}
		total += n
		chunk = chunk[:0]
		return nil
	}

	for p := range pairs {
		chunk = append(chunk, p)
		if len(chunk) == insertChunk {
			if err := flush(); err != nil {
				return 0, err
			}
		}
	}
	if len(chunk) > 0 {
		if err := flush(); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return total, nil
}

// execChunk executes one multi-row INSERT OR IGNORE and returns the
// number of rows actually inserted (sqlite's change count excludes
// ignored conflicts).
func (s *Store) execChunk(ctx context.Context, tx *sql.Tx, chunk []store.Pair) (int64, error) {
	if len(chunk) == 0 {
		return 0, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, `INSERT OR IGNORE INTO %s (a, b) VALUES `, s.table)
	args := make([]any, 0, len(chunk)*2)
	for i, p := range chunk {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?)")
		args = append(args, p.A, p.B)
	}

	res, err := tx.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("exec chunk of %d pairs: %w", len(chunk), err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}
