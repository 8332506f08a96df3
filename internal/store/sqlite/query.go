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

func checkColumn(col store.Column) error {
	if !col.Valid() {
		return fmt.Errorf("invalid column %q", col)
	}
	return nil
}

// placeholders returns "?, ?, ..., ?" with n markers.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// LookupOne returns the other column's values for every row whose col
// matches key. A miss is an empty set, never an error.
func (s *Store) LookupOne(ctx context.Context, key string, col store.Column) (store.Set, error) {
	if s.db == nil {
		return nil, store.ErrNotOpen
	}
	if err := checkColumn(col); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = ?`, col.Other(), s.table, col)
	rows, err := s.db.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("lookup %s: %w", col, err)
	}
	defer rows.Close()

	out := make(store.Set)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("scan value: %w", err)
		}
		out.Add(v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return out, nil
}

// Lookup tries column a first and falls back to column b when the result
// is empty. A genuinely partner-less key in column a is indistinguishable
// from a miss, so the fallback is always attempted on an empty set; a key
// present in neither column yields an empty set.
func (s *Store) Lookup(ctx context.Context, key string) (store.Set, error) {
	res, err := s.LookupOne(ctx, key, store.ColumnA)
	if err != nil {
		return nil, err
	}
	if len(res) > 0 {
		return res, nil
	}
	return s.LookupOne(ctx, key, store.ColumnB)
}

// LookupMany batches lookups for many keys into chunked IN queries,
// aggregating the other column's values per key. Keys with no match are
// absent from the result.
func (s *Store) LookupMany(ctx context.Context, keys []string, col store.Column) (map[string]store.Set, error) {
	if s.db == nil {
		return nil, store.ErrNotOpen
	}
	if err := checkColumn(col); err != nil {
		return nil, err
	}

	out := make(map[string]store.Set, len(keys))
	for chunk := range slices.Chunk(keys, maxBindVars) {
		query := fmt.Sprintf(`SELECT a, b FROM %s WHERE %s IN (%s)`,
			s.table, col, placeholders(len(chunk)))
		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("lookup many: %w", err)
		}
		for rows.Next() {
			var p store.Pair
			if err := rows.Scan(&p.A, &p.B); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan pair: %w", err)
			}
			key, val := p.A, p.B
			if col == store.ColumnB {
				key, val = p.B, p.A
			}
			if out[key] == nil {
				out[key] = make(store.Set)
			}
			out[key].Add(val)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate pairs: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// Contains reports whether value occurs in either column.
func (s *Store) Contains(ctx context.Context, value string) (bool, error) {
	if s.db == nil {
		return false, store.ErrNotOpen
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE a = ? OR b = ?)`, s.table)
	var found bool
	if err := s.db.QueryRowContext(ctx, query, value, value).Scan(&found); err != nil {
		return false, fmt.Errorf("contains: %w", err)
	}
	return found, nil
}

// ContainsPair reports whether the exact pair is stored.
func (s *Store) ContainsPair(ctx context.Context, a, b string) (bool, error) {
	if s.db == nil {
		return false, store.ErrNotOpen
	}
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE a = ? AND b = ?)`, s.table)
	var found bool
	if err := s.db.QueryRowContext(ctx, query, a, b).Scan(&found); err != nil {
		return false, fmt.Errorf("contains pair: %w", err)
	}
	return found, nil
}

// ContainsMany returns the subset of values that occur in the given
// column. The result holds the matched inputs themselves, not their
// partners.
func (s *Store) ContainsMany(ctx context.Context, values []string, col store.Column) (store.Set, error) {
	if s.db == nil {
		return nil, store.ErrNotOpen
	}
	if err := checkColumn(col); err != nil {
		return nil, err
	}

	out := make(store.Set)
	for chunk := range slices.Chunk(values, maxBindVars) {
		query := fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IN (%s)`,
			col, s.table, col, placeholders(len(chunk)))
		args := make([]any, len(chunk))
		for i, v := range chunk {
			args[i] = v
		}

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("contains many: %w", err)
		}
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan value: %w", err)
			}
			out.Add(v)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate values: %w", err)
		}
		rows.Close()
	}
	return out, nil
}

// All iterates every pair in bounded pages, keyset-paginated over the
// primary key so memory stays flat regardless of table size. Each new
// iteration restarts from the beginning. Iteration order is unspecified
// to callers.
func (s *Store) All(ctx context.Context) iter.Seq2[store.Pair, error] {
	return func(yield func(store.Pair, error) bool) {
		if s.db == nil {
			yield(store.Pair{}, store.ErrNotOpen)
			return
		}

		firstQuery := fmt.Sprintf(`SELECT a, b FROM %s ORDER BY a, b LIMIT ?`, s.table)
		nextQuery := fmt.Sprintf(`SELECT a, b FROM %s WHERE (a, b) > (?, ?) ORDER BY a, b LIMIT ?`, s.table)

		var lastA, lastB string
		first := true
		for {
			var rows *sql.Rows
			var err error
			if first {
				rows, err = s.db.QueryContext(ctx, firstQuery, s.pageSize)
			} else {
				rows, err = s.db.QueryContext(ctx, nextQuery, lastA, lastB, s.pageSize)
			}
			if err != nil {
				yield(store.Pair{}, fmt.Errorf("scan page: %w", err))
				return
			}

			page, err := scanPage(rows)
			if err != nil {
				yield(store.Pair{}, err)
				return
			}
			for _, p := range page {
				if !yield(p, nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				return
			}
			last := page[len(page)-1]
			lastA, lastB = last.A, last.B
			first = false
		}
	}
}

// scanPage drains and closes one page of rows.
func scanPage(rows *sql.Rows) ([]store.Pair, error) {
	defer rows.Close()
	var page []store.Pair
	for rows.Next() {
		var p store.Pair
		if err := rows.Scan(&p.A, &p.B); err != nil {
			return nil, fmt.Errorf("scan pair: %w", err)
		}
		page = append(page, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page: %w", err)
	}
	return page, nil
}

// ToSet flattens both elements of every row into one set. Linear in
// table size in both time and memory; use on small and medium stores
// only. The set-algebra entry points guard against large tables.
func (s *Store) ToSet(ctx context.Context) (store.Set, error) {
	out := make(store.Set)
	for p, err := range s.All(ctx) {
		if err != nil {
			return nil, err
		}
		out.Add(p.A)
		out.Add(p.B)
	}
	return out, nil
}

// guardMaterialize fails fast before any materialization when the store
// exceeds the configured limit. Deliberate backpressure: callers retry
// with a narrower value set or raise the limit.
func (s *Store) guardMaterialize(ctx context.Context, op string) error {
	n, err := s.Len(ctx)
	if err != nil {
		return err
	}
	if n > s.unionLimit {
		return fmt.Errorf("%s: store holds %d rows, limit is %d: %w",
			op, n, s.unionLimit, store.ErrStoreTooLarge)
	}
	return nil
}

// Union returns the union of the store's flattened values and the given
// values, guarded by the materialization limit.
func (s *Store) Union(ctx context.Context, values []string) (store.Set, error) {
	if s.db == nil {
		return nil, store.ErrNotOpen
	}
	if err := s.guardMaterialize(ctx, "union"); err != nil {
		return nil, err
	}
	all, err := s.ToSet(ctx)
	if err != nil {
		return nil, err
	}
	return all.Union(store.NewSet(values...)), nil
}

// SymmetricDifference returns the values present in exactly one of the
// store's flattened values and the given values, guarded by the
// materialization limit.
func (s *Store) SymmetricDifference(ctx context.Context, values []string) (store.Set, error) {
	if s.db == nil {
		return nil, store.ErrNotOpen
	}
	if err := s.guardMaterialize(ctx, "symmetric difference"); err != nil {
		return nil, err
	}
	all, err := s.ToSet(ctx)
	if err != nil {
		return nil, err
	}
	return all.SymmetricDifference(store.NewSet(values...)), nil
}
