package store

import (
	"context"
	"errors"
	"io"
	"iter"
)

// Column names one of the two key columns of an association table.
type Column string

const (
	ColumnA Column = "a"
	ColumnB Column = "b"
)

// Valid reports whether c is one of the two key columns.
func (c Column) Valid() bool {
	return c == ColumnA || c == ColumnB
}

// Other returns the opposite key column.
func (c Column) Other() Column {
	if c == ColumnA {
		return ColumnB
	}
	return ColumnA
}

var (
	// ErrNotOpen is returned by operations invoked before Open or after Close.
	ErrNotOpen = errors.New("store: not open")

	// ErrStoreTooLarge is returned by set-algebra operations when the store
	// holds more rows than the configured materialization limit.
	ErrStoreTooLarge = errors.New("store: too large to materialize")
)

// ParseFunc maps one raw input line to a pair. It returns false for lines
// that should be skipped (blank, comments, malformed).
type ParseFunc func(line []byte) (Pair, bool)

// ProgressFunc receives the cumulative number of rows inserted so far
// during a bulk load. It is purely observational; implementations must
// tolerate a misbehaving sink without aborting the load.
type ProgressFunc func(inserted int64)

// Store is the bidirectional association store contract.
// A store records (a, b) identifier pairs, deduplicated on the full pair,
// and answers lookups symmetrically regardless of which column a key
// occupies. Implementations hold a single connection between Open and
// Close; reopening after Close is valid.
type Store interface {
	Open() error
	Close() error

	// Len returns the number of distinct pairs in the store.
	Len(ctx context.Context) (int64, error)

	// InsertOne inserts a single pair, ignoring it if already present.
	InsertOne(ctx context.Context, a, b string) error

	// InsertPairs inserts a small literal batch of pairs.
	InsertPairs(ctx context.Context, pairs ...Pair) (int64, error)

	// InsertMany bulk-inserts pairs inside one transaction, returning the
	// number of rows actually inserted (duplicates are ignored and not
	// counted). If buildIndices is true the per-column indices are built
	// after the transaction commits; bulk-loading callers defer this
	// across calls and build the indices once at the end.
	InsertMany(ctx context.Context, pairs iter.Seq[Pair], buildIndices bool) (int64, error)

	// Populate streams pairs from src into the store in bounded rounds,
	// deferring index construction until the source is exhausted.
	Populate(ctx context.Context, src io.Reader, parse ParseFunc, progress ProgressFunc) (int64, error)

	// CreateIndices builds one index per key column.
	CreateIndices(ctx context.Context) error

	LookupOne(ctx context.Context, key string, col Column) (Set, error)
	Lookup(ctx context.Context, key string) (Set, error)
	LookupMany(ctx context.Context, keys []string, col Column) (map[string]Set, error)
	Contains(ctx context.Context, value string) (bool, error)
	ContainsPair(ctx context.Context, a, b string) (bool, error)
	ContainsMany(ctx context.Context, values []string, col Column) (Set, error)

	// All iterates every pair in the store in bounded pages. Iteration
	// order is unspecified. Starting a new iteration restarts from the
	// beginning.
	All(ctx context.Context) iter.Seq2[Pair, error]

	// ToSet flattens both columns of every row into one set. Linear in
	// table size; intended for small and medium stores only.
	ToSet(ctx context.Context) (Set, error)

	Union(ctx context.Context, values []string) (Set, error)
	SymmetricDifference(ctx context.Context, values []string) (Set, error)

	RemoveOne(ctx context.Context, value string, col Column) error
	RemoveOneBoth(ctx context.Context, value string) error
	RemoveMany(ctx context.Context, values []string, col Column) error
	RemoveManyBoth(ctx context.Context, values []string) error

	// Wipe drops and recreates the table, resetting the store to empty
	// without discarding the backing file.
	Wipe(ctx context.Context) error

	// DeleteDatabase closes the connection and removes the backing file.
	// Destructive and irreversible.
	DeleteDatabase() error
}
