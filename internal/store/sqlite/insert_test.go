package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloquacious/xrefstore/internal/store"
)

func TestInsertOne_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertOne(ctx, "P00533", "EGFR"))
	}
	mustLen(t, s, 1)
}

func TestInsertPairs_CountsActualInserts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	n, err := s.InsertPairs(ctx,
		store.Pair{A: "x", B: "1"},
		store.Pair{A: "y", B: "2"},
		store.Pair{A: "x", B: "1"},
	)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "duplicate in batch must not be counted")
	mustLen(t, s, 2)

	// Re-inserting an existing pair yields zero net inserts
	n, err = s.InsertPairs(ctx, store.Pair{A: "x", B: "1"})
	require.NoError(t, err)
	assert.Zero(t, n)
	mustLen(t, s, 2)
}

func TestInsertMany_MapSeq(t *testing.T) {
	s := newTestStore(t)

	n, err := s.InsertMany(context.Background(), store.MapSeq(map[string][]string{
		"x": {"1", "2"},
		"y": {"3"},
	}), false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	mustLen(t, s, 3)
}

func TestInsertMany_Empty(t *testing.T) {
	s := newTestStore(t)

	n, err := s.InsertMany(context.Background(), store.MapSeq(nil), false)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertMany_SpansChunks(t *testing.T) {
	s := newTestStore(t)

	// Three chunks' worth of distinct pairs
	total := insertChunk*2 + 57
	pairs := func(yield func(store.Pair) bool) {
		for i := 0; i < total; i++ {
			if !yield(store.Pair{A: fmt.Sprintf("a%05d", i), B: fmt.Sprintf("b%05d", i)}) {
				return
			}
		}
	}

	n, err := s.InsertMany(context.Background(), pairs, false)
	require.NoError(t, err)
	assert.Equal(t, int64(total), n)
	mustLen(t, s, int64(total))
}

func TestInsertMany_Atomicity(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The first chunk flushes cleanly, then the context is cancelled so
	// the final flush fails. The whole transaction must roll back.
	pairs := func(yield func(store.Pair) bool) {
		for i := 0; i < insertChunk; i++ {
			if !yield(store.Pair{A: fmt.Sprintf("a%05d", i), B: fmt.Sprintf("b%05d", i)}) {
				return
			}
		}
		cancel()
		yield(store.Pair{A: "late", B: "pair"})
	}

	_, err := s.InsertMany(ctx, pairs, false)
	require.Error(t, err)
	mustLen(t, s, 0)
}

func TestInsertMany_RestoresSharedLocking(t *testing.T) {
	s := newTestStore(t)
	insertPairs(t, s, store.Pair{A: "x", B: "1"})

	// The bulk profile takes an exclusive lock; after the restore a
	// second connection must be able to read the file again.
	db2, err := sql.Open("sqlite", s.Path())
	require.NoError(t, err)
	defer db2.Close()

	var n int
	err = db2.QueryRow(`SELECT COUNT(*) FROM ` + s.table).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// And the store's own connection keeps working under shared locking.
	insertPairs(t, s, store.Pair{A: "y", B: "2"})
	mustLen(t, s, 2)
}

func TestInsertMany_BuildIndices(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertMany(ctx, store.MapSeq(map[string][]string{"x": {"1"}}), true)
	require.NoError(t, err)

	for _, col := range []store.Column{store.ColumnA, store.ColumnB} {
		var count int
		err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`,
			fmt.Sprintf("idx_%s_%s", s.table, col),
		).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "index on column %s should exist", col)
	}
}

func TestCreateIndices_Idempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateIndices(ctx))
	require.NoError(t, s.CreateIndices(ctx))
}
