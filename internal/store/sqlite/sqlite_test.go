package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloquacious/xrefstore/internal/store"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Open())
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file should exist after Open")
}

func TestOpen_EnsuresTable(t *testing.T) {
	s := newTestStore(t)

	exists, err := s.tableExists(context.Background())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	require.NoError(t, err)

	// Open on an open store is a no-op
	require.NoError(t, s.Open())
	require.NoError(t, s.Open())
	require.NoError(t, s.Close())

	// Reopen after close is valid and finds the schema intact
	require.NoError(t, s.Open())
	defer s.Close()
	mustLen(t, s, 0)
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Open())
	insertPairs(t, s, store.Pair{A: "x", B: "1"})
	require.NoError(t, s.Close())

	require.NoError(t, s.Open())
	defer s.Close()
	mustLen(t, s, 1)
}

func TestNew_InvalidTableName(t *testing.T) {
	for _, name := range []string{"", "1abc", "bad-name", "drop table; --"} {
		_, err := New("test.db", WithTable(name))
		assert.Error(t, err, "table %q should be rejected", name)
	}
}

func TestNew_InvalidLimits(t *testing.T) {
	_, err := New("test.db", WithUnionLimit(0))
	assert.Error(t, err)
	_, err = New("test.db", WithPageSize(-1))
	assert.Error(t, err)
	_, err = New("test.db", WithBatchBytes(0))
	assert.Error(t, err)
}

func TestOperations_NotOpen(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = s.Len(ctx)
	assert.ErrorIs(t, err, store.ErrNotOpen)
	err = s.InsertOne(ctx, "x", "1")
	assert.ErrorIs(t, err, store.ErrNotOpen)
	_, err = s.LookupOne(ctx, "x", store.ColumnA)
	assert.ErrorIs(t, err, store.ErrNotOpen)
	err = s.Wipe(ctx)
	assert.ErrorIs(t, err, store.ErrNotOpen)
}

func TestClose_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := New(path)
	require.NoError(t, err)
	require.NoError(t, s.Open())
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}

func TestApplyProfile_Unknown(t *testing.T) {
	s := newTestStore(t)
	err := s.applyProfile("turbo")
	assert.Error(t, err)
}

func TestApplyProfile_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	// Switching to the bulk profile and back must leave the store usable.
	require.NoError(t, s.applyProfile(ProfileInsertMany))
	require.NoError(t, s.restoreDefault())

	insertPairs(t, s, store.Pair{A: "x", B: "1"})
	mustLen(t, s, 1)
}

func TestStore_TooLargeIsRecoverable(t *testing.T) {
	s := newTestStore(t, WithUnionLimit(1))
	insertPairs(t, s,
		store.Pair{A: "x", B: "1"},
		store.Pair{A: "y", B: "2"},
	)

	_, err := s.Union(context.Background(), []string{"z"})
	require.True(t, errors.Is(err, store.ErrStoreTooLarge))

	// The guard is a checked condition, not a defect: the store keeps working.
	got, err := s.Lookup(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, got.Has("1"))
}
