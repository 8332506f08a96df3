package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/maloquacious/xrefstore/internal/store"
)

// newTestStore opens a store on a fresh temp file and closes it when the
// test ends.
func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(path, opts...)
	require.NoError(t, err)
	require.NoError(t, s.Open())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// mustLen fails the test unless the store holds exactly want pairs.
func mustLen(t *testing.T, s *Store, want int64) {
	t.Helper()
	n, err := s.Len(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, n)
}

// insertPairs seeds the store and fails the test on error.
func insertPairs(t *testing.T, s *Store, pairs ...store.Pair) {
	t.Helper()
	_, err := s.InsertPairs(context.Background(), pairs...)
	require.NoError(t, err)
}
