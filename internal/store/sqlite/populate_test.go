package sqlite

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maloquacious/xrefstore/internal/store"
)

func TestPopulate(t *testing.T) {
	s := newTestStore(t)
	src := strings.NewReader("x 1\ny 2\nx 1\n")

	total, err := s.Populate(context.Background(), src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total, "duplicate line yields no net insert")
	mustLen(t, s, 2)
}

func TestPopulate_BuildsIndices(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Populate(context.Background(), strings.NewReader("x 1\n"), nil, nil)
	require.NoError(t, err)

	var count int
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name LIKE ?`,
		"idx_"+s.table+"_%",
	).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "one index per key column after the load")
}

func TestPopulate_SkipsUnparsableLines(t *testing.T) {
	s := newTestStore(t)
	src := strings.NewReader("x 1\n\nmalformed\ny 2\n")

	total, err := s.Populate(context.Background(), src, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestPopulate_CustomParse(t *testing.T) {
	s := newTestStore(t)
	src := strings.NewReader("x,1\ny,2\n")

	parse := func(line []byte) (store.Pair, bool) {
		fields := bytes.SplitN(line, []byte(","), 2)
		if len(fields) < 2 {
			return store.Pair{}, false
		}
		return store.Pair{A: string(fields[0]), B: string(fields[1])}, true
	}

	total, err := s.Populate(context.Background(), src, parse, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	got, err := s.LookupOne(context.Background(), "x", store.ColumnA)
	require.NoError(t, err)
	assert.True(t, got.Has("1"))
}

func TestPopulate_MultipleRounds(t *testing.T) {
	// A tiny byte budget forces one or two lines per round.
	s := newTestStore(t, WithBatchBytes(8))

	var src strings.Builder
	const total = 50
	for i := 0; i < total; i++ {
		fmt.Fprintf(&src, "a%04d b%04d\n", i, i)
	}

	n, err := s.Populate(context.Background(), strings.NewReader(src.String()), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(total), n)
	mustLen(t, s, total)
}

func TestPopulate_ProgressIsCumulative(t *testing.T) {
	s := newTestStore(t, WithBatchBytes(8))

	var src strings.Builder
	const total = 20
	for i := 0; i < total; i++ {
		fmt.Fprintf(&src, "a%04d b%04d\n", i, i)
	}

	var reports []int64
	progress := func(inserted int64) {
		reports = append(reports, inserted)
	}

	n, err := s.Populate(context.Background(), strings.NewReader(src.String()), nil, progress)
	require.NoError(t, err)

	require.NotEmpty(t, reports)
	for i := 1; i < len(reports); i++ {
		assert.GreaterOrEqual(t, reports[i], reports[i-1], "progress must be monotonic")
	}
	assert.Equal(t, n, reports[len(reports)-1])
}

func TestPopulate_PanickingSinkDoesNotAbort(t *testing.T) {
	s := newTestStore(t)

	progress := func(int64) {
		panic("sink failure")
	}

	total, err := s.Populate(context.Background(), strings.NewReader("x 1\ny 2\n"), nil, progress)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}

func TestPopulate_EmptySource(t *testing.T) {
	s := newTestStore(t)

	total, err := s.Populate(context.Background(), strings.NewReader(""), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, total)
	mustLen(t, s, 0)
}

func TestPopulate_NotOpen(t *testing.T) {
	s, err := New("test.db")
	require.NoError(t, err)

	_, err = s.Populate(context.Background(), strings.NewReader("x 1\n"), nil, nil)
	assert.ErrorIs(t, err, store.ErrNotOpen)
}
