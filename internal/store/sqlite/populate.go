package sqlite

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"iter"

	"github.com/maloquacious/xrefstore/internal/store"
)

// maxLineBytes caps a single input line; mapping dumps with longer lines
// are malformed.
const maxLineBytes = 1 << 20

// Populate streams pairs from src into the store without ever holding the
// whole source in memory. Each round reads up to the configured byte
// budget worth of lines, parses them lazily with parse (DefaultParse when
// nil) and feeds them to InsertMany with index construction deferred. The
// loop stops when a round inserts zero new rows; a round made up entirely
// of already-present pairs therefore ends the load early. Cumulative
// inserted counts are reported to progress after every round; a failing
// sink never aborts the load. Both indices are built once at the end.
func (s *Store) Populate(ctx context.Context, src io.Reader, parse store.ParseFunc, progress store.ProgressFunc) (int64, error) {
	if s.db == nil {
		return 0, store.ErrNotOpen
	}
	if parse == nil {
		parse = store.DefaultParse
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var total int64
	for {
		lines := s.readRound(sc)
		inserted, err := s.InsertMany(ctx, parsePairs(lines, parse), false)
		if err != nil {
			return total, err
		}
		total += inserted
		notify(progress, total)
		if inserted == 0 {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return total, fmt.Errorf("read source: %w", err)
	}

	if err := s.CreateIndices(ctx); err != nil {
		return total, err
	}
	return total, nil
}

// readRound collects raw lines until the per-round byte budget is spent
// or the source is exhausted. The scanner reuses its buffer, so lines are
// copied out.
func (s *Store) readRound(sc *bufio.Scanner) [][]byte {
	var lines [][]byte
	size := 0
	for size < s.batchBytes && sc.Scan() {
		line := make([]byte, len(sc.Bytes()))
		copy(line, sc.Bytes())
		lines = append(lines, line)
		size += len(line) + 1
	}
	return lines
}

// parsePairs applies parse lazily over the round's lines, skipping lines
// the parser rejects.
func parsePairs(lines [][]byte, parse store.ParseFunc) iter.Seq[store.Pair] {
	return func(yield func(store.Pair) bool) {
		for _, line := range lines {
			p, ok := parse(line)
			if !ok {
				continue
			}
			if !yield(p) {
				return
			}
		}
	}
}

// notify reports progress to the sink. The sink is observational only; a
// panic inside it must not abort the load.
func notify(progress store.ProgressFunc, inserted int64) {
	if progress == nil {
		return
	}
	defer func() { _ = recover() }()
	progress(inserted)
}
