package store

import (
	"bytes"
	"iter"
	"sort"
)

// Pair is one association between two identifiers. The relation is
// undirected for query purposes; columnar orientation only matters for
// storage.
type Pair struct {
	A string
	B string
}

// MapSeq expands a key-to-values mapping into a pair sequence, one pair
// per (key, value) combination.
func MapSeq(m map[string][]string) iter.Seq[Pair] {
	return func(yield func(Pair) bool) {
		for a, bs := range m {
			for _, b := range bs {
				if !yield(Pair{A: a, B: b}) {
					return
				}
			}
		}
	}
}

// DefaultParse splits a line on whitespace and takes the first two fields.
// Lines with fewer than two fields are skipped.
func DefaultParse(line []byte) (Pair, bool) {
	fields := bytes.Fields(line)
	if len(fields) < 2 {
		return Pair{}, false
	}
	return Pair{A: string(fields[0]), B: string(fields[1])}, true
}

// Set is an unordered collection of identifier values.
type Set map[string]struct{}

// NewSet builds a set from the given values.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v into the set.
func (s Set) Add(v string) {
	s[v] = struct{}{}
}

// Has reports whether v is in the set.
func (s Set) Has(v string) bool {
	_, ok := s[v]
	return ok
}

// Values returns the members in sorted order.
func (s Set) Values() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Union returns a new set containing the members of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for v := range s {
		out.Add(v)
	}
	for v := range other {
		out.Add(v)
	}
	return out
}

// SymmetricDifference returns a new set containing the members present
// in exactly one of the two sets.
func (s Set) SymmetricDifference(other Set) Set {
	out := make(Set)
	for v := range s {
		if !other.Has(v) {
			out.Add(v)
		}
	}
	for v := range other {
		if !s.Has(v) {
			out.Add(v)
		}
	}
	return out
}
