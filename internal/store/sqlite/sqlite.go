// Package sqlite implements the association store on a single SQLite file
// using modernc.org/sqlite.
//
// The store holds exactly one connection between Open and Close; pragma
// profiles are connection-scoped, so the pool is pinned to one connection
// to keep them effective.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/maloquacious/xrefstore/internal/store"
	_ "modernc.org/sqlite"
)

const (
	// DefaultTable is the association table name when none is configured.
	DefaultTable = "xrefs"

	// DefaultUnionLimit bounds the row count above which set-algebra
	// operations refuse to materialize the store.
	DefaultUnionLimit = 10_000_000

	// DefaultPageSize is the number of rows fetched per round-trip during
	// full-store iteration.
	DefaultPageSize = 10_000

	// DefaultBatchBytes is the number of input bytes consumed per round
	// during streaming bulk loads.
	DefaultBatchBytes = 2_000_000
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store implements store.Store on a SQLite database file.
type Store struct {
	dbPath     string
	table      string
	unionLimit int64
	pageSize   int
	batchBytes int

	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Option configures a Store at construction time.
type Option func(*Store)

// WithTable sets the association table name.
func WithTable(name string) Option {
	return func(s *Store) { s.table = name }
}

// WithUnionLimit sets the row-count limit for set-algebra materialization.
func WithUnionLimit(n int64) Option {
	return func(s *Store) { s.unionLimit = n }
}

// WithPageSize sets the rows-per-page count for full-store iteration.
func WithPageSize(n int) Option {
	return func(s *Store) { s.pageSize = n }
}

// WithBatchBytes sets the bytes-per-round budget for streaming bulk loads.
func WithBatchBytes(n int) Option {
	return func(s *Store) { s.batchBytes = n }
}

// New creates a Store for the database file at dbPath. The connection is
// not established until Open.
func New(dbPath string, opts ...Option) (*Store, error) {
	s := &Store{
		dbPath:     dbPath,
		table:      DefaultTable,
		unionLimit: DefaultUnionLimit,
		pageSize:   DefaultPageSize,
		batchBytes: DefaultBatchBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if !identPattern.MatchString(s.table) {
		return nil, fmt.Errorf("invalid table name %q", s.table)
	}
	if s.unionLimit <= 0 || s.pageSize <= 0 || s.batchBytes <= 0 {
		return nil, fmt.Errorf("limits must be positive")
	}
	return s, nil
}

// Open establishes the connection, applies the default pragma profile and
// ensures the schema exists. Calling Open on an already-open store is a
// no-op; reopening after Close is valid.
func (s *Store) Open() error {
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// One connection only: pragmas are per-connection and SQLite allows a
	// single writer, so a pool would both lose the profile and invite
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := applyProfile(db, ProfileDefault); err != nil {
		db.Close()
		return err
	}

	s.db = db
	if err := s.ensureTable(context.Background()); err != nil {
		db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the backing database file path.
func (s *Store) Path() string {
	return s.dbPath
}

// Table returns the association table name.
func (s *Store) Table() string {
	return s.table
}

// Len returns the number of distinct pairs in the store.
func (s *Store) Len(ctx context.Context) (int64, error) {
	if s.db == nil {
		return 0, store.ErrNotOpen
	}
	var n int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}
