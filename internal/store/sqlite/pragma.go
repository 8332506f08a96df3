package sqlite

import (
	"database/sql"
	"fmt"
)

// Pragma profile names.
const (
	// ProfileDefault balances interleaved reads and writes: WAL journal,
	// shared locking, moderate cache.
	ProfileDefault = "default"

	// ProfileInsertMany trades concurrency and durability for write
	// throughput during bulk loads: exclusive locking, journaling off,
	// large cache and mmap. Other readers and writers are blocked until
	// the default profile is restored.
	ProfileInsertMany = "insert_many"
)

// profiles holds the named pragma sets. Changes are connection-scoped and
// persist until the next applyProfile call.
var profiles = map[string][]string{
	ProfileDefault: {
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA locking_mode = NORMAL",
		"PRAGMA temp_store = DEFAULT",
		"PRAGMA cache_size = -2000",
		"PRAGMA mmap_size = 0",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	},
	ProfileInsertMany: {
		"PRAGMA journal_mode = OFF",
		"PRAGMA synchronous = OFF",
		"PRAGMA locking_mode = EXCLUSIVE",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -65536",
		"PRAGMA mmap_size = 268435456",
		"PRAGMA page_size = 1024",
	},
}

// applyProfile executes the named pragma set on db.
func applyProfile(db *sql.DB, name string) error {
	pragmas, ok := profiles[name]
	if !ok {
		return fmt.Errorf("unknown pragma profile %q", name)
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}
	return nil
}

// applyProfile switches the store's connection to the named profile.
// Bulk operations switch to ProfileInsertMany and must restore the
// default profile on every exit path, via restoreDefault.
func (s *Store) applyProfile(name string) error {
	return applyProfile(s.db, name)
}

// restoreDefault returns the connection from the insert_many profile to
// the default profile and releases the exclusive lock. SQLite refuses to
// leave EXCLUSIVE locking while the database is in WAL, so the journal
// must move to a rollback mode first, then locking drops to NORMAL, and
// the lock is only actually relinquished by the next database access.
// Only after that can the default profile (WAL included) take effect.
func restoreDefault(db *sql.DB) error {
	unlock := []string{
		"PRAGMA journal_mode = DELETE",
		"PRAGMA locking_mode = NORMAL",
	}
	for _, pragma := range unlock {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// Touch the database under NORMAL locking to release the lock.
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master`).Scan(&n); err != nil {
		return fmt.Errorf("failed to release exclusive lock: %w", err)
	}

	return applyProfile(db, ProfileDefault)
}

func (s *Store) restoreDefault() error {
	return restoreDefault(s.db)
}
