package store

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	DefaultDBFile = "xrefs.db"
)

// CheckExists verifies if a database file exists in the given directory.
// Returns true if the store exists, false otherwise.
func CheckExists(storePath string) (bool, error) {
	dbPath := filepath.Join(storePath, DefaultDBFile)
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check store existence: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("store path is a directory, expected file: %s", dbPath)
	}
	return true, nil
}

// GetDBPath returns the full path to the database file inside storePath.
func GetDBPath(storePath string) string {
	return filepath.Join(storePath, DefaultDBFile)
}
