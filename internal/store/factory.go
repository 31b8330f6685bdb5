package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Backend names a store implementation.
type Backend string

const (
	// BackendSQLite stores documents in SQLite with WAL mode (default).
	// Other processes can read the index while a sync pass writes.
	BackendSQLite Backend = "sqlite"

	// BackendBleve stores documents in a Bleve index with full-text
	// indexed field values. Single process only.
	BackendBleve Backend = "bleve"

	// BackendMemory keeps documents in an in-memory SQLite database.
	BackendMemory Backend = "memory"
)

// ParseBackend validates a configured backend name. Empty selects SQLite.
func ParseBackend(s string) (Backend, error) {
	switch Backend(s) {
	case "":
		return BackendSQLite, nil
	case BackendSQLite, BackendBleve, BackendMemory:
		return Backend(s), nil
	default:
		return "", fmt.Errorf("unknown store backend: %s (valid options: sqlite, bleve, memory)", s)
	}
}

// Open creates the store for backend inside dataDir. The file name is
// derived from indexName and the backend (.db for SQLite, .bleve for Bleve).
func Open(backend Backend, dataDir, indexName string) (Store, error) {
	switch backend {
	case BackendSQLite, "":
		return NewSQLiteStore(Path(BackendSQLite, dataDir, indexName))
	case BackendBleve:
		return NewBleveStore(Path(BackendBleve, dataDir, indexName))
	case BackendMemory:
		return NewSQLiteStore("")
	default:
		return nil, fmt.Errorf("unknown store backend: %s (valid options: sqlite, bleve, memory)", backend)
	}
}

// Path returns the file or directory a backend keeps its index in.
// The memory backend has no path.
func Path(backend Backend, dataDir, indexName string) string {
	base := filepath.Join(dataDir, indexName)
	switch backend {
	case BackendBleve:
		return base + ".bleve"
	case BackendMemory:
		return ""
	default:
		return base + ".db"
	}
}

// Detect reports which backend an existing index in dataDir uses.
// Returns an empty Backend if no index exists.
func Detect(dataDir, indexName string) Backend {
	if fileExists(Path(BackendSQLite, dataDir, indexName)) {
		return BackendSQLite
	}
	if dirExists(Path(BackendBleve, dataDir, indexName)) {
		return BackendBleve
	}
	return ""
}

// fileExists checks if a file exists at the given path.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// dirExists checks if a directory exists at the given path.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
