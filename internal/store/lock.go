package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// DataDirLock is a cross-process lock on a data directory. Only the holder
// may write to the indexes inside it; status readers do not take it.
type DataDirLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewDataDirLock creates a lock for dir. The lock file is <dir>/.sync.lock.
func NewDataDirLock(dir string) *DataDirLock {
	lockPath := filepath.Join(dir, ".sync.lock")
	return &DataDirLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// TryLock acquires the lock without blocking. A lock held by another
// process is reported as ErrCodeStoreLocked.
func (l *DataDirLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !acquired {
		return serrors.New(serrors.ErrCodeStoreLocked,
			fmt.Sprintf("data directory %s is in use by another contentsync process", filepath.Dir(l.path)), nil).
			WithSuggestion("stop the running watch process or use a different data directory")
	}

	l.locked = true
	return nil
}

// Unlock releases the lock. It's safe to call Unlock multiple times.
func (l *DataDirLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Path returns the path to the lock file.
func (l *DataDirLock) Path() string {
	return l.path
}
