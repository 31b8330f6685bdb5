package preflight

import (
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
	"github.com/Aman-CERP/contentsync/internal/store"
)

// CheckLock reports whether another process holds the data directory lock.
// A running watcher is expected, so a held lock is only a warning.
func (c *Checker) CheckLock(dir string) CheckResult {
	result := CheckResult{
		Name:     "data_dir_lock",
		Required: false,
	}

	lock := store.NewDataDirLock(dir)
	if err := lock.TryLock(); err != nil {
		if serrors.GetCode(err) == serrors.ErrCodeStoreLocked {
			result.Status = StatusWarn
			result.Message = "held by another process"
			result.Details = "writes will fail until the running watch process stops"
			return result
		}
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}
	_ = lock.Unlock()

	result.Status = StatusPass
	result.Message = "free"
	return result
}
