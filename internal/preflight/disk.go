package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/Aman-CERP/contentsync/internal/ui"
)

// MinDiskSpaceBytes is the free space the data directory needs.
const MinDiskSpaceBytes = 100 * 1024 * 1024

// CheckDiskSpace checks the free space on the filesystem holding path. A
// path that does not exist yet is measured at its nearest existing parent.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{Name: "disk_space", Required: true}

	var stat syscall.Statfs_t
	if err := syscall.Statfs(existingParent(path), &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	free := int64(stat.Bavail) * int64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", ui.FormatBytes(free), ui.FormatBytes(MinDiskSpaceBytes))
	result.Details = path
	result.Status = StatusPass
	if free < MinDiskSpaceBytes {
		result.Status = StatusFail
	}
	return result
}

func existingParent(path string) string {
	for {
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(path)
		if parent == path {
			return path
		}
		path = parent
	}
}
