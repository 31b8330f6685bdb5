package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the lowest open file limit a watch process runs with.
const MinFileDescriptors = 1024

// CheckFileDescriptors checks the soft open file limit. The watcher and the
// store both keep descriptors open for the life of a watch process.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{Name: "file_descriptors", Required: true}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read open file limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", lim.Cur, MinFileDescriptors)
	result.Status = StatusPass
	if lim.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("raise the limit with 'ulimit -n %d'", MinFileDescriptors*10)
	}
	return result
}
