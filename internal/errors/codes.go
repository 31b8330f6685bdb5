// Package errors provides structured error handling for contentsync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Content repository errors
//   - 3XX: Index store errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryRepository indicates content repository read failures.
	CategoryRepository Category = "REPOSITORY"
	// CategoryIndex indicates index store failures.
	CategoryIndex Category = "INDEX"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeConfigPermission = "ERR_103_CONFIG_PERMISSION"

	// Repository errors (200-299)
	ErrCodeRepositoryRead    = "ERR_201_REPOSITORY_READ"
	ErrCodeRepositoryParse   = "ERR_202_REPOSITORY_PARSE"
	ErrCodeRepositoryMissing = "ERR_203_REPOSITORY_MISSING"

	// Index store errors (300-399)
	ErrCodeStoreOpen    = "ERR_301_STORE_OPEN"
	ErrCodeStoreWrite   = "ERR_302_STORE_WRITE"
	ErrCodeStoreBusy    = "ERR_303_STORE_BUSY"
	ErrCodeCorruptIndex = "ERR_304_CORRUPT_INDEX"
	ErrCodeStoreLocked  = "ERR_305_STORE_LOCKED"

	// Validation errors (400-499)
	ErrCodeInvalidInput    = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidIdentity = "ERR_402_INVALID_IDENTITY"
	ErrCodeInvalidPattern  = "ERR_403_INVALID_PATTERN"

	// Internal errors (500-599)
	ErrCodeInternal   = "ERR_501_INTERNAL"
	ErrCodeSyncFailed = "ERR_502_SYNC_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryRepository
	case '3':
		return CategoryIndex
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeStoreLocked:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}
	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeStoreBusy, ErrCodeRepositoryRead:
		return true
	default:
		return false
	}
}
