package logging

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultLogDir returns the default log directory (~/.contentsync/logs/).
// Falls back to the temp directory if the home directory is unavailable.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".contentsync", "logs")
	}
	return filepath.Join(home, ".contentsync", "logs")
}

// DefaultLogPath returns the default synchronizer log path.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "sync.log")
}

// FindLogFile finds the log file to view: the explicit path if given,
// otherwise the default path.
func FindLogFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit, nil
		}
		return "", fmt.Errorf("log file not found: %s", explicit)
	}

	path := DefaultLogPath()
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", fmt.Errorf("no log file found. Run a contentsync command first.\nExpected at: %s", path)
}
