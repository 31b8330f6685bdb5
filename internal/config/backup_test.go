package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupFile_MissingFileIsNoop(t *testing.T) {
	path, err := BackupFile(filepath.Join(t.TempDir(), ProjectFile))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupFile_CopiesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFile)
	writeFile(t, path, "index:\n  name: a\n")

	backup, err := BackupFile(path)
	require.NoError(t, err)

	data, err := os.ReadFile(backup)
	require.NoError(t, err)
	assert.Equal(t, "index:\n  name: a\n", string(data))
}

func TestBackupFile_KeepsNewestMaxBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFile)
	writeFile(t, path, "v")

	var created []string
	for i := 0; i < MaxBackups+2; i++ {
		b, err := BackupFile(path)
		require.NoError(t, err)
		created = append(created, b)
	}

	backups, err := ListBackups(path)
	require.NoError(t, err)
	require.Len(t, backups, MaxBackups)
	assert.Equal(t, created[len(created)-1], backups[0], "newest first")
	assert.NoFileExists(t, created[0])
}

func TestRestoreFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ProjectFile)
	writeFile(t, path, "old")
	backup, err := BackupFile(path)
	require.NoError(t, err)

	writeFile(t, path, "new")
	require.NoError(t, RestoreFile(path, backup))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	backups, err := ListBackups(path)
	require.NoError(t, err)
	assert.Len(t, backups, 2, "the replaced file is backed up too")
}
