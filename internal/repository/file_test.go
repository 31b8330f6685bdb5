package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentsync/internal/content"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read repository file")
	assert.Equal(t, serrors.ErrCodeRepositoryMissing, serrors.GetCode(err))
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"invalid yaml", "database: [", "failed to parse repository YAML"},
		{"no database", "languages: []", "database name is required"},
		{"unnamed language", "database: m\nlanguages:\n  - fallback: en", "language name is required"},
		{"missing node id", "database: m\nnodes:\n  - name: x", "node id is required"},
		{"duplicate node", "database: m\nnodes:\n  - id: a\n  - id: a", "duplicate node id"},
		{"duplicate version", "database: m\nnodes:\n  - id: a\n    versions:\n      en:\n        - number: 1\n        - number: 1", "already has version 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParse_AutoNumbersVersions(t *testing.T) {
	m, err := Parse([]byte(`
database: m
nodes:
  - id: a
    versions:
      en:
        - fields: [{name: t, value: one}]
        - fields: [{name: t, value: two}]
`))
	require.NoError(t, err)

	numbers, err := m.GetVersionNumbers(context.Background(), "m", "a", "en", content.ReadOptions{})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, numbers)
}

func TestMarshal_RoundTripsThroughLoad(t *testing.T) {
	m := loadSite(t)

	data, err := m.Marshal()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Empty(t, Diff(m, loaded))
}
