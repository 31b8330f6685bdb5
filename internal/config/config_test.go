package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// isolate points the user config at an empty temp dir.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "default_index", cfg.Index.Name)
	assert.Equal(t, "master", cfg.Index.Database)
	assert.Equal(t, "bypass_write_cache", cfg.Index.ReadConsistency)
	assert.False(t, cfg.Index.EnableItemLanguageFallback)
	assert.Equal(t, "sqlite", cfg.Store.Backend)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "300ms", cfg.Watch.Debounce)
	require.NoError(t, cfg.Validate())
}

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "default_index", cfg.Index.Name)
	assert.Equal(t, filepath.Join(dir, ".contentsync"), cfg.Store.DataDir)
	assert.Equal(t, filepath.Join(dir, "content.yaml"), cfg.Repository.Path)
}

func TestLoad_ProjectOverridesUser(t *testing.T) {
	isolate(t)
	writeFile(t, GetUserConfigPath(), `
index:
  name: user_index
  process_dependencies: true
pipeline:
  workers: 8
`)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectFile), `
index:
  name: web_index
  root: /content/site
  process_dependencies: false
store:
  backend: bleve
`)

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "web_index", cfg.Index.Name)
	assert.Equal(t, "/content/site", cfg.Index.Root)
	assert.False(t, cfg.Index.ProcessDependencies, "explicit false in the project file wins")
	assert.Equal(t, 8, cfg.Pipeline.Workers, "user value survives when the project file is silent")
	assert.Equal(t, "bleve", cfg.Store.Backend)
}

func TestLoad_YmlFallback(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".contentsync.yml"), "index:\n  name: yml_index\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "yml_index", cfg.Index.Name)
}

func TestLoad_EnvOverrides(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectFile), "index:\n  name: file_index\n")

	t.Setenv("CONTENTSYNC_INDEX_NAME", "env_index")
	t.Setenv("CONTENTSYNC_ITEM_FALLBACK", "true")
	t.Setenv("CONTENTSYNC_FIELD_FALLBACK", "1")
	t.Setenv("CONTENTSYNC_PROCESS_DEPENDENCIES", "true")
	t.Setenv("CONTENTSYNC_STORE_BACKEND", "MEMORY")
	t.Setenv("CONTENTSYNC_LOG_LEVEL", "debug")
	t.Setenv("CONTENTSYNC_WORKERS", "2")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "env_index", cfg.Index.Name)
	assert.True(t, cfg.Index.EnableItemLanguageFallback)
	assert.True(t, cfg.Index.EnableFieldLanguageFallback)
	assert.True(t, cfg.Index.ProcessDependencies)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2, cfg.Pipeline.Workers)
}

func TestLoad_BadEnvValue(t *testing.T) {
	isolate(t)
	t.Setenv("CONTENTSYNC_WORKERS", "many")

	_, err := Load(t.TempDir())
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeConfigInvalid, serrors.GetCode(err))
}

func TestLoad_MalformedYAML(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ProjectFile), "index: [unterminated\n")

	_, err := Load(dir)
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeConfigInvalid, serrors.GetCode(err))
}

func TestLoad_AbsolutePathsAreKept(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	data := filepath.Join(t.TempDir(), "data")
	writeFile(t, filepath.Join(dir, ProjectFile), "store:\n  data_dir: "+data+"\n")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, data, cfg.Store.DataDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty name", func(c *Config) { c.Index.Name = "" }, "index.name"},
		{"relative root", func(c *Config) { c.Index.Root = "content" }, "index.root"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "postgres" }, "store.backend"},
		{"unknown consistency", func(c *Config) { c.Index.ReadConsistency = "eventual" }, "index.read_consistency"},
		{"zero workers", func(c *Config) { c.Pipeline.Workers = 0 }, "pipeline.workers"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"bad debounce", func(c *Config) { c.Watch.Debounce = "soon" }, "watch.debounce"},
		{"negative poll", func(c *Config) { c.Watch.PollInterval = "-1s" }, "watch.poll_interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, serrors.ErrCodeConfigInvalid, serrors.GetCode(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDebounceWindow(t *testing.T) {
	cfg := NewConfig()
	d, err := cfg.DebounceWindow()
	require.NoError(t, err)
	assert.Equal(t, 300*time.Millisecond, d)

	cfg.Watch.Debounce = ""
	d, err = cfg.DebounceWindow()
	require.NoError(t, err)
	assert.Zero(t, d)
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	cfg := NewConfig()
	cfg.Index.Name = "roundtrip"
	cfg.Index.EnableItemLanguageFallback = true
	cfg.Policy.ExcludePaths = []string{"/content/system"}
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectFile)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "roundtrip", loaded.Index.Name)
	assert.True(t, loaded.Index.EnableItemLanguageFallback)
	assert.Equal(t, []string{"/content/system"}, loaded.Policy.ExcludePaths)
}

func TestGetUserConfigPath(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	assert.Equal(t, filepath.Join("/tmp/xdg", "contentsync", "config.yaml"), GetUserConfigPath())

	t.Setenv("XDG_CONFIG_HOME", "")
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".config", "contentsync", "config.yaml"), GetUserConfigPath())
}
