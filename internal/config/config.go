// Package config loads contentsync configuration from defaults, the user
// config file, the project config file and CONTENTSYNC_* environment
// variables, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	serrors "github.com/Aman-CERP/contentsync/internal/errors"
)

// ProjectFile is the project configuration file name.
const ProjectFile = ".contentsync.yaml"

// Config represents the complete contentsync configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Index      IndexConfig      `yaml:"index" json:"index"`
	Store      StoreConfig      `yaml:"store" json:"store"`
	Repository RepositoryConfig `yaml:"repository" json:"repository"`
	Policy     PolicyConfig     `yaml:"policy" json:"policy"`
	Pipeline   PipelineConfig   `yaml:"pipeline" json:"pipeline"`
	Watch      WatchConfig      `yaml:"watch" json:"watch"`
	Logging    LoggingConfig    `yaml:"logging" json:"logging"`
}

// IndexConfig is the index-level configuration of the synchronizer.
type IndexConfig struct {
	Name     string `yaml:"name" json:"name" validate:"required,max=128"`
	Database string `yaml:"database" json:"database" validate:"required"`

	// Root is the content path of the index root, e.g. /content/home.
	Root string `yaml:"root" json:"root" validate:"required,startswith=/"`
	// RootID optionally names the root node, which speeds up move checks.
	RootID string `yaml:"root_id,omitempty" json:"root_id,omitempty"`

	EnableItemLanguageFallback  bool `yaml:"enable_item_language_fallback" json:"enable_item_language_fallback"`
	EnableFieldLanguageFallback bool `yaml:"enable_field_language_fallback" json:"enable_field_language_fallback"`
	ProcessDependencies         bool `yaml:"process_dependencies" json:"process_dependencies"`

	Formatter string `yaml:"formatter" json:"formatter"`

	// ReadConsistency is one of cached, bypass_write_cache, bypass_all_caches.
	ReadConsistency string `yaml:"read_consistency" json:"read_consistency" validate:"omitempty,oneof=cached bypass_write_cache bypass_all_caches"`
}

// StoreConfig selects the index store.
type StoreConfig struct {
	// Backend is sqlite (default), bleve or memory.
	Backend string `yaml:"backend" json:"backend" validate:"oneof=sqlite bleve memory"`
	DataDir string `yaml:"data_dir" json:"data_dir" validate:"required"`
}

// RepositoryConfig locates the content repository file.
type RepositoryConfig struct {
	Path      string `yaml:"path" json:"path" validate:"required"`
	CacheSize int    `yaml:"cache_size" json:"cache_size" validate:"gte=0"`
}

// PolicyConfig configures exclusion and the pause switch.
type PolicyConfig struct {
	ExcludePaths     []string `yaml:"exclude_paths" json:"exclude_paths"`
	ExcludeTemplates []string `yaml:"exclude_templates" json:"exclude_templates"`
	Languages        []string `yaml:"languages" json:"languages"`
	Paused           bool     `yaml:"paused" json:"paused"`
}

// PipelineConfig configures concurrent event delivery.
type PipelineConfig struct {
	Workers int `yaml:"workers" json:"workers" validate:"gte=1,lte=64"`
}

// WatchConfig configures the watch command.
type WatchConfig struct {
	Debounce     string `yaml:"debounce" json:"debounce"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
	MetricsAddr  string `yaml:"metrics_addr,omitempty" json:"metrics_addr,omitempty"`
}

// LoggingConfig configures file logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level" validate:"oneof=debug info warn error"`
	File      string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb" validate:"gte=1"`
	MaxFiles  int    `yaml:"max_files" json:"max_files" validate:"gte=1"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Index: IndexConfig{
			Name:            "default_index",
			Database:        "master",
			Root:            "/content",
			Formatter:       "default",
			ReadConsistency: "bypass_write_cache",
		},
		Store: StoreConfig{
			Backend: "sqlite",
			DataDir: ".contentsync",
		},
		Repository: RepositoryConfig{
			Path:      "content.yaml",
			CacheSize: 4096,
		},
		Pipeline: PipelineConfig{
			Workers: 4,
		},
		Watch: WatchConfig{
			Debounce:     "300ms",
			PollInterval: "2s",
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/contentsync/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/contentsync/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "contentsync", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "contentsync", "config.yaml")
	}
	return filepath.Join(home, ".config", "contentsync", "config.yaml")
}

// Load loads configuration for the project in dir. It applies, in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/contentsync/config.yaml)
//  3. Project config (.contentsync.yaml in dir)
//  4. Environment variables (CONTENTSYNC_*)
//
// Relative paths are resolved against dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userPath := GetUserConfigPath(); fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.resolvePaths(dir)
	return cfg, nil
}

// loadFromFile loads .contentsync.yaml, or .contentsync.yml as a fallback.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ProjectFile)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}
	ymlPath := filepath.Join(dir, ".contentsync.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}
	return nil
}

// loadYAML decodes a YAML file over c. Keys absent from the file keep
// their current value, so an explicit false overrides a default true.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return serrors.New(serrors.ErrCodeConfigNotFound, "failed to read config file "+path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return serrors.New(serrors.ErrCodeConfigInvalid, "failed to parse config file "+path, err).
			WithSuggestion("Check the YAML syntax, or run 'contentsync config init --force' to regenerate it")
	}
	return nil
}

// applyEnvOverrides applies CONTENTSYNC_* environment variable overrides.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("CONTENTSYNC_INDEX_NAME"); v != "" {
		c.Index.Name = v
	}

	bools := []struct {
		env    string
		target *bool
	}{
		{"CONTENTSYNC_ITEM_FALLBACK", &c.Index.EnableItemLanguageFallback},
		{"CONTENTSYNC_FIELD_FALLBACK", &c.Index.EnableFieldLanguageFallback},
		{"CONTENTSYNC_PROCESS_DEPENDENCIES", &c.Index.ProcessDependencies},
	}
	for _, b := range bools {
		v := os.Getenv(b.env)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return serrors.New(serrors.ErrCodeConfigInvalid, fmt.Sprintf("%s must be a boolean, got %q", b.env, v), err)
		}
		*b.target = parsed
	}

	if v := os.Getenv("CONTENTSYNC_STORE_BACKEND"); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("CONTENTSYNC_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CONTENTSYNC_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return serrors.New(serrors.ErrCodeConfigInvalid, fmt.Sprintf("CONTENTSYNC_WORKERS must be a number, got %q", v), err)
		}
		c.Pipeline.Workers = n
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return serrors.New(serrors.ErrCodeConfigInvalid, "invalid configuration: "+describe(err), err)
	}
	if _, err := c.DebounceWindow(); err != nil {
		return serrors.New(serrors.ErrCodeConfigInvalid, "invalid configuration: watch.debounce", err)
	}
	if _, err := c.PollInterval(); err != nil {
		return serrors.New(serrors.ErrCodeConfigInvalid, "invalid configuration: watch.poll_interval", err)
	}
	return nil
}

// describe turns validator errors into "section.field (rule)" lists.
func describe(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if _, rest, found := strings.Cut(ns, "."); found {
			ns = rest
		}
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", ns, rule))
	}
	return strings.Join(parts, ", ")
}

// DebounceWindow parses watch.debounce.
func (c *Config) DebounceWindow() (time.Duration, error) {
	return parseDuration(c.Watch.Debounce)
}

// PollInterval parses watch.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	return parseDuration(c.Watch.PollInterval)
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative, got %s", s)
	}
	return d, nil
}

// resolvePaths makes relative file locations absolute against dir.
func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Store.DataDir = abs(c.Store.DataDir)
	c.Repository.Path = abs(c.Repository.Path)
	c.Logging.File = abs(c.Logging.File)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
