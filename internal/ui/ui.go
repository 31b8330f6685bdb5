// Package ui renders synchronization progress and index status for the
// terminal.
package ui

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
)

// PassEvent reports one finished synchronization pass.
type PassEvent struct {
	PassID   string
	Kind     string
	Identity string
	Duration time.Duration
	Err      error
}

// Summary describes a finished batch of passes.
type Summary struct {
	Passes   int
	Failed   int
	Duration time.Duration
	// Documents is the index document count after the batch, or -1 if
	// unknown.
	Documents int
}

// Renderer displays pass progress.
type Renderer interface {
	// PassDone reports one finished pass.
	PassDone(event PassEvent)

	// Complete prints the batch summary.
	Complete(summary Summary)
}

// Config configures the UI renderer.
type Config struct {
	Output     io.Writer
	ForcePlain bool
	NoColor    bool
	// Verbose also prints successful passes; failures are always printed.
	Verbose bool
}

// ConfigOption is a function that modifies Config.
type ConfigOption func(*Config)

// WithForcePlain forces plain text output.
func WithForcePlain(force bool) ConfigOption {
	return func(c *Config) {
		c.ForcePlain = force
	}
}

// WithNoColor disables color output.
func WithNoColor(noColor bool) ConfigOption {
	return func(c *Config) {
		c.NoColor = noColor
	}
}

// WithVerbose prints every pass, not only failed ones.
func WithVerbose(verbose bool) ConfigOption {
	return func(c *Config) {
		c.Verbose = verbose
	}
}

// NewConfig creates a new Config with the given output and options.
func NewConfig(output io.Writer, opts ...ConfigOption) Config {
	cfg := Config{Output: output}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// NewRenderer returns a styled renderer for interactive terminals and a
// plain one for CI, pipes, NO_COLOR or when plain output is forced.
func NewRenderer(cfg Config) Renderer {
	if cfg.ForcePlain || cfg.NoColor || DetectNoColor() || DetectCI() || !IsTTY(cfg.Output) {
		return NewPlainRenderer(cfg)
	}
	return NewStyledRenderer(cfg)
}

// IsTTY checks if output is a terminal.
func IsTTY(w io.Writer) bool {
	if w == nil {
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// DetectNoColor checks if NO_COLOR environment variable is set.
func DetectNoColor() bool {
	_, exists := os.LookupEnv("NO_COLOR")
	return exists
}

// DetectCI checks if running in a CI environment.
func DetectCI() bool {
	ciVars := []string{"CI", "GITHUB_ACTIONS", "GITLAB_CI", "JENKINS_URL", "TRAVIS"}
	for _, v := range ciVars {
		if _, exists := os.LookupEnv(v); exists {
			return true
		}
	}
	return false
}
