package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Aman-CERP/contentsync/internal/repository"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

var statusNames = [...]string{"PASS", "WARN", "FAIL"}

func (s CheckStatus) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "UNKNOWN"
	}
	return statusNames[s]
}

// MarshalText encodes the status by name in JSON reports.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical reports a failed required check. Optional failures only warn.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target describes the project being checked. Empty fields skip the checks
// that need them; the memory backend has no DataDir.
type Target struct {
	DataDir        string
	RepositoryPath string
	Database       string
}

// Checker runs preflight checks and reports them.
type Checker struct {
	verbose bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose prints check details under each result.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// New creates a Checker writing to stdout.
func New(opts ...Option) *Checker {
	c := &Checker{output: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs every check that applies to t, in a fixed order. Checks not
// yet started when ctx is cancelled are skipped.
func (c *Checker) RunAll(ctx context.Context, t Target) []CheckResult {
	var checks []func() CheckResult
	if t.DataDir != "" {
		checks = append(checks,
			func() CheckResult { return c.CheckDiskSpace(t.DataDir) },
			func() CheckResult { return c.CheckWritePermissions(t.DataDir) },
			func() CheckResult { return c.CheckLock(t.DataDir) },
		)
	}
	checks = append(checks, c.CheckFileDescriptors)
	if t.RepositoryPath != "" {
		checks = append(checks, func() CheckResult { return c.CheckRepository(t.RepositoryPath, t.Database) })
	}

	results := make([]CheckResult, 0, len(checks))
	for _, check := range checks {
		if ctx.Err() != nil {
			break
		}
		results = append(results, check())
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	return len(summarize(results).errors) > 0
}

// SummaryStatus is "failed", "ready_with_warnings" or "ready".
func (c *Checker) SummaryStatus(results []CheckResult) string {
	return summarize(results).status()
}

type summary struct {
	errors   []string
	warnings []string
}

func summarize(results []CheckResult) summary {
	var s summary
	for _, r := range results {
		switch {
		case r.IsCritical():
			s.errors = append(s.errors, r.Name+": "+r.Message)
		case r.Status != StatusPass:
			s.warnings = append(s.warnings, r.Name+": "+r.Message)
		}
	}
	return s
}

func (s summary) status() string {
	switch {
	case len(s.errors) > 0:
		return "failed"
	case len(s.warnings) > 0:
		return "ready_with_warnings"
	default:
		return "ready"
	}
}

// PrintResults prints one line per check followed by the summary.
func (c *Checker) PrintResults(results []CheckResult) {
	w := c.output
	_, _ = fmt.Fprintln(w, "contentsync preflight")
	_, _ = fmt.Fprintln(w)

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "      %s\n", r.Details)
		}
	}

	s := summarize(results)
	_, _ = fmt.Fprintf(w, "\nStatus: %s\n", strings.ToUpper(s.status()))
	printList(w, "error(s)", s.errors)
	printList(w, "warning(s)", s.warnings)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%d %s:\n", len(items), label)
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "  - %s\n", item)
	}
}

// CheckWritePermissions checks that dir exists or can be created, and
// accepts new files.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s: %v", dir, err)
		return result
	}

	testFile := filepath.Join(dir, ".contentsync-preflight")
	f, err := os.Create(testFile)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(testFile)

	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// CheckRepository loads the repository file and compares its database with
// the one the index is built from.
func (c *Checker) CheckRepository(path, database string) CheckResult {
	result := CheckResult{
		Name:     "repository",
		Required: true,
	}

	repo, err := repository.Load(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	}

	if database != "" && repo.Database() != database {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("database %q, index expects %q", repo.Database(), database)
		result.Details = "set index.database to the repository's database"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%d nodes in %s", len(repo.NodeIDs()), repo.Database())
	result.Details = path
	return result
}
