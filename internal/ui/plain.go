package ui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// PlainRenderer outputs one line per pass (for CI and pipes).
type PlainRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	verbose bool
}

// NewPlainRenderer creates a plain text renderer.
func NewPlainRenderer(cfg Config) *PlainRenderer {
	return &PlainRenderer{out: cfg.Output, verbose: cfg.Verbose}
}

// PassDone implements Renderer.
func (r *PlainRenderer) PassDone(event PassEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Err != nil {
		_, _ = fmt.Fprintf(r.out, "[FAIL] %s %s: %v\n", event.Kind, event.Identity, event.Err)
		return
	}
	if r.verbose {
		_, _ = fmt.Fprintf(r.out, "[OK] %s %s (%s)\n", event.Kind, event.Identity, event.Duration.Round(time.Millisecond))
	}
}

// Complete implements Renderer.
func (r *PlainRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, _ = fmt.Fprintf(r.out, "Synchronized %d %s in %s", s.Passes-s.Failed, plural(s.Passes-s.Failed, "pass", "passes"), s.Duration.Round(time.Millisecond))
	if s.Failed > 0 {
		_, _ = fmt.Fprintf(r.out, " (%d failed)", s.Failed)
	}
	if s.Documents >= 0 {
		_, _ = fmt.Fprintf(r.out, ", %d documents indexed", s.Documents)
	}
	_, _ = fmt.Fprintln(r.out)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
