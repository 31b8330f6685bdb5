package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// StyledRenderer prints colored pass lines and a boxed summary.
type StyledRenderer struct {
	mu      sync.Mutex
	out     io.Writer
	styles  Styles
	verbose bool
}

// NewStyledRenderer creates a styled renderer.
func NewStyledRenderer(cfg Config) *StyledRenderer {
	return &StyledRenderer{
		out:     cfg.Output,
		styles:  GetStyles(cfg.NoColor),
		verbose: cfg.Verbose,
	}
}

// PassDone implements Renderer.
func (r *StyledRenderer) PassDone(event PassEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Err != nil {
		_, _ = fmt.Fprintf(r.out, "%s %s %s\n  %s\n",
			r.styles.Error.Render("✗"),
			r.styles.Kind.Render(event.Kind),
			event.Identity,
			r.styles.Error.Render(event.Err.Error()))
		return
	}
	if r.verbose {
		_, _ = fmt.Fprintf(r.out, "%s %s %s %s\n",
			r.styles.Success.Render("✓"),
			r.styles.Kind.Render(event.Kind),
			event.Identity,
			r.styles.Dim.Render(event.Duration.Round(time.Millisecond).String()))
	}
}

// Complete implements Renderer.
func (r *StyledRenderer) Complete(s Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	b.WriteString(r.styles.Header.Render("Synchronization complete"))
	b.WriteByte('\n')
	b.WriteString(r.row("Passes", fmt.Sprintf("%d", s.Passes)))
	if s.Failed > 0 {
		b.WriteString(r.row("Failed", r.styles.Error.Render(fmt.Sprintf("%d", s.Failed))))
	}
	b.WriteString(r.row("Duration", s.Duration.Round(time.Millisecond).String()))
	if s.Documents >= 0 {
		b.WriteString(r.row("Documents", fmt.Sprintf("%d", s.Documents)))
	}

	_, _ = fmt.Fprintln(r.out, r.styles.Panel.Render(strings.TrimSuffix(b.String(), "\n")))
}

func (r *StyledRenderer) row(label, value string) string {
	return r.styles.Label.Render(label) + r.styles.Value.Render(value) + "\n"
}
