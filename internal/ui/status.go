package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"
)

// StatusInfo describes an index and the settings it is synchronized with.
type StatusInfo struct {
	IndexName string `json:"index_name"`
	Database  string `json:"database"`
	Root      string `json:"root"`

	Backend    string         `json:"backend"`
	StorePath  string         `json:"store_path,omitempty"`
	Documents  int            `json:"documents"`
	Groups     int            `json:"groups"`
	Latest     int            `json:"latest"`
	Fallback   int            `json:"fallback"`
	ByLanguage map[string]int `json:"by_language"`
	SizeOnDisk int64          `json:"size_on_disk"`
	ModifiedAt time.Time      `json:"modified_at,omitempty"`

	ItemFallback        bool   `json:"item_fallback"`
	FieldFallback       bool   `json:"field_fallback"`
	ProcessDependencies bool   `json:"process_dependencies"`
	ReadConsistency     string `json:"read_consistency"`
	Paused              bool   `json:"paused"`

	RepositoryPath  string `json:"repository_path"`
	RepositoryNodes int    `json:"repository_nodes"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	var b strings.Builder
	line := func(label, value string) {
		b.WriteString("  ")
		b.WriteString(r.styles.Label.Render(label))
		b.WriteString(value)
		b.WriteByte('\n')
	}

	b.WriteString(r.styles.Header.Render("Index: "+info.IndexName) + "\n\n")

	line("Database:", info.Database)
	line("Root:", info.Root)
	line("Repository:", fmt.Sprintf("%s (%d nodes)", info.RepositoryPath, info.RepositoryNodes))
	b.WriteByte('\n')

	line("Backend:", info.Backend)
	if info.StorePath != "" {
		line("Location:", info.StorePath)
	}
	line("Documents:", fmt.Sprintf("%d (%d latest, %d fallback)", info.Documents, info.Latest, info.Fallback))
	line("Nodes:", fmt.Sprintf("%d", info.Groups))
	if len(info.ByLanguage) > 0 {
		line("Languages:", formatLanguages(info.ByLanguage))
	}
	if info.SizeOnDisk > 0 {
		line("Size:", FormatBytes(info.SizeOnDisk))
	}
	if !info.ModifiedAt.IsZero() {
		line("Last write:", formatTime(info.ModifiedAt))
	}
	b.WriteByte('\n')

	line("Item fallback:", r.onOff(info.ItemFallback))
	line("Field fallback:", r.onOff(info.FieldFallback))
	line("Dependencies:", r.onOff(info.ProcessDependencies))
	line("Consistency:", info.ReadConsistency)
	if info.Paused {
		line("Indexing:", r.styles.Warning.Render("paused"))
	} else {
		line("Indexing:", r.styles.Success.Render("active"))
	}

	_, err := io.WriteString(r.out, b.String())
	return err
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) onOff(v bool) string {
	if v {
		return r.styles.Success.Render("on")
	}
	return r.styles.Dim.Render("off")
}

// formatLanguages renders "de=3 en=5" in language order.
func formatLanguages(counts map[string]int) string {
	langs := make([]string, 0, len(counts))
	for l := range counts {
		langs = append(langs, l)
	}
	sort.Strings(langs)

	parts := make([]string, len(langs))
	for i, l := range langs {
		parts[i] = fmt.Sprintf("%s=%d", l, counts[l])
	}
	return strings.Join(parts, " ")
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return relative(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return relative(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return relative(int(diff.Hours()/24), "day")
	default:
		return t.Format("2006-01-02 15:04")
	}
}

func relative(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
