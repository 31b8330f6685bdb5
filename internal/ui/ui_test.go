package ui

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_PlainForNonTTY(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(NewConfig(&buf))
	_, ok := r.(*PlainRenderer)
	assert.True(t, ok, "a buffer is not a terminal")
}

func TestIsTTY_Nil(t *testing.T) {
	assert.False(t, IsTTY(nil))
	assert.False(t, IsTTY(&bytes.Buffer{}))
}

func TestDetectNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	assert.True(t, DetectNoColor())
}

func TestDetectCI(t *testing.T) {
	t.Setenv("CI", "true")
	assert.True(t, DetectCI())
}

func TestPlainRenderer_OnlyFailuresByDefault(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.PassDone(PassEvent{Kind: "update", Identity: "master:home/en/1", Duration: time.Millisecond})
	r.PassDone(PassEvent{Kind: "delete", Identity: "master:about/en/2", Err: errors.New("store busy")})

	assert.Equal(t, "[FAIL] delete master:about/en/2: store busy\n", buf.String())
}

func TestPlainRenderer_Verbose(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf, WithVerbose(true)))

	r.PassDone(PassEvent{Kind: "update", Identity: "master:home/en/1", Duration: 12 * time.Millisecond})

	assert.Equal(t, "[OK] update master:home/en/1 (12ms)\n", buf.String())
}

func TestPlainRenderer_Complete(t *testing.T) {
	var buf bytes.Buffer
	r := NewPlainRenderer(NewConfig(&buf))

	r.Complete(Summary{Passes: 3, Failed: 1, Duration: 1500 * time.Millisecond, Documents: 42})
	assert.Equal(t, "Synchronized 2 passes in 1.5s (1 failed), 42 documents indexed\n", buf.String())

	buf.Reset()
	r.Complete(Summary{Passes: 1, Duration: time.Second, Documents: -1})
	assert.Equal(t, "Synchronized 1 pass in 1s\n", buf.String())
}

func TestStyledRenderer_NoColor(t *testing.T) {
	var buf bytes.Buffer
	r := NewStyledRenderer(NewConfig(&buf, WithNoColor(true), WithVerbose(true)))

	r.PassDone(PassEvent{Kind: "update", Identity: "master:home/en/1", Duration: time.Millisecond})
	r.PassDone(PassEvent{Kind: "delete", Identity: "master:home/en/2", Err: errors.New("boom")})
	r.Complete(Summary{Passes: 2, Failed: 1, Duration: time.Second, Documents: 5})

	out := buf.String()
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "✗")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "Synchronization complete")
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "Documents")
}

func sampleStatus() StatusInfo {
	return StatusInfo{
		IndexName:       "web_index",
		Database:        "master",
		Root:            "/content",
		Backend:         "sqlite",
		StorePath:       "/data/web_index.db",
		Documents:       7,
		Groups:          3,
		Latest:          4,
		Fallback:        1,
		ByLanguage:      map[string]int{"en": 5, "de": 2},
		SizeOnDisk:      2048,
		ItemFallback:    true,
		ReadConsistency: "bypass_write_cache",
		Paused:          true,
		RepositoryPath:  "content.yaml",
		RepositoryNodes: 4,
	}
}

func TestStatusRenderer_Render(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewStatusRenderer(&buf, true).Render(sampleStatus()))

	out := buf.String()
	assert.Contains(t, out, "Index: web_index")
	assert.Contains(t, out, "7 (4 latest, 1 fallback)")
	assert.Contains(t, out, "de=2 en=5")
	assert.Contains(t, out, "2.0 KB")
	assert.Contains(t, out, "content.yaml (4 nodes)")
	assert.Contains(t, out, "paused")
}

func TestStatusRenderer_RenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewStatusRenderer(&buf, true).RenderJSON(sampleStatus()))

	var parsed map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	assert.Equal(t, "web_index", parsed["index_name"])
	assert.Equal(t, float64(7), parsed["documents"])
	assert.Equal(t, true, parsed["paused"])
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
	assert.Equal(t, "1.0 GB", FormatBytes(1024*1024*1024))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "just now", formatTime(time.Now()))
	assert.Equal(t, "1 minute ago", formatTime(time.Now().Add(-90*time.Second)))
	assert.Equal(t, "3 hours ago", formatTime(time.Now().Add(-3*time.Hour-time.Minute)))
	assert.Equal(t, "2 days ago", formatTime(time.Now().Add(-49*time.Hour)))
}
