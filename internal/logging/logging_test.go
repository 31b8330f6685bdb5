package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLogPath(t *testing.T) {
	path := DefaultLogPath()
	assert.Equal(t, "sync.log", filepath.Base(path))
	assert.Contains(t, path, filepath.Join(".contentsync", "logs"))
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig()
	assert.Equal(t, "debug", cfg.Level)
	assert.True(t, cfg.WriteToStderr)
	assert.False(t, DefaultConfig().WriteToStderr)
}

func TestSetup_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")

	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("sync pass complete", "pass", "p1")
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"msg":"sync pass complete"`)
	assert.Contains(t, lines[0], `"pass":"p1"`)
}

func TestLevelFromString(t *testing.T) {
	tests := map[string]string{
		"debug":   "DEBUG",
		"INFO":    "INFO",
		"warning": "WARN",
		"error":   "ERROR",
		"unknown": "INFO",
	}
	for in, want := range tests {
		assert.Equal(t, want, LevelFromString(in).String(), in)
	}
}

func TestFindLogFile(t *testing.T) {
	_, err := FindLogFile("/nonexistent/sync.log")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "sync.log")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	found, err := FindLogFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, found)
}

func TestRotatingWriter_Rotates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	w, err := NewRotatingWriter(path, 1, 2)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	for i := 0; i < 4; i++ {
		_, err := w.Write(chunk)
		require.NoError(t, err)
	}

	assert.FileExists(t, path)
	assert.FileExists(t, path+".1")
	assert.FileExists(t, path+".2")
	assert.NoFileExists(t, path+".3")
}

func TestRotatingWriter_ImmediateSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sync.log")
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	line := []byte(`{"level":"INFO","msg":"test"}` + "\n")
	_, err = w.Write(line)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(line), string(data))
}

const sampleLog = `{"time":"2026-01-02T10:00:00.000Z","level":"DEBUG","msg":"resolve","identity":"master:home/en/1"}
{"time":"2026-01-02T10:00:01.000Z","level":"INFO","msg":"sync pass complete","pass":"a"}
not json
{"time":"2026-01-02T10:00:02.000Z","level":"ERROR","msg":"sync pass failed","pass":"b","error":"store busy"}
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sync.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

func TestViewer_TailFilters(t *testing.T) {
	path := writeSample(t)

	all, err := NewViewer(ViewerConfig{}, nil).Tail(path, 100)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.False(t, all[2].IsValid)

	last, err := NewViewer(ViewerConfig{}, nil).Tail(path, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "b", last[0].Attr("pass"))

	info, err := NewViewer(ViewerConfig{Level: "info"}, nil).Tail(path, 100)
	require.NoError(t, err)
	assert.Len(t, info, 3, "unparsed lines count as info")

	pass, err := NewViewer(ViewerConfig{Pass: "b"}, nil).Tail(path, 100)
	require.NoError(t, err)
	require.Len(t, pass, 1)
	assert.Equal(t, "sync pass failed", pass[0].Msg)

	pattern, err := NewViewer(ViewerConfig{Pattern: regexp.MustCompile(`home/en`)}, nil).Tail(path, 100)
	require.NoError(t, err)
	require.Len(t, pattern, 1)
	assert.Equal(t, "master:home/en/1", pattern[0].Attr("identity"))
}

func TestViewer_FormatEntry(t *testing.T) {
	var out bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &out)

	entries, err := v.Tail(writeSample(t), 100)
	require.NoError(t, err)
	v.Print(entries[3:])

	assert.Equal(t, "10:00:02.000 ERROR sync pass failed error=store busy pass=b\n", out.String())
	assert.Equal(t, "not json", v.FormatEntry(entries[2]))
}

func TestViewer_Follow(t *testing.T) {
	path := writeSample(t)
	v := NewViewer(ViewerConfig{Level: "error"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// let Follow seek to the end before appending
	time.Sleep(150 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-01-02T10:00:03Z","level":"INFO","msg":"skip"}` + "\n" +
		`{"time":"2026-01-02T10:00:04Z","level":"ERROR","msg":"boom"}` + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	select {
	case entry := <-entries:
		assert.Equal(t, "boom", entry.Msg)
	case <-time.After(2 * time.Second):
		t.Fatal("no entry followed")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	w, err := NewRotatingWriter(filepath.Join(t.TempDir(), "sync.log"), 1, 1)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	_, err = w.Write([]byte("late\n"))
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestContextHandler_AddsPassID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("index", "web")

	ctx := WithPass(context.Background(), "p-42")
	logger.InfoContext(ctx, "indexed version")
	logger.Info("no pass")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"pass":"p-42"`)
	assert.Contains(t, lines[0], `"index":"web"`)
	assert.NotContains(t, lines[1], `"pass"`)

	assert.Equal(t, "p-42", PassFromContext(ctx))
	assert.Empty(t, PassFromContext(context.Background()))
}
