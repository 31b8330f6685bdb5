package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options configures watching behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 300ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode (fallback).
	// Default: 2s
	PollInterval time.Duration

	// ForcePolling skips fsnotify entirely.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow: 300 * time.Millisecond,
		PollInterval:   2 * time.Second,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow <= 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval <= 0 {
		o.PollInterval = defaults.PollInterval
	}
	return o
}

// FileWatcher reports changes of a single file. The parent directory is
// watched so that editors replacing the file by rename are still seen.
type FileWatcher struct {
	path string
	opts Options
	fsw  *fsnotify.Watcher

	changes chan struct{}
	errors  chan error
	stopCh  chan struct{}

	mu      sync.Mutex
	stopped bool
}

// NewFileWatcher creates a watcher for path. If fsnotify cannot be
// initialized the watcher polls the file's modification time instead.
func NewFileWatcher(path string, opts Options) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve absolute path: %w", err)
	}

	w := &FileWatcher{
		path:    abs,
		opts:    opts.WithDefaults(),
		changes: make(chan struct{}, 1),
		errors:  make(chan error, 10),
		stopCh:  make(chan struct{}),
	}

	if !w.opts.ForcePolling {
		fsw, err := fsnotify.NewWatcher()
		if err == nil {
			w.fsw = fsw
		} else {
			slog.Warn("fsnotify unavailable, falling back to polling",
				slog.String("error", err.Error()))
		}
	}
	return w, nil
}

// Polling reports whether the watcher runs in polling mode.
func (w *FileWatcher) Polling() bool {
	return w.fsw == nil
}

// Changes signals that the file changed. Bursts collapse into one signal.
func (w *FileWatcher) Changes() <-chan struct{} {
	return w.changes
}

// Errors returns non-fatal watcher errors.
func (w *FileWatcher) Errors() <-chan error {
	return w.errors
}

// Start watches until ctx is cancelled or Stop is called.
func (w *FileWatcher) Start(ctx context.Context) error {
	if w.fsw != nil {
		if err := w.fsw.Add(filepath.Dir(w.path)); err != nil {
			return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
		}
		return w.runFsnotify(ctx)
	}
	return w.runPolling(ctx)
}

func (w *FileWatcher) runFsnotify(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			slog.Debug("repository file event",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))
			w.notify()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.emitError(err)
		}
	}
}

type fileSnapshot struct {
	modTime time.Time
	size    int64
	exists  bool
}

func snapshot(path string) fileSnapshot {
	info, err := os.Stat(path)
	if err != nil {
		return fileSnapshot{}
	}
	return fileSnapshot{modTime: info.ModTime(), size: info.Size(), exists: true}
}

func (s fileSnapshot) equal(o fileSnapshot) bool {
	return s.exists == o.exists && s.size == o.size && s.modTime.Equal(o.modTime)
}

func (w *FileWatcher) runPolling(ctx context.Context) error {
	last := snapshot(w.path)
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return ctx.Err()
		case <-w.stopCh:
			return nil
		case <-ticker.C:
			cur := snapshot(w.path)
			if !cur.equal(last) {
				last = cur
				w.notify()
			}
		}
	}
}

func (w *FileWatcher) notify() {
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *FileWatcher) emitError(err error) {
	select {
	case w.errors <- err:
	default:
		slog.Warn("watcher error dropped", slog.String("error", err.Error()))
	}
}

// Stop stops the watcher. Safe to call multiple times.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)

	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}
