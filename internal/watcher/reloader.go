package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/contentsync/internal/content"
	"github.com/Aman-CERP/contentsync/internal/pipeline"
	"github.com/Aman-CERP/contentsync/internal/repository"
)

// Purger drops cached repository reads.
type Purger interface {
	Purge()
}

// BatchRunner processes a batch of independent mutation events.
type BatchRunner interface {
	Run(ctx context.Context, events []content.MutationEvent) ([]pipeline.Result, error)
}

// Reloader swaps a freshly parsed repository file into the live repository
// and queues the mutation events the change implies.
type Reloader struct {
	path      string
	repo      *repository.Memory
	cache     Purger
	debouncer *Debouncer
}

// NewReloader creates a Reloader. cache may be nil.
func NewReloader(path string, repo *repository.Memory, cache Purger, d *Debouncer) *Reloader {
	return &Reloader{path: path, repo: repo, cache: cache, debouncer: d}
}

// Reload parses the file and applies it. A file that fails to parse leaves
// the live repository untouched. It returns the number of queued events.
func (r *Reloader) Reload() (int, error) {
	next, err := repository.Load(r.path)
	if err != nil {
		return 0, fmt.Errorf("reload %s: %w", r.path, err)
	}
	if next.Database() != r.repo.Database() {
		return 0, fmt.Errorf("reload %s: database changed from %q to %q", r.path, r.repo.Database(), next.Database())
	}

	events := repository.Diff(r.repo.Clone(), next)
	r.repo.Replace(next)
	if r.cache != nil {
		r.cache.Purge()
	}

	for _, ev := range events {
		r.debouncer.Add(ev)
	}

	slog.Info("repository reloaded",
		slog.String("path", r.path),
		slog.Int("events", len(events)))
	return len(events), nil
}

// Service runs the watch loop: file changes are reloaded, and debounced
// batches are handed to the runner.
type Service struct {
	watcher   *FileWatcher
	reloader  *Reloader
	debouncer *Debouncer
	runner    BatchRunner
}

// NewService wires a watcher for the repository file at path.
func NewService(path string, repo *repository.Memory, cache Purger, runner BatchRunner, opts Options) (*Service, error) {
	opts = opts.WithDefaults()

	w, err := NewFileWatcher(path, opts)
	if err != nil {
		return nil, err
	}
	d := NewDebouncer(opts.DebounceWindow)

	return &Service{
		watcher:   w,
		reloader:  NewReloader(path, repo, cache, d),
		debouncer: d,
		runner:    runner,
	}, nil
}

// Run blocks until ctx is cancelled. Reload and pass failures are logged
// and do not stop the loop.
func (s *Service) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.debouncer.Stop()

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- s.watcher.Start(ctx)
	}()

	slog.Info("watching repository file",
		slog.String("path", s.watcher.path),
		slog.Bool("polling", s.watcher.Polling()))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		case <-s.watcher.Changes():
			if _, err := s.reloader.Reload(); err != nil {
				slog.Error("repository reload failed, keeping previous snapshot",
					slog.String("error", err.Error()))
			}
		case err := <-s.watcher.Errors():
			slog.Warn("watcher error", slog.String("error", err.Error()))
		case batch, ok := <-s.debouncer.Output():
			if !ok {
				return nil
			}
			if _, err := s.runner.Run(ctx, batch); err != nil {
				slog.Error("batch had failed passes",
					slog.Int("events", len(batch)),
					slog.String("error", err.Error()))
			}
		}
	}
}
