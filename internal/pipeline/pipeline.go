// Package pipeline delivers independent mutation events to a synchronizer
// concurrently. Every event runs as its own pass with its own cycle guard.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/contentsync/internal/content"
	"github.com/Aman-CERP/contentsync/internal/crawler"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
	"github.com/Aman-CERP/contentsync/internal/logging"
)

// DefaultWorkers is used when Config.Workers is not positive.
const DefaultWorkers = 4

// Syncer runs one synchronization pass.
type Syncer interface {
	SyncWithGuard(ctx context.Context, guard *crawler.ProcessedSet, ev content.MutationEvent) error
}

// Observer is told about every finished pass.
type Observer interface {
	ObservePass(passID string, ev content.MutationEvent, d time.Duration, err error)
}

// Config configures a Pipeline.
type Config struct {
	// Workers bounds the number of passes running at once.
	Workers int
	// Observer is optional.
	Observer Observer
}

// Result is the outcome of one pass.
type Result struct {
	PassID   string
	Event    content.MutationEvent
	Duration time.Duration
	Err      error
}

// Pipeline fans batches of events out to a bounded set of workers.
type Pipeline struct {
	syncer   Syncer
	workers  int
	observer Observer
	progress *Progress
}

// New creates a Pipeline.
func New(syncer Syncer, cfg Config) *Pipeline {
	workers := cfg.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		syncer:   syncer,
		workers:  workers,
		observer: cfg.Observer,
		progress: NewProgress(),
	}
}

// Progress returns the cumulative progress tracker.
func (p *Pipeline) Progress() *Progress {
	return p.progress
}

// Run processes events concurrently and waits for all of them. A failed
// pass does not stop the others; the returned error joins every pass
// failure. Events not yet started when ctx is cancelled are skipped and the
// context error is returned.
func (p *Pipeline) Run(ctx context.Context, events []content.MutationEvent) ([]Result, error) {
	results := make([]Result, len(events))
	if len(events) == 0 {
		return results, nil
	}

	p.progress.Submit(len(events))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, p.workers)

	var mu sync.Mutex
	var failures []error

	for i, ev := range events {
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}
			if err := gctx.Err(); err != nil {
				return err
			}

			res := p.runPass(gctx, ev)
			results[i] = res

			if res.Err != nil {
				mu.Lock()
				failures = append(failures, res.Err)
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	if len(failures) > 0 {
		return results, serrors.New(serrors.ErrCodeSyncFailed, "one or more synchronization passes failed", errors.Join(failures...)).
			WithDetail("failed", strconv.Itoa(len(failures)))
	}
	return results, nil
}

// Submit runs a single event as its own pass.
func (p *Pipeline) Submit(ctx context.Context, ev content.MutationEvent) error {
	p.progress.Submit(1)
	return p.runPass(ctx, ev).Err
}

func (p *Pipeline) runPass(ctx context.Context, ev content.MutationEvent) Result {
	passID := uuid.NewString()
	start := time.Now()

	err := p.syncer.SyncWithGuard(logging.WithPass(ctx, passID), crawler.NewProcessedSet(), ev)
	d := time.Since(start)

	if err != nil {
		slog.Error("sync pass failed",
			slog.String("pass", passID),
			slog.String("kind", ev.Kind.String()),
			slog.String("identity", ev.Identity.Key()),
			slog.Duration("duration", d),
			slog.String("error", err.Error()))
		p.progress.Fail(err)
	} else {
		slog.Info("sync pass complete",
			slog.String("pass", passID),
			slog.String("kind", ev.Kind.String()),
			slog.String("identity", ev.Identity.Key()),
			slog.Duration("duration", d))
		p.progress.Done()
	}

	if p.observer != nil {
		p.observer.ObservePass(passID, ev, d, err)
	}
	return Result{PassID: passID, Event: ev, Duration: d, Err: err}
}
