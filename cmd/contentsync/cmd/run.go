package cmd

import (
	"context"
	"io"
	"time"

	"github.com/Aman-CERP/contentsync/internal/content"
	"github.com/Aman-CERP/contentsync/internal/pipeline"
	"github.com/Aman-CERP/contentsync/internal/ui"
)

// reportingRunner runs batches through the pipeline and renders every
// finished pass.
type reportingRunner struct {
	a        *app
	renderer ui.Renderer
}

func newReportingRunner(a *app, out io.Writer, verbose bool) *reportingRunner {
	cfg := ui.NewConfig(out, ui.WithNoColor(noColor), ui.WithVerbose(verbose))
	return &reportingRunner{a: a, renderer: ui.NewRenderer(cfg)}
}

// Run implements watcher.BatchRunner.
func (r *reportingRunner) Run(ctx context.Context, events []content.MutationEvent) ([]pipeline.Result, error) {
	start := time.Now()
	results, err := r.a.pipe.Run(ctx, events)

	failed := 0
	for _, res := range results {
		if res.PassID == "" {
			// never started
			continue
		}
		if res.Err != nil {
			failed++
		}
		r.renderer.PassDone(ui.PassEvent{
			PassID:   res.PassID,
			Kind:     res.Event.Kind.String(),
			Identity: eventKey(res.Event),
			Duration: res.Duration,
			Err:      res.Err,
		})
	}

	summary := ui.Summary{Passes: len(events), Failed: failed, Duration: time.Since(start), Documents: -1}
	if stats, serr := r.a.store.Stats(ctx); serr == nil {
		summary.Documents = stats.Documents
	}
	r.renderer.Complete(summary)
	return results, err
}

// eventKey is the identity key, or the group key of a DELETE_GROUP event.
func eventKey(ev content.MutationEvent) string {
	if ev.Kind == content.EventDeleteGroup {
		return ev.Identity.GroupID().String()
	}
	return ev.Identity.Key()
}
