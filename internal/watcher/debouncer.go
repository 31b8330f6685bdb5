package watcher

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Debouncer coalesces mutation events for the same identity within a time
// window so a burst of edits becomes one pass per identity. Events for the
// same identity are merged according to these rules:
//   - UPDATE + UPDATE = UPDATE with the union of both scopes
//   - UPDATE + DELETE = DELETE
//   - DELETE + UPDATE = UPDATE (the identity was recreated)
//   - DELETE_GROUP drops every pending event of its node
type Debouncer struct {
	window  time.Duration
	pending map[string]*pendingEvent
	seq     uint64
	mu      sync.Mutex
	output  chan []content.MutationEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event content.MutationEvent
	seq   uint64 // first-seen order, kept across merges
}

// NewDebouncer creates a debouncer with the given window duration.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []content.MutationEvent, 10),
	}
}

func debounceKey(ev content.MutationEvent) string {
	if ev.Kind == content.EventDeleteGroup {
		return "group " + ev.Identity.GroupID().String()
	}
	return ev.Identity.Key()
}

// Add adds an event to be debounced.
func (d *Debouncer) Add(ev content.MutationEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if ev.Kind == content.EventDeleteGroup {
		group := ev.Identity.GroupID()
		for key, pe := range d.pending {
			if pe.event.Kind != content.EventDeleteGroup && pe.event.Identity.GroupID() == group {
				delete(d.pending, key)
			}
		}
	}

	key := debounceKey(ev)
	if existing, ok := d.pending[key]; ok {
		existing.event = coalesce(existing.event, ev)
	} else {
		d.seq++
		d.pending[key] = &pendingEvent{event: ev, seq: d.seq}
	}

	d.scheduleFlush()
}

// coalesce merges next into existing for the same identity.
func coalesce(existing, next content.MutationEvent) content.MutationEvent {
	if existing.Kind == content.EventUpdate && next.Kind == content.EventUpdate {
		merged := next
		merged.Context = mergeContext(existing.Context, next.Context)
		if existing.Options == content.IndexingForced {
			merged.Options = content.IndexingForced
		}
		return merged
	}
	return next
}

// mergeContext returns the union of two scopes. A nil scope is already the
// widest one.
func mergeContext(a, b *content.OperationContext) *content.OperationContext {
	if a == nil || b == nil {
		return nil
	}
	merged := &content.OperationContext{
		NeedUpdateAllVersions:     a.NeedUpdateAllVersions || b.NeedUpdateAllVersions,
		NeedUpdateAllLanguages:    a.NeedUpdateAllLanguages || b.NeedUpdateAllLanguages,
		NeedUpdateChildren:        a.NeedUpdateChildren || b.NeedUpdateChildren,
		NeedUpdatePreviousVersion: a.NeedUpdatePreviousVersion || b.NeedUpdatePreviousVersion,
		OldParentID:               a.OldParentID,
	}
	if merged.OldParentID == "" {
		merged.OldParentID = b.OldParentID
	}
	return merged
}

// scheduleFlush schedules a flush after the debounce window.
func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// Flush emits pending events immediately.
func (d *Debouncer) Flush() {
	d.flush()
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	pending := make([]*pendingEvent, 0, len(d.pending))
	for _, pe := range d.pending {
		pending = append(pending, pe)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })

	events := make([]content.MutationEvent, len(pending))
	for i, pe := range pending {
		events[i] = pe.event
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced batches.
func (d *Debouncer) Output() <-chan []content.MutationEvent {
	return d.output
}

// Pending returns the number of events waiting for the window to close.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
