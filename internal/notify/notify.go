// Package notify provides lifecycle event sinks for the synchronizer.
package notify

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Aman-CERP/contentsync/internal/crawler"
)

// LogSink logs every lifecycle event at debug level.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a LogSink. A nil logger uses slog.Default.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Raise implements crawler.EventSink.
func (s *LogSink) Raise(ctx context.Context, e crawler.Event) {
	s.logger.DebugContext(ctx, "indexing event",
		slog.String("event", e.Name),
		slog.String("index", e.Index),
		slog.String("key", e.Key),
		slog.String("path", e.Path))
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []crawler.EventSink

// Raise implements crawler.EventSink.
func (m MultiSink) Raise(ctx context.Context, e crawler.Event) {
	for _, s := range m {
		if s != nil {
			s.Raise(ctx, e)
		}
	}
}

// Purger drops cached repository reads of one node.
type Purger interface {
	PurgeNode(database, nodeID string)
}

// CacheInvalidator purges the repository cache of a node whose document
// was deleted, so later reads in the same or following passes see the
// repository as it is now.
type CacheInvalidator struct {
	purger Purger
}

// NewCacheInvalidator creates a CacheInvalidator.
func NewCacheInvalidator(p Purger) *CacheInvalidator {
	return &CacheInvalidator{purger: p}
}

// Raise implements crawler.EventSink.
func (c *CacheInvalidator) Raise(_ context.Context, e crawler.Event) {
	if e.Name == crawler.EventDeleteItem && e.NodeID != "" {
		c.purger.PurgeNode(e.Database, e.NodeID)
	}
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []crawler.Event
}

// Raise implements crawler.EventSink.
func (r *Recorder) Raise(_ context.Context, e crawler.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []crawler.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]crawler.Event(nil), r.events...)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.events))
	for i, e := range r.events {
		names[i] = e.Name
	}
	return names
}

// Reset forgets every recorded event.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}
