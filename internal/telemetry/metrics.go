// Package telemetry exposes synchronizer activity as Prometheus metrics.
// Nothing is reported externally; the registry is served only when the
// watch command is given a metrics address.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/contentsync/internal/content"
	"github.com/Aman-CERP/contentsync/internal/crawler"
	"github.com/Aman-CERP/contentsync/internal/repository"
)

const namespace = "contentsync"

// =============================================================================
// Metrics
// =============================================================================

// Metrics holds every collector of one process. Collectors are registered
// on a private registry so tests and multiple instances never collide.
type Metrics struct {
	registry *prometheus.Registry

	events       *prometheus.CounterVec
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec
	passes       *prometheus.CounterVec
	passLatency  *prometheus.HistogramVec

	failures *CircularBuffer[PassFailure]
}

// PassFailure records one failed synchronization pass.
type PassFailure struct {
	PassID   string    `json:"pass_id"`
	Kind     string    `json:"kind"`
	Identity string    `json:"identity"`
	Error    string    `json:"error"`
	At       time.Time `json:"at"`
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "events_total",
			Help:      "Lifecycle events raised by the synchronizer",
		}, []string{"index", "event"}),
		storeOps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Index store operations by result",
		}, []string{"op", "status"}),
		storeLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Index store operation latency in seconds",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"op"}),
		passes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Synchronization passes by event kind and result",
		}, []string{"kind", "status"}),
		passLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Synchronization pass latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		failures: NewCircularBuffer[PassFailure](50),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RegisterCache exports repository cache statistics as gauges.
func (m *Metrics) RegisterCache(stats func() repository.CacheStats) {
	factory := promauto.With(m.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "repository_cache",
		Name:      "hits",
		Help:      "Repository cache hits",
	}, func() float64 { return float64(stats().Hits) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "repository_cache",
		Name:      "misses",
		Help:      "Repository cache misses",
	}, func() float64 { return float64(stats().Misses) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "repository_cache",
		Name:      "entries",
		Help:      "Entries currently held by the repository cache",
	}, func() float64 { return float64(stats().Len) })
}

// ObservePass records the outcome of one pass.
func (m *Metrics) ObservePass(passID string, ev content.MutationEvent, d time.Duration, err error) {
	kind := ev.Kind.String()
	m.passLatency.WithLabelValues(kind).Observe(d.Seconds())
	if err == nil {
		m.passes.WithLabelValues(kind, "ok").Inc()
		return
	}
	m.passes.WithLabelValues(kind, "error").Inc()
	m.failures.Add(PassFailure{
		PassID:   passID,
		Kind:     kind,
		Identity: ev.Identity.Key(),
		Error:    err.Error(),
		At:       time.Now().UTC(),
	})
}

// RecentFailures returns the most recent failed passes, oldest first.
func (m *Metrics) RecentFailures() []PassFailure {
	return m.failures.Items()
}

// Raise implements crawler.EventSink by counting events.
func (m *Metrics) Raise(_ context.Context, e crawler.Event) {
	m.events.WithLabelValues(e.Index, e.Name).Inc()
}

// =============================================================================
// Instrumented Store
// =============================================================================

// Store wraps an index store with operation counters and latency histograms.
type Store struct {
	next    crawler.IndexStore
	metrics *Metrics
}

// InstrumentStore decorates next.
func (m *Metrics) InstrumentStore(next crawler.IndexStore) *Store {
	return &Store{next: next, metrics: m}
}

// WriteDocument implements crawler.IndexStore.
func (s *Store) WriteDocument(ctx context.Context, doc *content.Document) error {
	start := time.Now()
	err := s.next.WriteDocument(ctx, doc)
	s.observe("write", start, err)
	return err
}

// DeleteDocument implements crawler.IndexStore.
func (s *Store) DeleteDocument(ctx context.Context, id content.Identity) error {
	start := time.Now()
	err := s.next.DeleteDocument(ctx, id)
	s.observe("delete", start, err)
	return err
}

// DeleteGroup implements crawler.IndexStore.
func (s *Store) DeleteGroup(ctx context.Context, group content.GroupID) error {
	start := time.Now()
	err := s.next.DeleteGroup(ctx, group)
	s.observe("delete_group", start, err)
	return err
}

// DeleteFallbacks implements crawler.IndexStore.
func (s *Store) DeleteFallbacks(ctx context.Context, id content.Identity) error {
	start := time.Now()
	err := s.next.DeleteFallbacks(ctx, id)
	s.observe("delete_fallbacks", start, err)
	return err
}

func (s *Store) observe(op string, start time.Time, err error) {
	s.metrics.storeLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.storeOps.WithLabelValues(op, status).Inc()
}

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	items    []T
	head     int // next write position
	size     int
	capacity int
}

// NewCircularBuffer creates a buffer. A non-positive capacity becomes 100.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add appends item, evicting the oldest one when full.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity
	if b.size < b.capacity {
		b.size++
	}
}

// Items returns the buffered items oldest first.
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the number of buffered items.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}
