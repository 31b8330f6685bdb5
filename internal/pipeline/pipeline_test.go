package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/contentsync/internal/content"
	"github.com/Aman-CERP/contentsync/internal/crawler"
	serrors "github.com/Aman-CERP/contentsync/internal/errors"
	"github.com/Aman-CERP/contentsync/internal/logging"
)

type fakeSyncer struct {
	mu       sync.Mutex
	guards   map[*crawler.ProcessedSet]bool
	fail     map[string]bool
	running  atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
	received []string
	passes   map[string]string
}

func newFakeSyncer() *fakeSyncer {
	return &fakeSyncer{
		guards: map[*crawler.ProcessedSet]bool{},
		fail:   map[string]bool{},
		passes: map[string]string{},
	}
}

func (f *fakeSyncer) SyncWithGuard(ctx context.Context, guard *crawler.ProcessedSet, ev content.MutationEvent) error {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	f.guards[guard] = true
	f.received = append(f.received, ev.Identity.NodeID)
	f.passes[ev.Identity.NodeID] = logging.PassFromContext(ctx)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if f.fail[ev.Identity.NodeID] {
		return errors.New("store unavailable")
	}
	return nil
}

type recordingObserver struct {
	mu     sync.Mutex
	passes map[string]error
}

func (o *recordingObserver) ObservePass(passID string, _ content.MutationEvent, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.passes[passID] = err
}

func events(nodes ...string) []content.MutationEvent {
	evs := make([]content.MutationEvent, len(nodes))
	for i, n := range nodes {
		evs[i] = content.MutationEvent{
			Kind:     content.EventUpdate,
			Identity: content.Identity{Database: "master", NodeID: n, Language: "en", Version: content.Latest()},
		}
	}
	return evs
}

func TestPipeline_EachPassGetsItsOwnGuard(t *testing.T) {
	s := newFakeSyncer()
	p := New(s, Config{Workers: 2})

	results, err := p.Run(context.Background(), events("a", "b", "c", "d"))
	require.NoError(t, err)

	assert.Len(t, results, 4)
	assert.Len(t, s.guards, 4)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, s.received)

	ids := map[string]bool{}
	for _, r := range results {
		assert.NotEmpty(t, r.PassID)
		ids[r.PassID] = true
	}
	assert.Len(t, ids, 4, "pass ids are unique")
}

func TestPipeline_PassIDReachesSyncer(t *testing.T) {
	s := newFakeSyncer()
	p := New(s, Config{Workers: 2})

	results, err := p.Run(context.Background(), events("a", "b", "c"))
	require.NoError(t, err)

	for _, r := range results {
		assert.Equal(t, r.PassID, s.passes[r.Event.Identity.NodeID])
	}
}

func TestPipeline_BoundsConcurrency(t *testing.T) {
	s := newFakeSyncer()
	s.delay = 20 * time.Millisecond
	p := New(s, Config{Workers: 2})

	_, err := p.Run(context.Background(), events("a", "b", "c", "d", "e", "f"))
	require.NoError(t, err)

	assert.LessOrEqual(t, s.peak.Load(), int32(2))
}

func TestPipeline_FailedPassDoesNotStopOthers(t *testing.T) {
	s := newFakeSyncer()
	s.fail["b"] = true
	obs := &recordingObserver{passes: map[string]error{}}
	p := New(s, Config{Workers: 1, Observer: obs})

	results, err := p.Run(context.Background(), events("a", "b", "c"))
	require.Error(t, err)
	assert.Equal(t, serrors.ErrCodeSyncFailed, serrors.GetCode(err))
	assert.Contains(t, err.Error(), "store unavailable")

	assert.ElementsMatch(t, []string{"a", "b", "c"}, s.received)
	assert.Len(t, obs.passes, 3)
	for _, r := range results {
		if r.Event.Identity.NodeID == "b" {
			assert.Error(t, r.Err)
		} else {
			assert.NoError(t, r.Err)
		}
	}

	snap := p.Progress().Snapshot()
	assert.Equal(t, 3, snap.Submitted)
	assert.Equal(t, 2, snap.Completed)
	assert.Equal(t, 1, snap.Failed)
	assert.Equal(t, 0, snap.Pending)
	assert.Equal(t, "store unavailable", snap.LastError)
}

func TestPipeline_CancelledContext(t *testing.T) {
	s := newFakeSyncer()
	p := New(s, Config{Workers: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, events("a", "b"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_EmptyBatch(t *testing.T) {
	p := New(newFakeSyncer(), Config{})
	results, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, DefaultWorkers, p.workers)
}

func TestPipeline_Submit(t *testing.T) {
	s := newFakeSyncer()
	p := New(s, Config{})

	require.NoError(t, p.Submit(context.Background(), events("a")[0]))
	assert.Equal(t, []string{"a"}, s.received)
	assert.Equal(t, 1, p.Progress().Snapshot().Completed)
}
