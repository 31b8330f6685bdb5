package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Synchronizer applies mutation events to one index.
// It holds no per-pass state; every pass brings its own ProcessedSet.
type Synchronizer struct {
	cfg    Config
	repo   content.Repository
	store  IndexStore
	policy PolicyOracle
	events EventSink
}

// New creates a Synchronizer. events may be nil.
func New(cfg Config, repo content.Repository, store IndexStore, policy PolicyOracle, events EventSink) *Synchronizer {
	if cfg.Formatter == "" {
		cfg.Formatter = DefaultFormatter
	}
	if cfg.ReadConsistency == "" {
		cfg.ReadConsistency = content.ConsistencyBypassWriteCache
	}
	return &Synchronizer{
		cfg:    cfg,
		repo:   repo,
		store:  store,
		policy: policy,
		events: events,
	}
}

// Config returns the index configuration.
func (s *Synchronizer) Config() Config {
	return s.cfg
}

// Sync runs one synchronization pass for a mutation event with a fresh guard.
func (s *Synchronizer) Sync(ctx context.Context, ev content.MutationEvent) error {
	return s.SyncWithGuard(ctx, NewProcessedSet(), ev)
}

// SyncWithGuard runs a pass using the given guard.
func (s *Synchronizer) SyncWithGuard(ctx context.Context, guard *ProcessedSet, ev content.MutationEvent) error {
	slog.DebugContext(ctx, "sync pass started",
		slog.String("index", s.cfg.IndexName),
		slog.String("kind", ev.Kind.String()),
		slog.String("identity", ev.Identity.Key()),
		slog.String("context", ev.Context.String()))

	switch ev.Kind {
	case content.EventUpdate:
		return s.Update(ctx, guard, ev.Identity, ev.Context, ev.Options)
	case content.EventDelete:
		return s.Delete(ctx, guard, ev.Identity, ev.Options)
	case content.EventDeleteGroup:
		return s.DeleteGroup(ctx, ev.Identity.GroupID(), ev.Options)
	default:
		return fmt.Errorf("unknown event kind %d", ev.Kind)
	}
}

// readOpts are used for ordinary identity lookups.
func (s *Synchronizer) readOpts() content.ReadOptions {
	return content.ReadOptions{
		ItemFallback:  s.cfg.EnableItemLanguageFallback,
		FieldFallback: s.cfg.EnableFieldLanguageFallback,
		Consistency:   content.ConsistencyCached,
	}
}

// freshReadOpts are used for version lists and latest-version lookups,
// where the configured read consistency applies.
func (s *Synchronizer) freshReadOpts() content.ReadOptions {
	opts := s.readOpts()
	opts.Consistency = s.cfg.ReadConsistency
	return opts
}

func (s *Synchronizer) raise(ctx context.Context, name, key, database, nodeID, path string) {
	if s.events == nil {
		return
	}
	s.events.Raise(ctx, Event{
		Name:     name,
		Index:    s.cfg.IndexName,
		Key:      key,
		Database: database,
		NodeID:   nodeID,
		Path:     path,
	})
}

func (s *Synchronizer) raiseForVersion(ctx context.Context, name string, v *content.Version) {
	s.raise(ctx, name, v.Identity().Key(), v.Database, v.NodeID, v.Path)
}
