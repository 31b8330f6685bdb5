package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Delete removes the document for id. In fallback mode it then propagates
// shared fallback fields to the languages borrowing from id. Every document
// whose content depends on id is refreshed without further structural
// fan-out, and last, in fallback mode, synthesized versions that only
// existed because of id are retracted.
func (s *Synchronizer) Delete(ctx context.Context, guard *ProcessedSet, id content.Identity, opts content.IndexingOptions) error {
	if !s.policy.ShouldStartIndexing(opts) {
		return nil
	}

	s.raise(ctx, EventDeleteItem, id.Key(), id.Database, id.NodeID, "")
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	if s.cfg.EnableItemLanguageFallback {
		if err := s.propagateFallbackFields(ctx, guard, id); err != nil {
			return err
		}
	}

	deps, err := s.repo.GetDependentsOnDelete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get dependents of deleted %s: %w", id, err)
	}

	noFanOut := content.NoFanOut()
	for _, dep := range deps {
		if !guard.TryAdd(dep) {
			continue
		}
		v, err := s.getVersion(ctx, dep)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		if err := s.doUpdate(ctx, guard, v, noFanOut); err != nil {
			return err
		}
	}

	if !s.cfg.EnableItemLanguageFallback {
		return nil
	}
	return s.retractFallbackVersions(ctx, id)
}

// DeleteGroup removes every document of a node.
func (s *Synchronizer) DeleteGroup(ctx context.Context, group content.GroupID, opts content.IndexingOptions) error {
	if !s.policy.ShouldStartIndexing(opts) {
		return nil
	}

	s.raise(ctx, EventDeleteItem, group.String(), group.Database, group.NodeID, "")
	if err := s.store.DeleteGroup(ctx, group); err != nil {
		return fmt.Errorf("failed to delete group %s: %w", group, err)
	}

	slog.DebugContext(ctx, "deleted group",
		slog.String("index", s.cfg.IndexName),
		slog.String("group", group.String()))
	return nil
}
