package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// doUpdate runs the per-document update algorithm for v.
func (s *Synchronizer) doUpdate(ctx context.Context, guard *ProcessedSet, v *content.Version, op *content.OperationContext) error {
	needDelete, err := s.needsDelete(ctx, v)
	if err != nil {
		return err
	}
	if needDelete {
		s.raiseForVersion(ctx, EventDeleteItem, v)
		if err := s.store.DeleteDocument(ctx, v.Identity()); err != nil {
			return fmt.Errorf("failed to delete %s: %w", v.Identity(), err)
		}
		return nil
	}

	s.raiseForVersion(ctx, EventUpdatingItem, v)

	excluded, err := s.policy.IsExcluded(ctx, v.Identity())
	if err != nil {
		return fmt.Errorf("failed to check exclusion of %s: %w", v.Identity(), err)
	}

	if !excluded {
		if err := s.updateInScope(ctx, guard, v, op); err != nil {
			return err
		}
		s.raiseForVersion(ctx, EventUpdatedItem, v)
	} else {
		slog.DebugContext(ctx, "skipping excluded item",
			slog.String("identity", v.Identity().Key()),
			slog.String("path", v.Path))
	}

	if s.cfg.ProcessDependencies {
		s.raiseForVersion(ctx, EventUpdateDependents, v)
		if err := s.updateDependents(ctx, guard, v); err != nil {
			return err
		}
	}
	return nil
}

// updateInScope writes the documents op asks for. Without op every
// version of every language is rewritten, synthesized fallback languages
// included. A narrower scope writes the synthesized fallback documents of
// dependent languages separately.
func (s *Synchronizer) updateInScope(ctx context.Context, guard *ProcessedSet, v *content.Version, op *content.OperationContext) error {
	if op != nil && !op.NeedUpdateAllVersions {
		retracted, err := s.deleteUnusedFallbackVersion(ctx, v)
		if err != nil || retracted {
			return err
		}
		if err := s.updateItemVersion(ctx, v); err != nil {
			return err
		}
		if err := s.retractSupersededFallbacks(ctx, v); err != nil {
			return err
		}
		return s.writeSynthesizedFallbacks(ctx, guard, v)
	}

	languages, err := s.languagesInScope(ctx, v, op)
	if err != nil {
		return err
	}
	for _, lang := range languages {
		versions, err := s.ResolveVersions(ctx, v, lang)
		if err != nil {
			return err
		}
		for _, ver := range versions {
			if err := s.updateItemVersion(ctx, ver); err != nil {
				return err
			}
		}
	}

	if op != nil && !op.NeedUpdateAllLanguages {
		return s.writeSynthesizedFallbacks(ctx, guard, v)
	}
	return nil
}

// languagesInScope is v's own language unless every language was requested.
func (s *Synchronizer) languagesInScope(ctx context.Context, v *content.Version, op *content.OperationContext) ([]string, error) {
	if op != nil && !op.NeedUpdateAllLanguages {
		return []string{v.Language}, nil
	}
	languages, err := s.repo.GetLanguages(ctx, v.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to get languages of %s: %w", v.Database, err)
	}
	return languages, nil
}

// updateItemVersion writes the prepared document of one version.
func (s *Synchronizer) updateItemVersion(ctx context.Context, v *content.Version) error {
	doc, err := s.PrepareVersion(ctx, v)
	if err != nil {
		return err
	}
	if err := s.store.WriteDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to write %s: %w", doc.ID, err)
	}

	slog.DebugContext(ctx, "indexed version",
		slog.String("index", s.cfg.IndexName),
		slog.String("document", doc.ID),
		slog.Bool("latest", doc.IsLatestVersion),
		slog.Bool("fallback", doc.IsFallback))
	return nil
}

// updateDependents updates every dependent that is neither excluded nor
// already processed in this pass.
func (s *Synchronizer) updateDependents(ctx context.Context, guard *ProcessedSet, v *content.Version) error {
	deps, err := s.repo.GetDependents(ctx, v.Identity())
	if err != nil {
		return fmt.Errorf("failed to get dependents of %s: %w", v.Identity(), err)
	}

	for _, dep := range deps {
		excluded, err := s.policy.IsExcluded(ctx, dep)
		if err != nil {
			return fmt.Errorf("failed to check exclusion of %s: %w", dep, err)
		}
		if excluded || guard.Contains(dep) {
			continue
		}
		if err := s.Update(ctx, guard, dep, nil, content.IndexingDefault); err != nil {
			return err
		}
	}
	return nil
}

// needsDelete reports whether the document for v must be removed instead of
// updated: the node is gone, has left the index root, or the version no
// longer exists.
func (s *Synchronizer) needsDelete(ctx context.Context, v *content.Version) (bool, error) {
	node, err := s.repo.GetNode(ctx, v.Database, v.NodeID)
	if err != nil {
		return false, fmt.Errorf("failed to get node %s: %w", v.NodeID, err)
	}
	if node == nil {
		return true, nil
	}
	if !node.IsAtOrBelow(s.cfg.RootPath) {
		return true, nil
	}
	if v.IsFallback {
		return false, nil
	}

	numbers, err := s.repo.GetVersionNumbers(ctx, v.Database, v.NodeID, v.Language, s.freshReadOpts())
	if err != nil {
		return false, fmt.Errorf("failed to get version numbers of %s: %w", v.Identity(), err)
	}
	return !content.Specific(v.Number).In(numbers), nil
}
