package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Update is the entry point for one identity. It classifies the operation
// by its context flags, in this order: children, previous version, all
// versions. Identities already processed in this pass are a silent no-op.
func (s *Synchronizer) Update(ctx context.Context, guard *ProcessedSet, id content.Identity, op *content.OperationContext, opts content.IndexingOptions) error {
	if !guard.TryAdd(id) {
		slog.DebugContext(ctx, "already processed in this pass", slog.String("identity", id.Key()))
		return nil
	}
	if !s.policy.ShouldStartIndexing(opts) {
		return nil
	}

	excluded, err := s.policy.IsExcluded(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to check exclusion of %s: %w", id, err)
	}
	if excluded {
		return nil
	}

	if op != nil {
		if op.NeedUpdateChildren {
			node, err := s.repo.GetNode(ctx, id.Database, id.NodeID)
			if err != nil {
				return fmt.Errorf("failed to get node %s: %w", id.NodeID, err)
			}
			if node != nil {
				moved, err := s.movedOutOfScope(ctx, node, op.OldParentID)
				if err != nil {
					return err
				}
				if moved {
					slog.InfoContext(ctx, "item moved out of index root, deleting",
						slog.String("index", s.cfg.IndexName),
						slog.String("identity", id.Key()),
						slog.String("path", node.Path))
					return s.Delete(ctx, guard, id, opts)
				}
				return s.UpdateHierarchical(ctx, guard, node)
			}
		}

		if op.NeedUpdatePreviousVersion {
			v, err := s.getVersion(ctx, id)
			if err != nil {
				return err
			}
			if v != nil {
				if err := s.updatePreviousVersion(ctx, v); err != nil {
					return err
				}
			}
		}

		if op.NeedUpdateAllVersions {
			v, err := s.getVersion(ctx, id)
			if err != nil {
				return err
			}
			if v != nil {
				return s.doUpdate(ctx, guard, v, op)
			}
		}
	}

	v, err := s.ResolveIndexableAndCheckDeletes(ctx, id)
	if err != nil {
		return err
	}
	if v == nil {
		group := id.GroupID()
		deleteGroup, err := s.policy.GroupShouldBeDeleted(ctx, group)
		if err != nil {
			return fmt.Errorf("failed to check group %s: %w", group, err)
		}
		if deleteGroup {
			return s.DeleteGroup(ctx, group, opts)
		}
		return s.Delete(ctx, guard, id, opts)
	}

	return s.doUpdate(ctx, guard, v, op)
}

// movedOutOfScope reports whether the node's old parent was inside the
// index root while the node itself no longer is.
func (s *Synchronizer) movedOutOfScope(ctx context.Context, node *content.Node, oldParentID string) (bool, error) {
	if oldParentID == "" || node.IsAtOrBelow(s.cfg.RootPath) {
		return false, nil
	}
	return s.isRootOrDescendant(ctx, node.Database, oldParentID)
}

// isRootOrDescendant reports whether nodeID is the index root or lies below it.
func (s *Synchronizer) isRootOrDescendant(ctx context.Context, database, nodeID string) (bool, error) {
	if s.cfg.RootID != "" && nodeID == s.cfg.RootID {
		return true, nil
	}
	node, err := s.repo.GetNode(ctx, database, nodeID)
	if err != nil {
		return false, fmt.Errorf("failed to get node %s: %w", nodeID, err)
	}
	return node != nil && node.IsAtOrBelow(s.cfg.RootPath), nil
}

// updatePreviousVersion re-indexes the version immediately preceding v
// with IsLatestVersion demoted to false.
func (s *Synchronizer) updatePreviousVersion(ctx context.Context, v *content.Version) error {
	numbers, err := s.repo.GetVersionNumbers(ctx, v.Database, v.NodeID, v.Language, s.freshReadOpts())
	if err != nil {
		return fmt.Errorf("failed to get version numbers of %s: %w", v.Identity(), err)
	}

	idx := -1
	for i, n := range numbers {
		if n == v.Number {
			idx = i
			break
		}
	}
	if idx < 1 {
		return nil
	}

	prev, err := s.getVersion(ctx, v.Identity().WithVersion(content.Specific(numbers[idx-1])))
	if err != nil {
		return err
	}
	if prev == nil {
		return nil
	}

	doc := s.projectVersion(prev, false)
	if err := s.store.WriteDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to write previous version %s: %w", doc.ID, err)
	}
	slog.DebugContext(ctx, "demoted previous version", slog.String("document", doc.ID))
	return nil
}

// UpdateHierarchical re-indexes node and all of its descendants, depth
// first. Cancellation of ctx is checked at every node boundary and aborts
// the walk with the context error.
func (s *Synchronizer) UpdateHierarchical(ctx context.Context, guard *ProcessedSet, node *content.Node) error {
	return s.walk(ctx, guard, node, true)
}

func (s *Synchronizer) walk(ctx context.Context, guard *ProcessedSet, node *content.Node, top bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.updateNode(ctx, guard, node, top); err != nil {
		return err
	}

	children, err := s.repo.GetChildren(ctx, node.Database, node.ID)
	if err != nil {
		return fmt.Errorf("failed to get children of %s: %w", node.Path, err)
	}
	for _, child := range children {
		if err := s.walk(ctx, guard, child, false); err != nil {
			return err
		}
	}
	return nil
}

// updateNode runs a full (all languages, all versions) update of one node
// of a hierarchical walk. Descendants already processed in this pass are
// skipped; the top node was admitted by Update itself.
func (s *Synchronizer) updateNode(ctx context.Context, guard *ProcessedSet, node *content.Node, top bool) error {
	languages := node.Languages
	if len(languages) == 0 {
		all, err := s.repo.GetLanguages(ctx, node.Database)
		if err != nil {
			return fmt.Errorf("failed to get languages of %s: %w", node.Database, err)
		}
		languages = all
	}

	for _, lang := range languages {
		id := content.Identity{Database: node.Database, NodeID: node.ID, Language: lang, Version: content.Latest()}
		v, err := s.getVersion(ctx, id)
		if err != nil {
			return err
		}
		if v == nil {
			continue
		}
		if !guard.TryAdd(id) && !top {
			return nil
		}
		return s.doUpdate(ctx, guard, v, nil)
	}

	slog.DebugContext(ctx, "no indexable version for node", slog.String("path", node.Path))
	return nil
}
