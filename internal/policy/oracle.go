// Package policy decides which content is excluded from an index and
// whether indexing may run at all.
package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Options configure an Oracle.
type Options struct {
	// ExcludePaths are gitignore-style patterns over content paths.
	ExcludePaths []string
	// ExcludeTemplates lists template IDs whose nodes are never indexed.
	ExcludeTemplates []string
	// Languages restricts indexing to these languages. Empty means all.
	Languages []string
	// Paused starts the oracle with indexing paused.
	Paused bool
}

// Oracle answers exclusion and scheduling questions for one index.
type Oracle struct {
	repo      content.Repository
	paths     *PathMatcher
	templates map[string]struct{}
	languages map[string]struct{}
	paused    atomic.Bool
}

// NewOracle creates an Oracle. Exclusion checks read nodes from repo.
func NewOracle(repo content.Repository, opts Options) (*Oracle, error) {
	paths, err := NewPathMatcher(opts.ExcludePaths...)
	if err != nil {
		return nil, err
	}

	o := &Oracle{
		repo:      repo,
		paths:     paths,
		templates: toSet(opts.ExcludeTemplates),
		languages: toSet(opts.Languages),
	}
	o.paused.Store(opts.Paused)
	return o, nil
}

// IsExcluded reports whether id must not be indexed. A node that no longer
// exists is not excluded; the caller detects and deletes it.
func (o *Oracle) IsExcluded(ctx context.Context, id content.Identity) (bool, error) {
	if len(o.languages) > 0 {
		if _, ok := o.languages[id.Language]; !ok {
			return true, nil
		}
	}

	node, err := o.repo.GetNode(ctx, id.Database, id.NodeID)
	if err != nil {
		return false, fmt.Errorf("failed to get node %s: %w", id.NodeID, err)
	}
	if node == nil {
		return false, nil
	}

	if _, ok := o.templates[node.TemplateID]; ok && node.TemplateID != "" {
		return true, nil
	}
	return o.paths.Match(node.Path), nil
}

// ShouldStartIndexing reports whether an operation may run. Forced
// operations run even while indexing is paused.
func (o *Oracle) ShouldStartIndexing(opts content.IndexingOptions) bool {
	if opts == content.IndexingForced {
		return true
	}
	return !o.paused.Load()
}

// GroupShouldBeDeleted reports whether every document of a node must go,
// which is the case once the node itself is gone from the repository.
func (o *Oracle) GroupShouldBeDeleted(ctx context.Context, group content.GroupID) (bool, error) {
	node, err := o.repo.GetNode(ctx, group.Database, group.NodeID)
	if err != nil {
		return false, fmt.Errorf("failed to get node %s: %w", group.NodeID, err)
	}
	return node == nil, nil
}

// Pause stops non-forced indexing.
func (o *Oracle) Pause() {
	if !o.paused.Swap(true) {
		slog.Info("indexing paused")
	}
}

// Resume re-enables indexing.
func (o *Oracle) Resume() {
	if o.paused.Swap(false) {
		slog.Info("indexing resumed")
	}
}

// Paused reports whether indexing is paused.
func (o *Oracle) Paused() bool {
	return o.paused.Load()
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
