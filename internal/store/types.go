// Package store implements the physical search index the synchronizer
// writes to. Two backends are available: SQLite (default, WAL mode, safe
// for concurrent readers from other processes) and Bleve.
package store

import (
	"context"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Store is a document index. Every method is its own atomic unit.
type Store interface {
	// WriteDocument inserts or replaces the document with the same ID.
	WriteDocument(ctx context.Context, doc *content.Document) error

	// DeleteDocument removes the document for id. A latest selector removes
	// every version of that language variant.
	DeleteDocument(ctx context.Context, id content.Identity) error

	// DeleteGroup removes every document of a node.
	DeleteGroup(ctx context.Context, group content.GroupID) error

	// DeleteFallbacks removes the synthesized fallback documents of id's
	// language variant. A specific version selector keeps that version.
	DeleteFallbacks(ctx context.Context, id content.Identity) error

	// Get returns the document with the given ID, or nil.
	Get(ctx context.Context, docID string) (*content.Document, error)

	// List returns the documents matching filter, ordered by ID.
	List(ctx context.Context, filter Filter) ([]*content.Document, error)

	// Stats summarizes the index contents.
	Stats(ctx context.Context) (*Stats, error)

	// Clear removes every document.
	Clear(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// Filter narrows List. Empty fields match everything.
type Filter struct {
	GroupID  string
	Language string
	// LatestOnly keeps only documents flagged as the latest version.
	LatestOnly bool
	// FallbackOnly keeps only synthesized fallback documents.
	FallbackOnly bool
}

// Stats summarizes an index.
type Stats struct {
	Backend     Backend        `json:"backend"`
	Path        string         `json:"path,omitempty"`
	Documents   int            `json:"documents"`
	Groups      int            `json:"groups"`
	Latest      int            `json:"latest"`
	Fallback    int            `json:"fallback"`
	ByLanguage  map[string]int `json:"by_language"`
	SizeOnDisk  int64          `json:"size_on_disk,omitempty"`
}

// summarize builds Stats from a full document listing.
func summarize(backend Backend, path string, docs []*content.Document) *Stats {
	s := &Stats{
		Backend:    backend,
		Path:       path,
		Documents:  len(docs),
		ByLanguage: make(map[string]int),
	}
	groups := make(map[string]struct{})
	for _, d := range docs {
		groups[d.GroupID] = struct{}{}
		s.ByLanguage[d.Language]++
		if d.IsLatestVersion {
			s.Latest++
		}
		if d.IsFallback {
			s.Fallback++
		}
	}
	s.Groups = len(groups)
	return s
}
