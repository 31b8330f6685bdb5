// Package crawler keeps a search index consistent with the content
// repository. It reacts to point mutation events and decides which index
// documents to create, update or remove, including synthesized fallback
// documents for languages that borrow content from another language.
package crawler

import (
	"context"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// Lifecycle event names raised to the EventSink.
const (
	EventDeleteItem       = "indexing:deleteitem"
	EventUpdatingItem     = "indexing:updatingitem"
	EventUpdatedItem      = "indexing:updateditem"
	EventUpdateDependents = "indexing:updatedependents"
)

// Event is a fire-and-forget lifecycle notification.
type Event struct {
	Name     string
	Index    string
	Key      string // identity or group key
	Database string
	NodeID   string
	Path     string
}

// EventSink receives lifecycle notifications. Implementations must not block
// the pass for long and cannot influence control flow.
type EventSink interface {
	Raise(ctx context.Context, e Event)
}

// IndexStore is the physical index. Each call is its own atomic unit.
type IndexStore interface {
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
}

// PolicyOracle answers exclusion and scheduling questions.
type PolicyOracle interface {
	IsExcluded(ctx context.Context, id content.Identity) (bool, error)
	ShouldStartIndexing(opts content.IndexingOptions) bool
	GroupShouldBeDeleted(ctx context.Context, group content.GroupID) (bool, error)
}

// Config is the index-level configuration of a Synchronizer.
type Config struct {
	// IndexName is carried on every lifecycle event.
	IndexName string

	// Database is the repository database this index is built from.
	Database string

	// RootPath is the content path of the index root, e.g. /content/home.
	RootPath string

	// RootID is the node ID of the index root (optional, speeds up scope checks).
	RootID string

	EnableItemLanguageFallback  bool
	EnableFieldLanguageFallback bool
	ProcessDependencies         bool

	// Formatter names the field storage formatter stamped on each document.
	Formatter string

	// ReadConsistency governs cache use for version-list reads made while
	// resolving versions.
	ReadConsistency content.ReadConsistency
}

// DefaultFormatter is stamped on documents when no formatter is configured.
const DefaultFormatter = "default"
