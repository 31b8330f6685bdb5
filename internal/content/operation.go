package content

import "strings"

// OperationContext describes the scope of a single mutation event.
// It is request-scoped and never persisted.
type OperationContext struct {
	NeedUpdateAllVersions     bool
	NeedUpdateAllLanguages    bool
	NeedUpdateChildren        bool
	NeedUpdatePreviousVersion bool

	// OldParentID is the node's parent before a move, empty otherwise.
	OldParentID string
}

// NoFanOut is the context used to refresh a document without cascading
// into its versions, languages or children.
func NoFanOut() *OperationContext {
	return &OperationContext{}
}

// String lists the set flags, for logging.
func (o *OperationContext) String() string {
	if o == nil {
		return "default"
	}
	var flags []string
	if o.NeedUpdateAllVersions {
		flags = append(flags, "all-versions")
	}
	if o.NeedUpdateAllLanguages {
		flags = append(flags, "all-languages")
	}
	if o.NeedUpdateChildren {
		flags = append(flags, "children")
	}
	if o.NeedUpdatePreviousVersion {
		flags = append(flags, "previous-version")
	}
	if o.OldParentID != "" {
		flags = append(flags, "old-parent="+o.OldParentID)
	}
	if len(flags) == 0 {
		return "none"
	}
	return strings.Join(flags, ",")
}

// IndexingOptions modify whether indexing may start for an operation.
type IndexingOptions int

const (
	// IndexingDefault respects the administrative pause switch.
	IndexingDefault IndexingOptions = iota
	// IndexingForced runs even while indexing is paused.
	IndexingForced
)

// EventKind is the kind of mutation event.
type EventKind int

const (
	// EventUpdate requests an update of one identity.
	EventUpdate EventKind = iota
	// EventDelete requests removal of one identity.
	EventDelete
	// EventDeleteGroup requests removal of every document of a node.
	EventDeleteGroup
)

// String returns a human-readable kind.
func (k EventKind) String() string {
	switch k {
	case EventUpdate:
		return "UPDATE"
	case EventDelete:
		return "DELETE"
	case EventDeleteGroup:
		return "DELETE_GROUP"
	default:
		return "UNKNOWN"
	}
}

// MutationEvent is one external mutation notification. Each event starts a
// new synchronization pass.
type MutationEvent struct {
	Kind     EventKind
	Identity Identity
	Context  *OperationContext
	Options  IndexingOptions
}
