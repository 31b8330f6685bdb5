package content

import (
	"context"
	"fmt"
)

// ReadConsistency selects which repository caches a read may use.
type ReadConsistency string

const (
	// ConsistencyCached reads through the cache and populates it on a miss.
	ConsistencyCached ReadConsistency = "cached"
	// ConsistencyBypassWriteCache serves cache hits but never populates the cache.
	ConsistencyBypassWriteCache ReadConsistency = "bypass_write_cache"
	// ConsistencyBypassAllCaches always reads the underlying repository.
	ConsistencyBypassAllCaches ReadConsistency = "bypass_all_caches"
)

// ParseReadConsistency validates a configured consistency name.
// An empty string selects ConsistencyBypassWriteCache.
func ParseReadConsistency(s string) (ReadConsistency, error) {
	switch ReadConsistency(s) {
	case "":
		return ConsistencyBypassWriteCache, nil
	case ConsistencyCached, ConsistencyBypassWriteCache, ConsistencyBypassAllCaches:
		return ReadConsistency(s), nil
	default:
		return "", fmt.Errorf("unknown read consistency %q (valid: cached, bypass_write_cache, bypass_all_caches)", s)
	}
}

// ReadOptions are passed explicitly on every read instead of living in
// ambient state, so one pass never changes what another pass sees.
type ReadOptions struct {
	// ItemFallback lets the repository synthesize a version for a language
	// that has none by borrowing content from its fallback language.
	ItemFallback bool
	// FieldFallback lets empty shared fields of real versions be filled from
	// the fallback language.
	FieldFallback bool
	// Consistency governs cache use for this read.
	Consistency ReadConsistency
}

// Repository is the read-only view of the content repository.
// Absence is reported as a nil result with a nil error; errors are reserved
// for real failures (I/O, permission) and are propagated unmasked.
type Repository interface {
	// GetNode returns the node or nil.
	GetNode(ctx context.Context, database, nodeID string) (*Node, error)

	// GetLanguages returns every language defined in the database, including
	// languages a node may only reach through fallback.
	GetLanguages(ctx context.Context, database string) ([]string, error)

	// GetVersion resolves an identity to a version or nil.
	GetVersion(ctx context.Context, id Identity, opts ReadOptions) (*Version, error)

	// GetVersionNumbers returns the ascending version numbers of a language variant.
	GetVersionNumbers(ctx context.Context, database, nodeID, language string, opts ReadOptions) ([]int, error)

	// GetVersions returns every stored version of a language variant, oldest first.
	GetVersions(ctx context.Context, database, nodeID, language string, opts ReadOptions) ([]*Version, error)

	// GetChildren returns the direct children of a node.
	GetChildren(ctx context.Context, database, nodeID string) ([]*Node, error)

	// GetDependents returns identities whose index documents must be refreshed
	// when id changes.
	GetDependents(ctx context.Context, id Identity) ([]Identity, error)

	// GetDependentsOnDelete returns identities whose index documents must be
	// refreshed when id is removed.
	GetDependentsOnDelete(ctx context.Context, id Identity) ([]Identity, error)

	// GetLanguagesSharingFallback returns the languages configured to fall
	// back (directly or transitively) to language for the given node.
	GetLanguagesSharingFallback(ctx context.Context, language, database, nodeID string) ([]string, error)
}
