package crawler

import (
	"sync"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// ProcessedSet is the cycle guard of one synchronization pass. An identity
// is admitted at most once per pass. A ProcessedSet must not be shared
// between concurrent passes.
type ProcessedSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewProcessedSet creates an empty guard for a new pass.
func NewProcessedSet() *ProcessedSet {
	return &ProcessedSet{seen: make(map[string]struct{})}
}

// TryAdd atomically checks and records id. It returns false if id was
// already processed in this pass.
func (p *ProcessedSet) TryAdd(id content.Identity) bool {
	key := id.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.seen[key]; ok {
		return false
	}
	p.seen[key] = struct{}{}
	return true
}

// Contains reports whether id was already processed in this pass.
func (p *ProcessedSet) Contains(id content.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.seen[id.Key()]
	return ok
}

// Len returns the number of processed identities.
func (p *ProcessedSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}
