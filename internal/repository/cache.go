package repository

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Aman-CERP/contentsync/internal/content"
)

// DefaultCacheSize is the default number of cached version reads.
const DefaultCacheSize = 4096

// CacheStats are the hit and miss counters of a Cached repository.
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Len    int
}

// Cached wraps a Repository with an LRU cache of version reads. Whether a
// read may use the cache is decided per call by ReadOptions.Consistency.
// Cached values are shared and must be treated as read-only.
type Cached struct {
	inner  content.Repository
	cache  *lru.Cache[string, any]
	hits   atomic.Uint64
	misses atomic.Uint64
}

var _ content.Repository = (*Cached)(nil)

// NewCached creates a cached repository. A non-positive size selects
// DefaultCacheSize.
func NewCached(inner content.Repository, size int) *Cached {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, _ := lru.New[string, any](size)
	return &Cached{inner: inner, cache: cache}
}

// Purge drops every cached read.
func (c *Cached) Purge() {
	c.cache.Purge()
}

// PurgeNode drops every cached read of one node.
func (c *Cached) PurgeNode(database, nodeID string) {
	prefix := nodePrefix(database, nodeID)
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.cache.Remove(key)
		}
	}
}

// Stats returns the cache counters.
func (c *Cached) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Len:    c.cache.Len(),
	}
}

// GetVersion implements content.Repository.
func (c *Cached) GetVersion(ctx context.Context, id content.Identity, opts content.ReadOptions) (*content.Version, error) {
	key := cacheKey(id.Database, id.NodeID, "version", id.Language, id.Version.String(), opts)
	if v, ok := c.lookup(key, opts); ok {
		return v.(*content.Version), nil
	}

	v, err := c.inner.GetVersion(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	if v != nil {
		c.store(key, v, opts)
	}
	return v, nil
}

// GetVersionNumbers implements content.Repository.
func (c *Cached) GetVersionNumbers(ctx context.Context, database, nodeID, language string, opts content.ReadOptions) ([]int, error) {
	key := cacheKey(database, nodeID, "numbers", language, "", opts)
	if v, ok := c.lookup(key, opts); ok {
		return v.([]int), nil
	}

	numbers, err := c.inner.GetVersionNumbers(ctx, database, nodeID, language, opts)
	if err != nil {
		return nil, err
	}
	if len(numbers) > 0 {
		c.store(key, numbers, opts)
	}
	return numbers, nil
}

// GetVersions implements content.Repository.
func (c *Cached) GetVersions(ctx context.Context, database, nodeID, language string, opts content.ReadOptions) ([]*content.Version, error) {
	key := cacheKey(database, nodeID, "versions", language, "", opts)
	if v, ok := c.lookup(key, opts); ok {
		return v.([]*content.Version), nil
	}

	versions, err := c.inner.GetVersions(ctx, database, nodeID, language, opts)
	if err != nil {
		return nil, err
	}
	if len(versions) > 0 {
		c.store(key, versions, opts)
	}
	return versions, nil
}

// GetNode implements content.Repository. Structural reads are not cached.
func (c *Cached) GetNode(ctx context.Context, database, nodeID string) (*content.Node, error) {
	return c.inner.GetNode(ctx, database, nodeID)
}

// GetLanguages implements content.Repository.
func (c *Cached) GetLanguages(ctx context.Context, database string) ([]string, error) {
	return c.inner.GetLanguages(ctx, database)
}

// GetChildren implements content.Repository.
func (c *Cached) GetChildren(ctx context.Context, database, nodeID string) ([]*content.Node, error) {
	return c.inner.GetChildren(ctx, database, nodeID)
}

// GetDependents implements content.Repository.
func (c *Cached) GetDependents(ctx context.Context, id content.Identity) ([]content.Identity, error) {
	return c.inner.GetDependents(ctx, id)
}

// GetDependentsOnDelete implements content.Repository.
func (c *Cached) GetDependentsOnDelete(ctx context.Context, id content.Identity) ([]content.Identity, error) {
	return c.inner.GetDependentsOnDelete(ctx, id)
}

// GetLanguagesSharingFallback implements content.Repository.
func (c *Cached) GetLanguagesSharingFallback(ctx context.Context, language, database, nodeID string) ([]string, error) {
	return c.inner.GetLanguagesSharingFallback(ctx, language, database, nodeID)
}

func (c *Cached) lookup(key string, opts content.ReadOptions) (any, bool) {
	if opts.Consistency == content.ConsistencyBypassAllCaches {
		return nil, false
	}
	v, ok := c.cache.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// store populates the cache unless the read bypasses cache writes.
// An empty consistency behaves like ConsistencyCached.
func (c *Cached) store(key string, v any, opts content.ReadOptions) {
	switch opts.Consistency {
	case content.ConsistencyBypassWriteCache, content.ConsistencyBypassAllCaches:
		return
	}
	c.cache.Add(key, v)
}

func nodePrefix(database, nodeID string) string {
	return database + "\x00" + nodeID + "\x00"
}

func cacheKey(database, nodeID, kind, language, selector string, opts content.ReadOptions) string {
	var b strings.Builder
	b.WriteString(nodePrefix(database, nodeID))
	b.WriteString(kind)
	b.WriteByte(0)
	b.WriteString(language)
	b.WriteByte(0)
	b.WriteString(selector)
	b.WriteByte(0)
	b.WriteString(strconv.FormatBool(opts.ItemFallback))
	b.WriteByte(0)
	b.WriteString(strconv.FormatBool(opts.FieldFallback))
	return b.String()
}
