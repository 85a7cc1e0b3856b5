package catalog

import (
	"context"
	"errors"
	"sync"
)

type cacheEntry struct {
	pkg *Package
	err error
}

// Cache memoizes a Source. Misses (ErrNotFound) are cached too, so a
// module that no source knows is only looked up once.
type Cache struct {
	src     Source
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache wraps src.
func NewCache(src Source) *Cache {
	return &Cache{src: src, entries: make(map[string]cacheEntry)}
}

// Load implements Source.
func (c *Cache) Load(ctx context.Context, module, version string) (*Package, error) {
	key := moduleKey(module, version)

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return e.pkg, e.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		return e.pkg, e.err
	}
	pkg, err := c.src.Load(ctx, module, version)
	if err == nil || errors.Is(err, ErrNotFound) {
		c.entries[key] = cacheEntry{pkg: pkg, err: err}
	}
	return pkg, err
}

// Len reports the number of cached lookups.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Resolver binds a Source to a context and a pinned version per module.
// It satisfies the checker's library lookup.
type Resolver struct {
	ctx      context.Context
	src      Source
	versions map[string]string
}

// NewResolver returns a Resolver. versions maps module paths to pinned
// versions; unpinned modules resolve to the newest version.
func NewResolver(ctx context.Context, src Source, versions map[string]string) *Resolver {
	return &Resolver{ctx: ctx, src: src, versions: versions}
}

// Lookup loads the document for module.
func (r *Resolver) Lookup(module string) (*Package, error) {
	return r.src.Load(r.ctx, module, r.versions[module])
}
