// Package cache implements the CTag-keyed collection cache shared by the
// calendar and address-book services. Each service owns one instance; the
// policy is identical regardless of whether the stored objects are
// calendar events or vCards.
package cache

import (
	"sync"
	"time"
)

// Entry is the cached state of a single collection.
type Entry[T any] struct {
	CTag        string
	Objects     []T
	LastFetched time.Time
}

// Cache maps a collection URL to its cached CTag and object list. All
// methods are safe for concurrent use; the collection cache is shared
// mutable state per §5 of the design.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]Entry[T]
}

func New[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]Entry[T])}
}

// Get returns the cached entry for url, if any.
func (c *Cache[T]) Get(url string) (Entry[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	return e, ok
}

// Set stores (or replaces) the entry for url.
func (c *Cache[T]) Set(url, ctag string, objects []T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = Entry[T]{CTag: ctag, Objects: objects, LastFetched: time.Now()}
}

// IsFresh reports whether a cached entry exists for url and its CTag
// matches currentCTag. An empty currentCTag or a missing entry is always
// stale: the spec treats a collection with no server-advertised CTag as
// permanently uncached.
func (c *Cache[T]) IsFresh(url, currentCTag string) bool {
	if currentCTag == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok {
		return false
	}
	return e.CTag == currentCTag
}

// Invalidate unconditionally discards the entry for url. Called after
// every successful mutation on that collection.
func (c *Cache[T]) Invalidate(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, url)
}

// Clear discards every cached entry; used after a refresh/rediscovery
// since collection URLs may have changed.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]Entry[T])
}

// Size reports the number of cached collections.
func (c *Cache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
