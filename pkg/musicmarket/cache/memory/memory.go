package memory

import (
	"context"
	"sync"
	"time"

	"github.com/lamntk20699/nft-music-marketplace/pkg/musicmarket"
)

type entry struct {
	record  musicmarket.MetadataRecord
	expires time.Time
}

// Cache is an in-process musicmarket.MetadataCache
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	now     func() time.Time
}

// New creates an empty cache
func New() *Cache {
	return &Cache{entries: make(map[string]entry), now: time.Now}
}

var _ musicmarket.MetadataCache = (*Cache)(nil)

func (c *Cache) Get(ctx context.Context, uri string) (*musicmarket.MetadataRecord, bool, error) {
	c.mu.RLock()
	e, ok := c.entries[uri]
	c.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}

	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, uri)
		c.mu.Unlock()
		return nil, false, nil
	}

	rec := e.record
	return &rec, true, nil
}

// Set stores record; a zero ttl keeps it until the process exits
func (c *Cache) Set(ctx context.Context, uri string, record *musicmarket.MetadataRecord, ttl time.Duration) error {
	if record == nil {
		return nil
	}

	e := entry{record: *record}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}

	c.mu.Lock()
	c.entries[uri] = e
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached entries, expired ones included
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
