package feed

import (
	"sync"

	"github.com/hazyhaar/spendlens/pkg/spend"
)

// Cache holds parsed tables keyed by resource path. It has no eviction: the
// only invalidation is a full Flush at the start of a refresh cycle, so
// within one cycle every consumer of a path sees the same table.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*spend.Table
}

func NewCache() *Cache {
	return &Cache{tables: make(map[string]*spend.Table)}
}

func (c *Cache) Get(path string) (*spend.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	table, ok := c.tables[path]
	return table, ok
}

func (c *Cache) Put(path string, table *spend.Table) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[path] = table
}

// Flush drops every cached table.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables = make(map[string]*spend.Table)
}

// Len returns the number of cached tables.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tables)
}
