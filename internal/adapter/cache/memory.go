package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eurofx-service/internal/domain/model"
	"eurofx-service/pkg/logger"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

type entry struct {
	table     *model.CsvTable
	createdAt time.Time
	expiresAt time.Time
}

// MemoryCache keeps the most recent table per endpoint. It evicts the least
// recently used entry once capacity is exceeded and treats entries older than
// the TTL as absent.
type MemoryCache struct {
	mutex    sync.Mutex
	lru      *simplelru.LRU[string, entry]
	cacheTTL time.Duration
	clock    Clock
	log      *logger.Logger
}

func NewMemoryCache(capacity int, cacheTTL time.Duration, clock Clock, log *logger.Logger) (*MemoryCache, error) {
	if cacheTTL <= 0 {
		return nil, fmt.Errorf("cache TTL must be positive, got %s", cacheTTL)
	}
	if clock == nil {
		clock = SystemClock
	}

	c := &MemoryCache{
		cacheTTL: cacheTTL,
		clock:    clock,
		log:      log,
	}

	lru, err := simplelru.NewLRU[string, entry](capacity, func(key string, _ entry) {
		c.log.Debug("Cache entry evicted", "key", key)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	c.lru = lru
	return c, nil
}

// Get returns the live table for key and marks it most recently used.
func (c *MemoryCache) Get(ctx context.Context, key string) (*model.CsvTable, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, found := c.lru.Get(key)
	if !found {
		c.log.Debug("Cache miss", "key", key)
		return nil, false
	}

	if !c.clock.Now().Before(e.expiresAt) {
		c.lru.Remove(key)
		c.log.Debug("Cache entry expired", "key", key, "age", c.clock.Now().Sub(e.createdAt))
		return nil, false
	}

	c.log.Debug("Cache hit", "key", key)
	return e.table, true
}

// Set replaces any entry for key and restarts its TTL.
func (c *MemoryCache) Set(ctx context.Context, key string, table *model.CsvTable) error {
	if table == nil {
		return fmt.Errorf("refusing to cache nil table for %s", key)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	c.lru.Add(key, entry{
		table:     table,
		createdAt: now,
		expiresAt: now.Add(c.cacheTTL),
	})
	c.log.Debug("Cache set", "key", key, "rows", len(table.Rows))

	return nil
}

func (c *MemoryCache) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.lru.Len()
}

// Purge drops every entry.
func (c *MemoryCache) Purge() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.lru.Purge()
}

// ClearExpired removes all entries past their TTL and reports how many went.
func (c *MemoryCache) ClearExpired(ctx context.Context) int {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := c.clock.Now()
	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && !now.Before(e.expiresAt) {
			c.lru.Remove(key)
			removed++
		}
	}

	if removed > 0 {
		c.log.Info("Cleared expired cache entries", "count", removed)
	}
	return removed
}
