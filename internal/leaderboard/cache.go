package leaderboard

import (
	"sync"
	"time"

	"github.com/rickgao/polysquad/internal/model"
)

type cacheEntry struct {
	entries   []model.LeaderboardEntry
	expiresAt time.Time
}

// cache is a TTL map of computed leaderboards keyed by squad id.
type cache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[int64]cacheEntry
	now     func() time.Time
}

func newCache(ttl time.Duration) *cache {
	return &cache{
		ttl:     ttl,
		entries: make(map[int64]cacheEntry),
		now:     time.Now,
	}
}

func (c *cache) get(squadID int64) ([]model.LeaderboardEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[squadID]
	if !ok || c.now().After(e.expiresAt) {
		return nil, false
	}
	return e.entries, true
}

func (c *cache) set(squadID int64, entries []model.LeaderboardEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[squadID] = cacheEntry{
		entries:   entries,
		expiresAt: c.now().Add(c.ttl),
	}
}

// invalidate drops a squad's cached board, forcing the next read to
// recompute. Used when squad membership changes.
func (c *cache) invalidate(squadID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, squadID)
}
