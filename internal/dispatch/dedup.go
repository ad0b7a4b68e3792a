package dispatch

import (
	"sync"
	"time"
)

const dedupMaxEntries = 4096

// dedupCache is a bounded, time-windowed set of recently seen webhook event
// ids. The inbound platform delivers at least once; a hit here means the
// event was already processed and must be skipped before any side effect.
type dedupCache struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func newDedupCache(window time.Duration) *dedupCache {
	if window <= 0 {
		window = 10 * time.Minute
	}
	return &dedupCache{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

// Seen records the event id and reports whether it was already present
// within the window. Empty ids are never deduplicated.
func (c *dedupCache) Seen(eventID string) bool {
	if c == nil || eventID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if at, ok := c.seen[eventID]; ok && now.Sub(at) < c.window {
		return true
	}
	if len(c.seen) >= dedupMaxEntries {
		c.prune(now)
	}
	c.seen[eventID] = now
	return false
}

func (c *dedupCache) prune(now time.Time) {
	for id, at := range c.seen {
		if now.Sub(at) >= c.window {
			delete(c.seen, id)
		}
	}
	// Still full after pruning: drop arbitrary entries to stay bounded.
	for id := range c.seen {
		if len(c.seen) < dedupMaxEntries {
			break
		}
		delete(c.seen, id)
	}
}
