package storage

import (
	"time"

	"github.com/deepthoughtslab/deepthoughts/internal/thoughts"
)

// readCache holds the last deserialized collection together with its load
// time. Freshness is judged against an injected clock so cache behavior stays
// deterministic under test.
type readCache struct {
	clock func() time.Time
	ttl   time.Duration

	entries  []thoughts.Thought
	loadedAt time.Time
	valid    bool
}

func newReadCache(clock func() time.Time, ttl time.Duration) *readCache {
	return &readCache{clock: clock, ttl: ttl}
}

// get returns a copy of the cached collection while it is still fresh.
func (c *readCache) get() ([]thoughts.Thought, bool) {
	if !c.valid {
		return nil, false
	}
	if c.clock().Sub(c.loadedAt) > c.ttl {
		c.valid = false
		c.entries = nil
		return nil, false
	}
	return cloneCollection(c.entries), true
}

// put replaces the cached collection and restarts the freshness window.
func (c *readCache) put(entries []thoughts.Thought) {
	c.entries = cloneCollection(entries)
	c.loadedAt = c.clock()
	c.valid = true
}

func (c *readCache) invalidate() {
	c.entries = nil
	c.valid = false
}

func cloneCollection(entries []thoughts.Thought) []thoughts.Thought {
	cloned := make([]thoughts.Thought, len(entries))
	for i, entry := range entries {
		cloned[i] = entry.Clone()
	}
	return cloned
}
