package proxy

import (
	"sync"
	"time"

	"github.com/tailored-agentic-units/toolbridge/core/protocol"
)

// toolCache holds the last tool catalog fetched from the bridge so repeated
// tools/list requests inside the TTL do not round-trip. Safe for concurrent
// use.
type toolCache struct {
	mu        sync.Mutex
	tools     []protocol.Tool
	fetchedAt time.Time
	ttl       time.Duration
}

func newToolCache(ttl time.Duration) *toolCache {
	return &toolCache{ttl: ttl}
}

// get returns the cached catalog, or false if nothing has been cached or
// the entry has expired.
func (c *toolCache) get() ([]protocol.Tool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fetchedAt.IsZero() || time.Since(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return c.tools, true
}

func (c *toolCache) set(tools []protocol.Tool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tools = tools
	c.fetchedAt = time.Now()
}
