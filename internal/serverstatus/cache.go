// Package serverstatus keeps the last observed game-server status. The
// status poll writes it; the HTTP API reads it. It is a cache of external
// state, authoritative only for one poll interval.
package serverstatus

import (
	"sync"
	"time"

	"launcherd/pkg/types"
)

// Cache holds the most recent ping result.
type Cache struct {
	mu sync.RWMutex
	st types.ServerStatus
	at time.Time
	ok bool
}

func New() *Cache { return &Cache{} }

// Set records a fresh status.
func (c *Cache) Set(st types.ServerStatus) {
	c.mu.Lock()
	c.st = st
	c.at = time.Now()
	c.ok = true
	c.mu.Unlock()
}

// Last returns the most recent status and whether one has been observed.
func (c *Cache) Last() (types.ServerStatus, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st, c.ok
}

// Age reports how old the cached status is.
func (c *Cache) Age() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.ok {
		return 0
	}
	return time.Since(c.at)
}
