package common

import "sync"

// Clock supplies the block timestamp, in unix seconds, seen by the engines.
type Clock interface {
	Now() uint64
}

// ManualClock is a Clock advanced explicitly by the host. The devnet node and
// the test suites drive time through it.
type ManualClock struct {
	mu  sync.RWMutex
	now uint64
}

// NewManualClock starts the clock at the supplied timestamp.
func NewManualClock(start uint64) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current timestamp.
func (c *ManualClock) Now() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Set moves the clock to ts. Time never goes backwards.
func (c *ManualClock) Set(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ts > c.now {
		c.now = ts
	}
}

// Advance moves the clock forward by seconds and returns the new timestamp.
func (c *ManualClock) Advance(seconds uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now += seconds
	return c.now
}

// Restore moves the clock back to ts. Hosts call it when the transaction that
// advanced the clock is rolled back.
func (c *ManualClock) Restore(ts uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = ts
}
