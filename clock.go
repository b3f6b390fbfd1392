package canopy

import (
	"sync"
	"time"
)

// TickFunc receives the clock timestamp of one frame.
type TickFunc func(ts time.Duration)

// Clock delivers per-frame callbacks.
type Clock interface {
	Register(fn TickFunc) Registration
}

// Registration cancels a Clock registration. Unregister is idempotent and
// may be called from inside a callback.
type Registration interface {
	Unregister()
}

// FrameClock is a Clock driven by explicit Tick calls, typically once per
// Game.Update. Callbacks run in registration order.
type FrameClock struct {
	mu      sync.Mutex
	entries []*clockEntry
	now     time.Duration
}

type clockEntry struct {
	fn     TickFunc
	clock  *FrameClock
	active bool
}

// NewFrameClock returns a clock with no registrations.
func NewFrameClock() *FrameClock {
	return &FrameClock{}
}

// Register adds fn and returns its registration.
func (c *FrameClock) Register(fn TickFunc) Registration {
	e := &clockEntry{fn: fn, clock: c, active: true}
	c.mu.Lock()
	c.entries = append(c.entries, e)
	c.mu.Unlock()
	return e
}

// Unregister removes the callback. Safe to call more than once.
func (e *clockEntry) Unregister() {
	c := e.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	if !e.active {
		return
	}
	e.active = false
	for i, other := range c.entries {
		if other == e {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			break
		}
	}
}

// Tick invokes every active callback with ts. Callbacks unregistered by an
// earlier callback in the same tick are not invoked.
func (c *FrameClock) Tick(ts time.Duration) {
	c.mu.Lock()
	c.now = ts
	snapshot := append([]*clockEntry(nil), c.entries...)
	c.mu.Unlock()
	for _, e := range snapshot {
		c.mu.Lock()
		active := e.active
		c.mu.Unlock()
		if active {
			e.fn(ts)
		}
	}
}

// Now returns the timestamp of the last Tick.
func (c *FrameClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Len returns the number of active registrations.
func (c *FrameClock) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
