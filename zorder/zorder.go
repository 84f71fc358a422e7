// Package zorder issues stacking values for cards on the wall.
package zorder

import "sync"

// BaseZ is the floor for issued stacking values. Page chrome is layered at or
// below it, so every card issued by a Counter draws above the chrome.
const BaseZ int64 = 100

// Counter is the session-wide stacking counter. Values it hands out strictly
// increase for the life of the process and are never reused. The counter itself
// is not persisted; it is re-derived from the stored stack orders on load.
type Counter struct {
	mu      sync.Mutex
	current int64
}

// New returns a counter positioned just above BaseZ.
func New() *Counter {
	return &Counter{current: BaseZ + 1}
}

// Seed positions the counter at max(orders ∪ {BaseZ}) + 1. A seed that would
// move the counter backwards is ignored.
func (c *Counter) Seed(orders []int64) {
	top := BaseZ
	for _, o := range orders {
		if o > top {
			top = o
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if top+1 > c.current {
		c.current = top + 1
	}
}

// Next increments the counter and returns the new value.
func (c *Counter) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current++
	return c.current
}

// Peek returns the most recent value without advancing.
func (c *Counter) Peek() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}
