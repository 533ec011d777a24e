package docstore

import (
	"sync"
	"time"
)

// Clock hands out strictly increasing UTC timestamps at a fixed resolution,
// matching what the backing database can store without rounding.
type Clock struct {
	mu   sync.Mutex
	last time.Time
	res  time.Duration
	now  func() time.Time
}

// NewClock returns a clock with the given resolution.
func NewClock(resolution time.Duration) *Clock {
	return &Clock{res: resolution, now: time.Now}
}

// Now returns the next timestamp.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(c.res)
	if !t.After(c.last) {
		t = c.last.Add(c.res)
	}
	c.last = t
	return t
}
