package database

import (
	"sync"
	"time"
)

// MonotonicClock hands out strictly increasing millisecond timestamps,
// so rows written in the same millisecond still sort in write order.
type MonotonicClock struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewMonotonicClock wraps now, or time.Now when nil
func NewMonotonicClock(now func() time.Time) *MonotonicClock {
	if now == nil {
		now = time.Now
	}
	return &MonotonicClock{now: now}
}

// NowMillis returns the current time in ms, at least one more than the previous call
func (c *MonotonicClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.now().UnixMilli()
	if t <= c.last {
		t = c.last + 1
	}
	c.last = t
	return t
}
