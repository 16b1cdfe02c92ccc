package engine

import "sync/atomic"

// Clock is the monotonic logical clock that assigns seq values during
// recording. All interaction records are stamped from one shared clock,
// which makes the trace's global order explicit and independent of wall
// time.
//
// Thread-safety: safe for concurrent use (atomic operations).
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0; the first Next returns 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and advances the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the latest assigned sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
