package engine

import (
	"sync/atomic"
	"time"
)

// Clock stamps transactions. Next orders them; Now provides the
// timestamps written into transactions and events.
//
// Implemented by LogicalClock (production) and testutil.DeterministicClock
// (tests).
type Clock interface {
	Next() int64
	Now() time.Time
}

// LogicalClock is a monotonic logical clock paired with wall time.
//
// Every submitted transaction takes a strictly increasing seq number from
// the clock, so submissions are totally ordered regardless of wall-clock
// skew.
//
// Thread-safety: LogicalClock is safe for concurrent use (atomic operations).
// However, the Engine's single-writer design means only one goroutine
// calls Next() at a time.
type LogicalClock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *LogicalClock {
	return &LogicalClock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used to resume numbering against an existing store.
func NewClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}

// Now returns the wall time in UTC.
func (c *LogicalClock) Now() time.Time {
	return time.Now().UTC()
}
