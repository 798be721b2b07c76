package engine

import "sync/atomic"

// Clock is the monotonic logical clock that stamps accepted commands.
//
// Every command the Processor handles gets a strictly increasing seq. The
// seq keys the journal and derives outbox transfer ids, so it must never be
// taken from wall-clock time.
//
// Thread-safety: Clock is safe for concurrent use. In practice only the
// Processor's Run goroutine calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that continues after start.
// Used to resume numbering after the last journaled command.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
