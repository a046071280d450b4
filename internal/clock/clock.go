// Package clock provides the process-wide coarse time source used
// throughout veloxd. Every expiration decision is expressed in seconds
// relative to the clock's start, never in wall-clock time, so that a
// single atomic read is enough on the hot path.
package clock

import (
	"sync/atomic"
	"time"
)

// ThirtyDays is the cutoff spec.md uses to distinguish a relative
// expiration delta from an absolute Unix timestamp.
const ThirtyDays = 30 * 24 * 3600

// Clock tracks seconds elapsed since it was started. Reads never block;
// a single background goroutine advances the counter once a second.
type Clock struct {
	started int64 // wall-clock unix seconds of the time passed to New
	now     atomic.Int32
	stop    chan struct{}
}

// New creates a Clock anchored at the given wall-clock time. Tests pass a
// fixed time; production passes time.Now().
func New(start time.Time) *Clock {
	return &Clock{started: start.Unix(), stop: make(chan struct{})}
}

// Run advances the clock once a second until Stop is called. Intended to
// run in its own goroutine for the lifetime of the process.
func (c *Clock) Run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Tick()
		case <-c.stop:
			return
		}
	}
}

// Tick advances the clock by one on-demand tick. Exposed so callers that
// don't want the 1Hz goroutine (tests, or platforms without cheap timers
// per spec.md's "batch the update to timer wake-ups only") can drive it
// explicitly.
func (c *Clock) Tick() {
	c.now.Add(1)
}

// Stop halts the background ticker goroutine started by Run.
func (c *Clock) Stop() {
	close(c.stop)
}

// Now returns seconds elapsed since the clock was created.
func (c *Clock) Now() int32 {
	return c.now.Load()
}

// Realtime converts a client-supplied expiration value into a relative
// "seconds since start" value, per spec.md 4.A:
//
//	0                    -> never expires (0)
//	1..ThirtyDays         -> delta from now
//	> ThirtyDays          -> absolute Unix time, converted to relative;
//	                         a past absolute time becomes 1, never "never"
func (c *Clock) Realtime(exptime int64) int32 {
	if exptime == 0 {
		return 0
	}
	if exptime <= ThirtyDays {
		return c.Now() + int32(exptime)
	}
	relative := exptime - c.started
	if relative <= 0 {
		return 1
	}
	return int32(relative)
}
