// Package deferred implements the deferred-delete queue from spec.md 4.H:
// a dynamic array of pending entries, ticked every 5 seconds, compacting
// in place. Grounded on the teacher's wal package for the "single
// background goroutine owns a slice, ticks on a timer" shape, generalized
// from a write-ahead log to a delete-grace queue.
package deferred

import (
	"errors"
	"sync"
	"time"

	"veloxd/internal/store"
)

// ErrQueueFull is returned when Enqueue would grow the pending slice past
// maxPending — the Go analogue of the original's allocation-failure path,
// since append itself cannot fail here; callers surface this as
// "SERVER_ERROR out of memory".
var ErrQueueFull = errors.New("deferred: queue at capacity")

type entry struct {
	key      string
	ref      store.ItemRef
	deadline int32
}

// Queue holds keys marked for deletion until their grace period elapses,
// then unlinks them from the owning store shard.
type Queue struct {
	mu         sync.Mutex
	pending    []entry
	maxPending int

	st    store.Store
	clock interface{ Now() int32 }

	tick     time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a queue backed by st, ticking every interval (5s in
// production, shorter in tests per spec.md 4.H's "configurable for
// tests").
func New(st store.Store, clock interface{ Now() int32 }, interval time.Duration, maxPending int) *Queue {
	return &Queue{
		st:         st,
		clock:      clock,
		tick:       interval,
		maxPending: maxPending,
		stop:       make(chan struct{}),
	}
}

// Enqueue records key+ref to be swept once the clock reaches deadline.
func (q *Queue) Enqueue(key string, ref store.ItemRef, deadline int32) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.maxPending > 0 && len(q.pending) >= q.maxPending {
		return ErrQueueFull
	}
	q.pending = append(q.pending, entry{key: key, ref: ref, deadline: deadline})
	return nil
}

// Run ticks until Stop is called, sweeping expired entries on each beat.
func (q *Queue) Run() {
	t := time.NewTicker(q.tick)
	defer t.Stop()
	for {
		select {
		case <-q.stop:
			return
		case <-t.C:
			q.sweepOnce()
		}
	}
}

// Stop halts the background ticker. Safe to call more than once.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
}

// sweepOnce compacts the pending slice in place: entries whose deadline
// has passed release the queue's held ref (the store's own sweep, called
// here, does the actual unlink-from-index); everything else is kept
// (spec.md 4.H: "compact the array").
func (q *Queue) sweepOnce() {
	now := q.clock.Now()

	q.mu.Lock()
	kept := q.pending[:0]
	var expired []entry
	for _, e := range q.pending {
		if e.deadline <= now {
			expired = append(expired, e)
			continue
		}
		kept = append(kept, e)
	}
	q.pending = kept
	q.mu.Unlock()

	q.st.Sweep(now)
	for _, e := range expired {
		e.ref.Release()
	}
}

// Len reports the number of entries still awaiting their grace deadline.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
