package store

import (
	"strconv"

	"veloxd/internal/clock"
)

// core is the non-concurrent in-memory engine. It must be accessed by a
// single goroutine or wrapped in an external lock; Locked and Sharded do
// exactly that. This mirrors the teacher's "store has no concurrency
// control, callers serialize access" split.
type core struct {
	data       map[string]*Item
	clock      *clock.Clock
	casSeq     uint64
	oldestLive int32 // flush_all watermark: items stored before this are invisible
}

func newCore(c *clock.Clock) *core {
	return &core{
		data:  make(map[string]*Item),
		clock: c,
	}
}

func (c *core) nextCas() uint64 {
	c.casSeq++
	return c.casSeq
}

// flushed reports whether it was invalidated by a prior flush_all: the
// watermark must both be set and already reached, and it must have been
// stored before that watermark (mirrors item_is_flushed in
// original_source/memcached.c).
func (c *core) flushed(it *Item) bool {
	if c.oldestLive == 0 {
		return false
	}
	now := c.clock.Now()
	return now >= c.oldestLive && it.StoredAt < c.oldestLive
}

// liveGet returns the item if present, not expired, not flushed, and not
// delete-locked. Expired entries are evicted lazily, matching spec.md's
// note that expired keys are never observable.
func (c *core) liveGet(key string) (*Item, bool) {
	it, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if it.Deleted {
		return nil, false
	}
	now := c.clock.Now()
	if it.expired(now) {
		delete(c.data, key)
		return nil, false
	}
	if c.flushed(it) {
		return nil, false
	}
	return it, true
}

func (c *core) get(key string) (ItemRef, bool) {
	it, ok := c.liveGet(key)
	if !ok {
		return ItemRef{}, false
	}
	return refItem(it), true
}

func (c *core) store(key string, flags uint32, expireAt int32, value []byte, mode PutMode) (ItemRef, error) {
	existing, present := c.data[key]
	now := c.clock.Now()

	switch mode {
	case PutIfAbsent:
		if present {
			if existing.locked(now) {
				return ItemRef{}, ErrLocked
			}
			if !existing.Deleted && !existing.expired(now) && !c.flushed(existing) {
				return ItemRef{}, ErrKeyExists
			}
		}
	case PutUpdate:
		if !present || existing.Deleted || existing.expired(now) || c.flushed(existing) {
			return ItemRef{}, ErrKeyNotFound
		}
	case PutOverwrite:
		// always proceeds; bypasses any delete lock on the existing item.
	default:
		return ItemRef{}, ErrInvalidPutMode
	}

	it := newItem(key, flags, expireAt, now, value)
	it.Cas = c.nextCas()
	if present {
		existing.refs.Add(-1) // index drops its old reference
	}
	c.data[key] = it
	return refItem(it), nil
}

func (c *core) unlink(key string) bool {
	it, ok := c.liveGet(key)
	if !ok {
		return false
	}
	delete(c.data, key)
	it.refs.Add(-1)
	return true
}

func (c *core) markDeletedWithGrace(key string, deadline int32) (ItemRef, bool) {
	it, ok := c.liveGet(key)
	if !ok {
		return ItemRef{}, false
	}
	it.Deleted = true
	it.LockUntil = deadline
	return refItem(it), true
}

// sweep removes every item whose grace deadline has passed. Run by
// internal/deferred on each tick under the same lock the store uses.
func (c *core) sweep(now int32) {
	for k, it := range c.data {
		if it.Deleted && it.LockUntil != 0 && now >= it.LockUntil {
			delete(c.data, k)
			it.refs.Add(-1)
		}
	}
}

func (c *core) incrDecr(key string, delta uint64, negative bool) (uint64, ItemRef, bool) {
	it, ok := c.liveGet(key)
	if !ok {
		return 0, ItemRef{}, false
	}

	cur, _ := strconv.ParseUint(string(it.Value), 10, 64)
	var next uint64
	if negative {
		if delta >= cur {
			next = 0
		} else {
			next = cur - delta
		}
	} else {
		next = cur + delta
	}
	repr := []byte(strconv.FormatUint(next, 10))
	now := c.clock.Now()

	if it.refs.Load() == 1 && cap(it.Value) >= len(repr) {
		// Sole owner: safe to mutate value bytes in place.
		it.Value = it.Value[:len(repr)]
		copy(it.Value, repr)
		it.Cas = c.nextCas()
	} else {
		replacement := newItem(key, it.Flags, it.ExpireAt, now, repr)
		replacement.Cas = c.nextCas()
		it.refs.Add(-1)
		c.data[key] = replacement
		it = replacement
	}
	return next, refItem(it), true
}

// flushBefore advances the flush watermark monotonically, per spec.md
// 4.F: items stored before cutoff become invisible without
// requiring a full scan (mirrors the original's "oldest_live" design,
// see original_source/memcached.c).
func (c *core) flushBefore(cutoff int32) {
	if cutoff > c.oldestLive {
		c.oldestLive = cutoff
	}
}

// flushMatching unlinks every live key matched by pattern. Unlike
// flushBefore this must scan: a regex can't be folded into a single
// watermark.
func (c *core) flushMatching(match func(key string) bool) int {
	now := c.clock.Now()
	n := 0
	for k, it := range c.data {
		if it.Deleted || it.expired(now) || c.flushed(it) {
			continue
		}
		if match(k) {
			delete(c.data, k)
			it.refs.Add(-1)
			n++
		}
	}
	return n
}

func (c *core) length() int {
	now := c.clock.Now()
	n := 0
	for _, it := range c.data {
		if !it.Deleted && !it.expired(now) && !c.flushed(it) {
			n++
		}
	}
	return n
}

func (c *core) iterate(fn func(key string, it *Item) bool) {
	now := c.clock.Now()
	for k, it := range c.data {
		if it.Deleted || it.expired(now) || c.flushed(it) {
			continue
		}
		if !fn(k, it) {
			return
		}
	}
}
