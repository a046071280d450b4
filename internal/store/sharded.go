package store

import (
	"hash/fnv"
	"sync"

	"veloxd/internal/clock"
)

// Sharded partitions keys across N independent locked shards, reducing
// contention versus Locked's single mutex — the default store for veloxd,
// generalizing the teacher's shardedStore from a fixed Entry type to full
// Item lifecycle (refcounts, delete-lock, flush watermark per shard).
type Sharded struct {
	shards []shardedSlot
}

type shardedSlot struct {
	mu   sync.RWMutex
	core *core
}

// NewSharded creates a Sharded store with n independent shards.
func NewSharded(n int, c *clock.Clock) *Sharded {
	if n < 1 {
		n = 1
	}
	shards := make([]shardedSlot, n)
	for i := range shards {
		shards[i].core = newCore(c)
	}
	return &Sharded{shards: shards}
}

func (s *Sharded) shardFor(key string) *shardedSlot {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%uint32(len(s.shards))]
}

func (s *Sharded) Get(key string) (ItemRef, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.core.get(key)
}

func (s *Sharded) Store(key string, flags uint32, expireAt int32, value []byte, mode PutMode) (ItemRef, error) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.core.store(key, flags, expireAt, value, mode)
}

func (s *Sharded) Unlink(key string) bool {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.core.unlink(key)
}

func (s *Sharded) MarkDeletedWithGrace(key string, deadline int32) (ItemRef, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.core.markDeletedWithGrace(key, deadline)
}

// Sweep runs across every shard; each shard sweeps under its own lock, so
// the deferred-delete queue can tick without blocking on unrelated shards.
func (s *Sharded) Sweep(now int32) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.core.sweep(now)
		sh.mu.Unlock()
	}
}

func (s *Sharded) Incr(key string, delta uint64) (uint64, ItemRef, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.core.incrDecr(key, delta, false)
}

func (s *Sharded) Decr(key string, delta uint64) (uint64, ItemRef, bool) {
	sh := s.shardFor(key)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.core.incrDecr(key, delta, true)
}

func (s *Sharded) FlushBefore(cutoff int32) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		sh.core.flushBefore(cutoff)
		sh.mu.Unlock()
	}
}

func (s *Sharded) FlushMatching(match func(key string) bool) int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.Lock()
		n += sh.core.flushMatching(match)
		sh.mu.Unlock()
	}
	return n
}

func (s *Sharded) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += sh.core.length()
		sh.mu.RUnlock()
	}
	return n
}

func (s *Sharded) Iterate(fn func(key string, it *Item) bool) {
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		stop := false
		sh.core.iterate(func(k string, it *Item) bool {
			if !fn(k, it) {
				stop = true
				return false
			}
			return true
		})
		sh.mu.RUnlock()
		if stop {
			return
		}
	}
}
