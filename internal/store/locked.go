package store

import (
	"sync"

	"veloxd/internal/clock"
)

// Locked is a Store guarded by a single global RWMutex — the simplest
// correct concurrency strategy, serving as the baseline the Sharded
// strategy is benchmarked against (mirrors the teacher's lockedStore).
type Locked struct {
	mu   sync.RWMutex
	core *core
}

// NewLocked creates a Store protected by one mutex.
func NewLocked(c *clock.Clock) *Locked {
	return &Locked{core: newCore(c)}
}

func (s *Locked) Get(key string) (ItemRef, bool) {
	s.mu.Lock() // liveGet may lazily delete, so take the exclusive lock
	defer s.mu.Unlock()
	return s.core.get(key)
}

func (s *Locked) Store(key string, flags uint32, expireAt int32, value []byte, mode PutMode) (ItemRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.store(key, flags, expireAt, value, mode)
}

func (s *Locked) Unlink(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.unlink(key)
}

func (s *Locked) MarkDeletedWithGrace(key string, deadline int32) (ItemRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.markDeletedWithGrace(key, deadline)
}

func (s *Locked) Sweep(now int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.sweep(now)
}

func (s *Locked) Incr(key string, delta uint64) (uint64, ItemRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.incrDecr(key, delta, false)
}

func (s *Locked) Decr(key string, delta uint64) (uint64, ItemRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.incrDecr(key, delta, true)
}

func (s *Locked) FlushBefore(cutoff int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.core.flushBefore(cutoff)
}

func (s *Locked) FlushMatching(match func(key string) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.core.flushMatching(match)
}

func (s *Locked) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.core.length()
}

func (s *Locked) Iterate(fn func(key string, it *Item) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.core.iterate(fn)
}
