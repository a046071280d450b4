package store

import "sync/atomic"

// MaxKeyLen is the largest key veloxd accepts, per spec.md 4.F.
const MaxKeyLen = 250

// Item is a single stored key/value unit: key, value bytes, client-opaque
// flags, a relative expiration (0 meaning "never"), a CAS id, and a
// reference count that pins the value bytes for as long as any reply slot
// (internal/assembler) still references them.
type Item struct {
	Key       string
	Value     []byte
	Flags     uint32
	ExpireAt  int32 // seconds since clock start; 0 = never expires
	StoredAt  int32 // seconds since clock start when last (re)stored
	Cas       uint64
	Deleted   bool  // hidden from Get, but still pinned until swept
	LockUntil int32 // delete-lock deadline; 0 = not locked

	refs atomic.Int32
}

func newItem(key string, flags uint32, expireAt, storedAt int32, value []byte) *Item {
	it := &Item{
		Key:      key,
		Value:    value,
		Flags:    flags,
		ExpireAt: expireAt,
		StoredAt: storedAt,
	}
	it.refs.Store(1) // the index's own reference
	return it
}

func (it *Item) expired(now int32) bool {
	return it.ExpireAt != 0 && now >= it.ExpireAt
}

func (it *Item) locked(now int32) bool {
	return it.LockUntil != 0 && now < it.LockUntil
}

// ItemRef is an ownership handle over a pinned Item, per spec.md's "reply
// slot" entity. Exactly one Release call must be made per ItemRef obtained
// from the store; Release decrements the item's refcount.
type ItemRef struct {
	item *Item
}

// Item returns the referenced item. Its bytes are guaranteed valid for as
// long as the ItemRef has not been released.
func (r ItemRef) Item() *Item {
	return r.item
}

// Valid reports whether this ref actually holds an item.
func (r ItemRef) Valid() bool {
	return r.item != nil
}

// Release decrements the item's reference count exactly once. Safe to call
// on a zero-value ItemRef (no-op).
func (r ItemRef) Release() {
	if r.item == nil {
		return
	}
	r.item.refs.Add(-1)
}

func refItem(it *Item) ItemRef {
	it.refs.Add(1)
	return ItemRef{item: it}
}
