package store

import "errors"

// Errors returned by write/delete operations to signal explicit semantics
// violations, mirrored on the wire as CLIENT_ERROR/NOT_STORED/NOT_FOUND.
var (
	ErrKeyExists      = errors.New("key already exists")
	ErrKeyNotFound    = errors.New("key not found")
	ErrLocked         = errors.New("key is in delete-lock window")
	ErrInvalidPutMode = errors.New("invalid put mode")
	ErrKeyTooLong     = errors.New("key too long")
	ErrNotOwner       = errors.New("bucket generation mismatch")
)

// PutMode selects the write semantics of Store.Store, matching spec.md
// 4.F's add/set/replace verbs.
type PutMode int

const (
	// PutOverwrite always stores, bypassing any delete-lock window.
	PutOverwrite PutMode = iota
	// PutIfAbsent stores only if no visible item exists and the key is
	// not currently inside a delete-lock window.
	PutIfAbsent
	// PutUpdate stores only if a visible item exists.
	PutUpdate
)

// Store is the narrow interface spec.md 9 asks the protocol core to see
// the storage engine through. Both concurrency strategies (Locked and
// Sharded) implement it identically from the caller's perspective.
type Store interface {
	// Get returns a pinned reference to the live value for key, or
	// !ok if absent, expired, or currently delete-locked.
	Get(key string) (ref ItemRef, ok bool)

	// Store applies mode's write semantics. expireAt is the already
	// converted relative expiry; the store assigns the new item's Cas.
	Store(key string, flags uint32, expireAt int32, value []byte, mode PutMode) (ItemRef, error)

	// Unlink immediately removes a visible key. Returns false if the key
	// was absent, expired, or already in a delete-lock window.
	Unlink(key string) bool

	// MarkDeletedWithGrace hides key from Get and arms its delete-lock
	// until deadline, without removing it from the index. Returns a ref
	// the caller (the deferred-delete queue) should hold until the
	// deadline passes, at which point Sweep will have removed the item.
	MarkDeletedWithGrace(key string, deadline int32) (ItemRef, bool)

	// Sweep removes every item whose delete-lock deadline is <= now and
	// releases the store's own reference to it. Called by
	// internal/deferred on each tick.
	Sweep(now int32)

	// Incr/Decr parse the item's value as a base-10 unsigned integer and
	// apply delta, saturating Decr at 0. ok is false if key is absent.
	Incr(key string, delta uint64) (newValue uint64, ref ItemRef, ok bool)
	Decr(key string, delta uint64) (newValue uint64, ref ItemRef, ok bool)

	// FlushBefore marks every item whose logical store time is before
	// cutoff as expired (invisible to subsequent Get) once the clock
	// reaches cutoff.
	FlushBefore(cutoff int32)

	// FlushMatching removes every live item whose key matches pattern, and
	// returns the number of keys removed.
	FlushMatching(match func(key string) bool) int

	// Len reports the number of live (non-expired, non-deleted) items.
	Len() int

	// Iterate visits every live item. fn returning false stops iteration
	// early. Used by cachedump-style stats subcommands.
	Iterate(fn func(key string, it *Item) bool)
}
