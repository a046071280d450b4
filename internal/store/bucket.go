package store

import "sync/atomic"

// NumBuckets bounds the fixed-size bucket-generation table used by managed
// mode (spec.md glossary: "Managed mode"). 1024 buckets is generous for a
// single cache node; a real deployment sizes this to its shard count.
const NumBuckets = 1024

// BucketTable is the managed-mode ownership table: each bucket holds the
// generation number currently authorized to own it. Reads are single-word
// atomic loads (spec.md 5: "read without locking"); writes ("own") are
// plain atomic stores, so re-storing the same value is idempotent.
type BucketTable struct {
	generations [NumBuckets]atomic.Uint32
}

// NewBucketTable creates an all-zero table (generation 0 owns every bucket
// until a client issues "own").
func NewBucketTable() *BucketTable {
	return &BucketTable{}
}

// Owns reports whether (bucket, generation) currently owns the bucket.
func (t *BucketTable) Owns(bucket uint32, generation uint32) bool {
	if bucket >= NumBuckets {
		return false
	}
	return t.generations[bucket].Load() == generation
}

// Own assigns generation as the current owner of bucket. Re-assigning the
// same generation is a no-op (idempotent per spec.md 4.D's
// "writes are idempotent").
func (t *BucketTable) Own(bucket uint32, generation uint32) bool {
	if bucket >= NumBuckets {
		return false
	}
	t.generations[bucket].Store(generation)
	return true
}

// Disown resets bucket to generation 0, relinquishing ownership.
func (t *BucketTable) Disown(bucket uint32) bool {
	return t.Own(bucket, 0)
}

// Generation returns the bucket's current owning generation.
func (t *BucketTable) Generation(bucket uint32) (uint32, bool) {
	if bucket >= NumBuckets {
		return 0, false
	}
	return t.generations[bucket].Load(), true
}
