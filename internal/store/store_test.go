package store

import (
	"testing"
	"time"

	"veloxd/internal/clock"
)

func newTestStore(t *testing.T) (*Sharded, *clock.Clock) {
	t.Helper()
	c := clock.New(time.Unix(1_700_000_000, 0))
	return NewSharded(4, c), c
}

func TestStoreOverwrite(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Store("a", 0, 0, []byte("1"), PutOverwrite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Store("a", 0, 0, []byte("2"), PutOverwrite); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, ok := s.Get("a")
	if !ok {
		t.Fatalf("expected key to exist")
	}
	defer ref.Release()
	if string(ref.Item().Value) != "2" {
		t.Fatalf("expected value '2', got %q", ref.Item().Value)
	}
}

func TestStoreIfAbsent(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Store("a", 0, 0, []byte("1"), PutIfAbsent); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Store("a", 0, 0, []byte("2"), PutIfAbsent); err != ErrKeyExists {
		t.Fatalf("expected ErrKeyExists, got %v", err)
	}

	ref, _ := s.Get("a")
	defer ref.Release()
	if string(ref.Item().Value) != "1" {
		t.Fatalf("value should not have been overwritten")
	}
}

func TestStoreUpdateRequiresExisting(t *testing.T) {
	s, _ := newTestStore(t)

	if _, err := s.Store("a", 0, 0, []byte("1"), PutUpdate); err != ErrKeyNotFound {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}

	_, _ = s.Store("a", 0, 0, []byte("1"), PutOverwrite)

	if _, err := s.Store("a", 0, 0, []byte("2"), PutUpdate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ref, _ := s.Get("a")
	defer ref.Release()
	if string(ref.Item().Value) != "2" {
		t.Fatalf("expected updated value")
	}
}

func TestDeferredDeleteLocksOutAdd(t *testing.T) {
	s, c := newTestStore(t)

	_, _ = s.Store("d", 0, 0, []byte("X"), PutOverwrite)

	deadline := c.Realtime(5)
	if _, ok := s.MarkDeletedWithGrace("d", deadline); !ok {
		t.Fatalf("expected MarkDeletedWithGrace to succeed")
	}

	if _, ok := s.Get("d"); ok {
		t.Fatalf("deleted key should be invisible to Get")
	}

	if _, err := s.Store("d", 0, 0, []byte("Y"), PutIfAbsent); err != ErrLocked {
		t.Fatalf("expected ErrLocked during delete-lock window, got %v", err)
	}

	// After the sweep passes the deadline, the key is gone and add succeeds.
	for i := 0; i < 6; i++ {
		c.Tick()
	}
	s.Sweep(c.Now())

	if _, err := s.Store("d", 0, 0, []byte("Y"), PutIfAbsent); err != nil {
		t.Fatalf("expected add to succeed after sweep, got %v", err)
	}
}

func TestSetBypassesDeleteLock(t *testing.T) {
	s, c := newTestStore(t)

	_, _ = s.Store("d", 0, 0, []byte("X"), PutOverwrite)
	deadline := c.Realtime(5)
	_, _ = s.MarkDeletedWithGrace("d", deadline)

	if _, err := s.Store("d", 0, 0, []byte("Z"), PutOverwrite); err != nil {
		t.Fatalf("set should bypass delete lock, got %v", err)
	}

	ref, ok := s.Get("d")
	if !ok {
		t.Fatalf("expected key visible again after set bypassed lock")
	}
	defer ref.Release()
	if string(ref.Item().Value) != "Z" {
		t.Fatalf("expected value 'Z', got %q", ref.Item().Value)
	}
}

func TestIncrSaturatesAtZero(t *testing.T) {
	s, _ := newTestStore(t)
	_, _ = s.Store("k", 0, 0, []byte("9"), PutOverwrite)

	v, ref, ok := s.Incr("k", 2)
	ref.Release()
	if !ok || v != 11 {
		t.Fatalf("incr: got (%d, %v), want 11,true", v, ok)
	}

	v, ref, ok = s.Decr("k", 100)
	ref.Release()
	if !ok || v != 0 {
		t.Fatalf("decr: got (%d, %v), want 0,true", v, ok)
	}
}

func TestFlushAllWatermark(t *testing.T) {
	s, c := newTestStore(t)

	_, _ = s.Store("a", 0, 0, []byte("1"), PutOverwrite)
	c.Tick()
	s.FlushBefore(c.Now())

	if _, ok := s.Get("a"); ok {
		t.Fatalf("expected key flushed by flush_all to be invisible")
	}

	_, _ = s.Store("b", 0, 0, []byte("2"), PutOverwrite)
	ref, ok := s.Get("b")
	if !ok {
		t.Fatalf("key stored after flush_all watermark should remain visible")
	}
	ref.Release()
}

func TestFlushMatching(t *testing.T) {
	s, _ := newTestStore(t)
	_, _ = s.Store("user:1", 0, 0, []byte("a"), PutOverwrite)
	_, _ = s.Store("user:2", 0, 0, []byte("b"), PutOverwrite)
	_, _ = s.Store("order:1", 0, 0, []byte("c"), PutOverwrite)

	n := s.FlushMatching(func(key string) bool {
		return len(key) >= 4 && key[:4] == "user"
	})
	if n != 2 {
		t.Fatalf("expected 2 keys flushed, got %d", n)
	}

	if _, ok := s.Get("user:1"); ok {
		t.Fatalf("user:1 should be flushed")
	}
	ref, ok := s.Get("order:1")
	if !ok {
		t.Fatalf("order:1 should survive")
	}
	ref.Release()
}

func TestShardedDeterministicRouting(t *testing.T) {
	s, _ := newTestStore(t)
	shard1 := s.shardFor("some-key")
	shard2 := s.shardFor("some-key")
	if shard1 != shard2 {
		t.Fatalf("expected the same key to always route to the same shard")
	}
}

func TestBucketTableOwnership(t *testing.T) {
	bt := NewBucketTable()

	if bt.Owns(3, 1) {
		t.Fatalf("bucket should start at generation 0")
	}
	if !bt.Owns(3, 0) {
		t.Fatalf("bucket should start owned by generation 0")
	}

	bt.Own(3, 1)
	if !bt.Owns(3, 1) {
		t.Fatalf("expected bucket 3 owned by generation 1")
	}
	if bt.Owns(3, 0) {
		t.Fatalf("stale generation should no longer own the bucket")
	}

	// Re-owning the same generation is idempotent.
	bt.Own(3, 1)
	if !bt.Owns(3, 1) {
		t.Fatalf("re-owning same generation should remain valid")
	}

	bt.Disown(3)
	if !bt.Owns(3, 0) {
		t.Fatalf("disown should reset to generation 0")
	}
}
