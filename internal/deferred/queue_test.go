package deferred

import (
	"testing"
	"time"

	"veloxd/internal/clock"
	"veloxd/internal/store"
)

func TestEnqueueRejectsOverCapacity(t *testing.T) {
	c := clock.New(time.Unix(1_700_000_000, 0))
	s := store.NewSharded(1, c)
	q := New(s, c, time.Hour, 1)

	_, _ = s.Store("a", 0, 0, []byte("x"), store.PutOverwrite)
	ref, _ := s.Get("a")

	if err := q.Enqueue("a", ref, c.Now()+5); err != nil {
		t.Fatalf("unexpected error on first enqueue: %v", err)
	}
	if err := q.Enqueue("a", ref, c.Now()+5); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
}

func TestSweepOnceReleasesExpiredEntry(t *testing.T) {
	c := clock.New(time.Unix(1_700_000_000, 0))
	s := store.NewSharded(1, c)
	q := New(s, c, time.Hour, 0)

	_, _ = s.Store("a", 0, 0, []byte("x"), store.PutOverwrite)
	ref, ok := s.MarkDeletedWithGrace("a", c.Now())
	if !ok {
		t.Fatalf("expected mark-deleted to succeed")
	}
	_ = q.Enqueue("a", ref, c.Now())

	q.sweepOnce()
	if q.Len() != 0 {
		t.Fatalf("expected expired entry to be removed from queue")
	}
	if _, ok := s.Get("a"); ok {
		t.Fatalf("expected key to be gone after sweep")
	}
}
