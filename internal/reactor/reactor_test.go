package reactor

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestAddFiresOnReadable(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}

	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	fired := make(chan EventMask, 1)
	// The byte is never read, so the level-triggered registration keeps
	// firing; only the first delivery is recorded so the callback never
	// blocks the reactor goroutine.
	if err := r.Add(fds[0], EventRead, func(fd int, ev EventMask) {
		select {
		case fired <- ev:
		default:
		}
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() { done <- r.Run(stop) }()

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ev := <-fired:
		if ev&EventRead == 0 {
			t.Fatalf("expected EventRead, got %v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned after stop")
	}
}

func TestRemoveStopsDelivery(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}

	r, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	calls := 0
	if err := r.Add(fds[0], EventRead, func(fd int, ev EventMask) { calls++ }); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Remove(fds[0]); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	stop := make(chan struct{})
	go func() { r.Run(stop) }()
	defer close(stop)

	if _, err := unix.Write(fds[1], []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if calls != 0 {
		t.Fatalf("expected no callbacks after Remove, got %d", calls)
	}
}
