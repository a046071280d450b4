package conn

import (
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"veloxd/internal/bufpool"
	"veloxd/internal/clock"
	"veloxd/internal/deferred"
	"veloxd/internal/stats"
	"veloxd/internal/store"
)

// newTestPair returns a connected, non-blocking unix socketpair: fds[0]
// is wrapped as the Conn under test, fds[1] is the "client" side the
// test writes requests into and reads replies from.
func newTestPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("set nonblock: %v", err)
		}
	}
	t.Cleanup(func() { unix.Close(fds[1]) })
	return fds[0], fds[1]
}

func newTestExecutor(t *testing.T) (*Executor, *clock.Clock) {
	t.Helper()
	c := clock.New(time.Unix(1_700_000_000, 0))
	st := store.NewSharded(2, c)
	dq := deferred.New(st, c, time.Hour, 0)
	return &Executor{
		Store:   st,
		Deferred: dq,
		Stats:   stats.New(),
		Clock:   c,
		Version: "test",
		Started: time.Now(),
	}, c
}

// drainReply keeps calling Drive until it returns OutcomeArmRead (reply
// fully sent, back to reading) or OutcomeClose, reading whatever the
// client side received along the way.
func drainReply(t *testing.T, c *Conn, ex *Executor, clientFd int) string {
	t.Helper()
	var out strings.Builder
	buf := make([]byte, 4096)

	for i := 0; i < 100; i++ {
		outcome := c.Drive(ex, 20)

		for {
			n, err := unix.Read(clientFd, buf)
			if err == unix.EAGAIN || n <= 0 {
				break
			}
			out.Write(buf[:n])
		}

		if outcome == OutcomeClose {
			return out.String()
		}
		if c.State() == StateReading && out.Len() > 0 {
			return out.String()
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("reply never completed; got so far: %q", out.String())
	return ""
}

func TestDriveGetMiss(t *testing.T) {
	serverFd, clientFd := newTestPair(t)
	ex, _ := newTestExecutor(t)
	c := New(serverFd, TransportTCP, bufpool.New())
	defer c.Close()

	if _, err := unix.Write(clientFd, []byte("get missing-key\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	reply := drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "END\r\n") {
		t.Fatalf("expected END in reply, got %q", reply)
	}
}

func TestDriveSetThenGet(t *testing.T) {
	serverFd, clientFd := newTestPair(t)
	ex, _ := newTestExecutor(t)
	c := New(serverFd, TransportTCP, bufpool.New())
	defer c.Close()

	req := "set k 0 0 3\r\nabc\r\n"
	if _, err := unix.Write(clientFd, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "STORED") {
		t.Fatalf("expected STORED, got %q", reply)
	}

	if _, err := unix.Write(clientFd, []byte("get k\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "VALUE k 0 3\r\nabc\r\nEND\r\n") {
		t.Fatalf("expected value body, got %q", reply)
	}
}

func TestDriveUnknownCommand(t *testing.T) {
	serverFd, clientFd := newTestPair(t)
	ex, _ := newTestExecutor(t)
	c := New(serverFd, TransportTCP, bufpool.New())
	defer c.Close()

	if _, err := unix.Write(clientFd, []byte("frobnicate\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "ERROR") {
		t.Fatalf("expected ERROR, got %q", reply)
	}
}

func TestDriveManagedModeOwnBgSet(t *testing.T) {
	serverFd, clientFd := newTestPair(t)
	ex, _ := newTestExecutor(t)
	ex.Buckets = store.NewBucketTable()
	c := New(serverFd, TransportTCP, bufpool.New())
	defer c.Close()

	// Before any bg, a mutating command is refused outright.
	if _, err := unix.Write(clientFd, []byte("set k 0 0 3\r\nabc\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "CLIENT_ERROR no BG data in managed mode") {
		t.Fatalf("expected no-BG-data error, got %q", reply)
	}

	// own 5:3 claims bucket 5 at generation 3.
	if _, err := unix.Write(clientFd, []byte("own 5:3\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "OWNED") {
		t.Fatalf("expected OWNED, got %q", reply)
	}

	// bg 5:3 tags this connection and queues no reply, so the very next
	// command's reply is the only thing the client reads next.
	if _, err := unix.Write(clientFd, []byte("bg 5:3\r\nset k 0 0 3\r\nabc\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "STORED") {
		t.Fatalf("expected STORED after matching bg tag, got %q", reply)
	}

	// The tag is one-shot: a second set with no fresh bg is refused again.
	if _, err := unix.Write(clientFd, []byte("set k 0 0 3\r\nxyz\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "CLIENT_ERROR no BG data in managed mode") {
		t.Fatalf("expected tag to be consumed after one use, got %q", reply)
	}

	// bg with a stale generation tags the connection but fails the
	// ownership check against the table's current generation.
	if _, err := unix.Write(clientFd, []byte("bg 5:1\r\nset k 0 0 3\r\nqqq\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply = drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "ERROR_NOT_OWNER") {
		t.Fatalf("expected ERROR_NOT_OWNER for stale generation tag, got %q", reply)
	}
}

func TestDriveOversizeKeyRejected(t *testing.T) {
	serverFd, clientFd := newTestPair(t)
	ex, _ := newTestExecutor(t)
	c := New(serverFd, TransportTCP, bufpool.New())
	defer c.Close()

	big := strings.Repeat("k", 300)
	if _, err := unix.Write(clientFd, []byte("get "+big+"\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	reply := drainReply(t, c, ex, clientFd)
	if !strings.Contains(reply, "CLIENT_ERROR") {
		t.Fatalf("expected CLIENT_ERROR for oversized key, got %q", reply)
	}
}
