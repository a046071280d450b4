package listener

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestNewListenSocketBindsEphemeralPort(t *testing.T) {
	fd, err := newListenSocket("127.0.0.1", 0, 16)
	if err != nil {
		t.Fatalf("newListenSocket: %v", err)
	}
	defer unix.Close(fd)

	sa, err := unix.Getsockname(fd)
	if err != nil {
		t.Fatalf("getsockname: %v", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("expected SockaddrInet4, got %T", sa)
	}
	if in4.Port == 0 {
		t.Fatal("expected kernel to assign a nonzero ephemeral port")
	}
}

func TestNewWorkerUDPSocketBinds(t *testing.T) {
	fd, err := NewWorkerUDPSocket("127.0.0.1", 0)
	if err != nil {
		t.Fatalf("NewWorkerUDPSocket: %v", err)
	}
	defer unix.Close(fd)

	sa, err := unix.Getsockname(fd)
	if err != nil {
		t.Fatalf("getsockname: %v", err)
	}
	if _, ok := sa.(*unix.SockaddrInet4); !ok {
		t.Fatalf("expected SockaddrInet4, got %T", sa)
	}
}

func TestSockaddrForRejectsGarbageAddress(t *testing.T) {
	if _, err := sockaddrFor("not-an-ip", 11211); err == nil {
		t.Fatal("expected error for invalid bind address")
	}
}

func TestSockaddrForEmptyDefaultsToWildcard(t *testing.T) {
	sa, err := sockaddrFor("", 11211)
	if err != nil {
		t.Fatalf("sockaddrFor: %v", err)
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("expected SockaddrInet4, got %T", sa)
	}
	if in4.Port != 11211 {
		t.Fatalf("expected port 11211, got %d", in4.Port)
	}
}
