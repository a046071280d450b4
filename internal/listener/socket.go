// Package listener implements the listen/accept/dispatch component from
// spec.md 4.I: raw non-blocking sockets (grounded on
// goceleris-benchmarks' epoll/http1.go socket setup and
// xDarkicex-zippy/KierenEinar-roma's epoll usage), with acceptance
// handed off round-robin to worker goroutines that each own a private
// reactor.Reactor.
package listener

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

func sockaddrFor(addr string, port int) (unix.Sockaddr, error) {
	ip := net.ParseIP(addr)
	if ip == nil {
		if addr == "" {
			ip = net.IPv4zero
		} else {
			return nil, fmt.Errorf("listener: invalid bind address %q", addr)
		}
	}
	if v4 := ip.To4(); v4 != nil {
		var sa unix.SockaddrInet4
		sa.Port = port
		copy(sa.Addr[:], v4)
		return &sa, nil
	}
	var sa unix.SockaddrInet6
	sa.Port = port
	copy(sa.Addr[:], ip.To16())
	return &sa, nil
}

// newListenSocket creates, tunes, binds, and listens on a non-blocking
// TCP socket: SO_REUSEADDR, SO_KEEPALIVE, TCP_NODELAY, SO_LINGER(0,0)
// per SPEC_FULL.md 4.I.
func newListenSocket(bindAddr string, port int, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("listener: socket: %w", err)
	}

	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_KEEPALIVE, 1)
	_ = unix.SetsockoptLinger(fd, unix.SOL_SOCKET, unix.SO_LINGER, &unix.Linger{Onoff: 0, Linger: 0})

	sa, err := sockaddrFor(bindAddr, port)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listener: bind: %w", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listener: listen: %w", err)
	}
	return fd, nil
}

// NewWorkerUDPSocket binds a non-blocking UDP socket for one worker. On
// Linux every worker binds the SAME port independently via SO_REUSEPORT,
// letting the kernel load-balance datagrams across workers without a
// dispatcher hand-off (SPEC_FULL.md 4.I); elsewhere (no SO_REUSEPORT) the
// caller must instead share one socket across workers.
func NewWorkerUDPSocket(bindAddr string, port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("listener: udp socket: %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := setReusePort(fd); err != nil {
		unix.Close(fd)
		return -1, err
	}
	growSocketBuffers(fd)

	sa, err := sockaddrFor(bindAddr, port)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listener: udp bind: %w", err)
	}
	return fd, nil
}

// growSocketBuffers binary-searches the largest SO_RCVBUF/SO_SNDBUF the
// kernel will grant, up to a generous ceiling, per SPEC_FULL.md 4.I.
func growSocketBuffers(fd int) {
	for _, opt := range []int{unix.SO_RCVBUF, unix.SO_SNDBUF} {
		lo, hi := 0, 8*1024*1024
		best := 0
		for lo <= hi {
			mid := (lo + hi) / 2
			if unix.SetsockoptInt(fd, unix.SOL_SOCKET, opt, mid) == nil {
				best = mid
				lo = mid + 1
			} else {
				hi = mid - 1
			}
		}
		if best > 0 {
			_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, opt, best)
		}
	}
}
