package listener

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"veloxd/internal/conn"
)

// Dispatcher owns the listening socket(s) and round-robins newly
// accepted connections across a fixed pool of workers (spec.md 4.I,
// generalized from the teacher's wal single-writer channel hand-off to a
// fan-out instead of fan-in).
type Dispatcher struct {
	tcpFd  int // -1 if TCP is disabled
	unixFd int // -1 if no unix-stream socket configured

	workers []*Worker
	next    int

	stop chan struct{}
}

// New creates a dispatcher. bindAddr/tcpPort/unixPath follow
// SPEC_FULL.md 6's -l/-p/-s flags; tcpPort == 0 disables TCP.
func New(bindAddr string, tcpPort int, unixPath string, workers []*Worker) (*Dispatcher, error) {
	d := &Dispatcher{tcpFd: -1, unixFd: -1, workers: workers, stop: make(chan struct{})}

	if tcpPort != 0 {
		fd, err := newListenSocket(bindAddr, tcpPort, 1024)
		if err != nil {
			return nil, err
		}
		d.tcpFd = fd
	}
	if unixPath != "" {
		fd, err := newUnixListenSocket(unixPath)
		if err != nil {
			return nil, err
		}
		d.unixFd = fd
	}
	return d, nil
}

// Run starts every worker and the accept loop, blocking until Stop.
func (d *Dispatcher) Run() error {
	errs := make(chan error, len(d.workers))
	for _, w := range d.workers {
		w := w
		go func() {
			if err := w.Run(); err != nil {
				errs <- err
			}
		}()
	}

	if d.tcpFd >= 0 {
		go d.acceptLoop(d.tcpFd, conn.TransportTCP)
	}
	if d.unixFd >= 0 {
		go d.acceptLoop(d.unixFd, conn.TransportUnix)
	}

	select {
	case <-d.stop:
		return nil
	case err := <-errs:
		return err
	}
}

// Stop halts the accept loops and every worker.
func (d *Dispatcher) Stop() {
	close(d.stop)
	for _, w := range d.workers {
		w.Stop()
	}
	if d.tcpFd >= 0 {
		unix.Close(d.tcpFd)
	}
	if d.unixFd >= 0 {
		unix.Close(d.unixFd)
	}
}

// acceptLoop accepts connections off listenFd and hands each to the next
// worker round-robin. The listening socket is non-blocking, so a failed
// accept with EAGAIN just means "nothing pending right now" — handled by
// briefly yielding rather than busy-spinning.
func (d *Dispatcher) acceptLoop(listenFd int, transport conn.Transport) {
	for {
		select {
		case <-d.stop:
			return
		default:
		}

		fd, _, err := unix.Accept4(listenFd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err != nil {
			if err == unix.EAGAIN {
				time.Sleep(time.Millisecond)
				continue
			}
			return
		}

		w := d.workers[d.next%len(d.workers)]
		d.next++
		w.Assign(fd, transport)
	}
}

func newUnixListenSocket(path string) (int, error) {
	_ = unix.Unlink(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("listener: unix socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listener: unix bind: %w", err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("listener: unix listen: %w", err)
	}
	return fd, nil
}
