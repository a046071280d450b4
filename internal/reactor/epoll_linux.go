//go:build linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

type epollReactor struct {
	epfd int

	mu   sync.Mutex
	regs map[int]Callback
}

// New creates the platform reactor: real epoll on Linux.
func New() (Reactor, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &epollReactor{epfd: fd, regs: make(map[int]Callback)}, nil
}

func toEpollEvents(m EventMask) uint32 {
	var ev uint32
	if m&EventRead != 0 {
		ev |= unix.EPOLLIN
	}
	if m&EventWrite != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (r *epollReactor) Add(fd int, events EventMask, cb Callback) error {
	r.mu.Lock()
	r.regs[fd] = cb
	r.mu.Unlock()

	ev := &unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (r *epollReactor) Modify(fd int, events EventMask) error {
	ev := &unix.EpollEvent{Events: toEpollEvents(events), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (r *epollReactor) Remove(fd int) error {
	r.mu.Lock()
	delete(r.regs, fd)
	r.mu.Unlock()
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (r *epollReactor) Run(stop <-chan struct{}) error {
	events := make([]unix.EpollEvent, 256)
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		n, err := unix.EpollWait(r.epfd, events, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}

		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			r.mu.Lock()
			cb := r.regs[fd]
			r.mu.Unlock()
			if cb == nil {
				continue
			}

			var mask EventMask
			if events[i].Events&(unix.EPOLLIN|unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				mask |= EventRead
			}
			if events[i].Events&unix.EPOLLOUT != 0 {
				mask |= EventWrite
			}
			cb(fd, mask)
		}
	}
}
