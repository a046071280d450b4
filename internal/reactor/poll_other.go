//go:build !linux

package reactor

import (
	"sync"

	"golang.org/x/sys/unix"
)

// pollReactor is the portable fallback for platforms without epoll
// (darwin/bsd), built on unix.Poll the way KierenEinar-roma's reactor
// targets epoll specifically on Linux — here we keep the same external
// contract over repeated unix.Poll calls instead.
type pollReactor struct {
	mu   sync.Mutex
	regs map[int]*registration
}

type registration struct {
	events EventMask
	cb     Callback
}

// New creates the platform reactor: unix.Poll on non-Linux targets.
func New() (Reactor, error) {
	return &pollReactor{regs: make(map[int]*registration)}, nil
}

func (r *pollReactor) Add(fd int, events EventMask, cb Callback) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs[fd] = &registration{events: events, cb: cb}
	return nil
}

func (r *pollReactor) Modify(fd int, events EventMask) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.regs[fd]
	if !ok {
		return nil
	}
	reg.events = events
	return nil
}

func (r *pollReactor) Remove(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.regs, fd)
	return nil
}

func toPollEvents(m EventMask) int16 {
	var ev int16
	if m&EventRead != 0 {
		ev |= unix.POLLIN
	}
	if m&EventWrite != 0 {
		ev |= unix.POLLOUT
	}
	return ev
}

func (r *pollReactor) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}

		r.mu.Lock()
		fds := make([]unix.PollFd, 0, len(r.regs))
		order := make([]int, 0, len(r.regs))
		for fd, reg := range r.regs {
			fds = append(fds, unix.PollFd{Fd: int32(fd), Events: toPollEvents(reg.events)})
			order = append(order, fd)
		}
		r.mu.Unlock()

		if len(fds) == 0 {
			continue
		}

		n, err := unix.Poll(fds, 500)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return err
		}
		if n == 0 {
			continue
		}

		for i, pfd := range fds {
			if pfd.Revents == 0 {
				continue
			}
			r.mu.Lock()
			reg := r.regs[order[i]]
			r.mu.Unlock()
			if reg == nil {
				continue
			}

			var mask EventMask
			if pfd.Revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
				mask |= EventRead
			}
			if pfd.Revents&unix.POLLOUT != 0 {
				mask |= EventWrite
			}
			reg.cb(order[i], mask)
		}
	}
}
