package listener

import (
	"veloxd/internal/bufpool"
	"veloxd/internal/conn"
	"veloxd/internal/reactor"
)

// Worker owns one reactor and every connection dispatched to it; a
// connection never migrates workers once assigned (spec.md 5).
type Worker struct {
	id           int
	react        reactor.Reactor
	ex           *conn.Executor
	bufs         *bufpool.Pool
	reqsPerEvent int

	conns map[int]*conn.Conn

	incoming chan acceptedConn
	stop     chan struct{}
}

type acceptedConn struct {
	fd        int
	transport conn.Transport
}

// NewWorker creates a worker with its own reactor instance.
func NewWorker(id int, ex *conn.Executor, bufs *bufpool.Pool, reqsPerEvent int) (*Worker, error) {
	r, err := reactor.New()
	if err != nil {
		return nil, err
	}
	return &Worker{
		id:           id,
		react:        r,
		ex:           ex,
		bufs:         bufs,
		reqsPerEvent: reqsPerEvent,
		conns:        make(map[int]*conn.Conn),
		incoming:     make(chan acceptedConn, 64),
		stop:         make(chan struct{}),
	}, nil
}

// Assign hands a freshly accepted fd to this worker. Safe to call from
// the dispatcher's goroutine.
func (w *Worker) Assign(fd int, transport conn.Transport) {
	w.incoming <- acceptedConn{fd: fd, transport: transport}
}

// BindUDP registers a worker-owned UDP socket (spec.md 4.I's "extra
// worker-owned send socket", and on Linux the SO_REUSEPORT receive
// socket too — see SPEC_FULL.md 9).
func (w *Worker) BindUDP(fd int) {
	c := conn.New(fd, conn.TransportUDP, w.bufs)
	w.conns[fd] = c
	_ = w.react.Add(fd, reactor.EventRead, w.onReady)
}

// Run drains newly-assigned connections into the reactor and blocks
// running the event loop until Stop is called.
func (w *Worker) Run() error {
	go w.acceptLoop()
	return w.react.Run(w.stop)
}

func (w *Worker) Stop() { close(w.stop) }

func (w *Worker) acceptLoop() {
	for {
		select {
		case <-w.stop:
			return
		case ac := <-w.incoming:
			c := conn.New(ac.fd, ac.transport, w.bufs)
			w.conns[ac.fd] = c
			_ = w.react.Add(ac.fd, reactor.EventRead, w.onReady)
		}
	}
}

func (w *Worker) onReady(fd int, events reactor.EventMask) {
	c, ok := w.conns[fd]
	if !ok {
		return
	}

	outcome := c.Drive(w.ex, w.reqsPerEvent)
	switch outcome {
	case conn.OutcomeArmRead:
		_ = w.react.Modify(fd, reactor.EventRead)
	case conn.OutcomeArmWrite:
		_ = w.react.Modify(fd, reactor.EventWrite)
	case conn.OutcomeArmBoth:
		_ = w.react.Modify(fd, reactor.EventRead|reactor.EventWrite)
	case conn.OutcomeClose:
		_ = w.react.Remove(fd)
		delete(w.conns, fd)
		c.Close()
	}
}

