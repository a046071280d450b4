// Package conn implements the connection object and state machine from
// spec.md 4.C/4.G: per-connection buffers, the reading/nread/swallow/
// write/mwrite/closing state machine, and the reqs-per-event budget that
// bounds how much one reactor callback does before yielding.
package conn

import (
	"bytes"

	"golang.org/x/sys/unix"

	"veloxd/internal/assembler"
	"veloxd/internal/bufpool"
	"veloxd/internal/store"
)

// Transport identifies which socket flavor a Conn rides on. UDP
// connections are logically one per datagram-bearing request but share
// the worker's single receiving socket; spec.md 6's "stream-socket
// mutual exclusion" is enforced at the listener, not here.
type Transport int

const (
	TransportTCP Transport = iota
	TransportUDP
	TransportUnix
)

// Conn is one client connection: net fd, transport flavor, state, buffers
// with cursor/valid-bytes, the queued-reply assembler, and held item
// references pinned for the duration of an in-flight reply (spec.md 4.C).
type Conn struct {
	Fd        int
	Transport Transport
	Peer      unix.Sockaddr // set for UDP: reply destination of the current datagram

	state State

	bufs *bufpool.Pool

	readBuf   []byte
	readStart int // next unparsed byte
	readValid int // bytes in readBuf actually filled

	queue assembler.Queue

	// nread state: set when a storage command's header line has been
	// parsed and its fixed-length value payload is still arriving.
	nreadKey      string
	nreadFlags    uint32
	nreadExpireAt int32
	nreadMode     store.PutMode
	nreadWant     int
	nreadBuf      []byte
	nreadGot      int
	nreadNoreply  bool

	swallowRemaining int

	// UDP framing (spec.md 6): every reply datagram echoes the request's
	// 16-bit id.
	UDPReqID uint16

	// Managed-mode tag, validated against the bucket table before any
	// mutating command executes.
	Bucket     uint32
	Generation uint32
	Managed    bool

	closePending bool
}

// New wraps fd as a fresh connection in the reading state.
func New(fd int, transport Transport, bufs *bufpool.Pool) *Conn {
	c := &Conn{
		Fd:        fd,
		Transport: transport,
		bufs:      bufs,
		state:     StateReading,
	}
	c.queue.Datagram = transport == TransportUDP
	return c
}

// State reports the connection's current state-machine state.
func (c *Conn) State() State { return c.state }

func (c *Conn) ensureReadBuf() {
	if c.readBuf == nil {
		c.readBuf = c.bufs.Get()
	}
}

func (c *Conn) compactReadBuf() {
	if c.readStart == 0 {
		return
	}
	n := copy(c.readBuf, c.readBuf[c.readStart:c.readValid])
	c.readStart = 0
	c.readValid = n
}

func (c *Conn) releaseReadBuf() {
	if c.readBuf == nil {
		return
	}
	c.bufs.Put(c.readBuf)
	c.readBuf = nil
	c.readStart = 0
	c.readValid = 0
}

// growReadBuf doubles the read buffer when a single line or payload won't
// fit, up to a caller-imposed ceiling enforced one layer up (spec.md
// 4.C: oversized lines are a client error, not an internal one).
func (c *Conn) growReadBuf() {
	grown := make([]byte, len(c.readBuf)*2)
	copy(grown, c.readBuf[:c.readValid])
	c.readBuf = grown
}

// findLine returns the unparsed line up to (not including) "\r\n", and
// whether one was found.
func (c *Conn) findLine() ([]byte, bool) {
	window := c.readBuf[c.readStart:c.readValid]
	idx := bytes.Index(window, []byte("\r\n"))
	if idx < 0 {
		return nil, false
	}
	line := window[:idx]
	c.readStart += idx + 2
	return line, true
}

// Close releases every resource this connection is holding: the queued
// reply's unsent item segments (each via its Release callback), any
// oversized buffer, and the fd itself.
func (c *Conn) Close() {
	c.queue.Reset()
	c.releaseReadBuf()
	unix.Close(c.Fd)
}
