// Package assembler builds the scatter/gather reply lists the connection
// state machine streams to clients, and fragments them across UDP
// datagrams when needed. It implements spec.md's component E exactly:
// add_msghdr, add_iov, build_udp_headers, transmit.
package assembler

import "errors"

// MaxIOV bounds how many segments a single message (one sendmsg/writev
// call) may carry. 1024 mirrors the common Linux IOV_MAX.
const MaxIOV = 1024

// UDPHeaderSize is the 8-byte per-datagram framing header from spec.md 6.
const UDPHeaderSize = 8

// UDPMaxPayload is the largest a single UDP datagram (header + body) may
// be, matching the original's conservative default.
const UDPMaxPayload = 1400

// ErrTooManySegments signals that appending a segment would need a
// message header with more segments than any implementation is prepared
// to build in one call — the Go analogue of the original's
// "out of memory growing msglist" SERVER_ERROR path.
var ErrTooManySegments = errors.New("assembler: too many queued messages")

// SegKind tags a segment by where its backing bytes live, so completion
// knows how (and whether) to release them — spec.md 9's "buffer aliasing"
// tagged union, replacing the original's implicit write_and_free/ilist
// coupling.
type SegKind int

const (
	// SegInline bytes live in the connection's own write buffer and need
	// no release; the buffer outlives the Transmit call that sends them.
	SegInline SegKind = iota
	// SegItem bytes are borrowed from a pinned store item. Release must
	// be invoked exactly once after the segment is fully sent.
	SegItem
	// SegScratch bytes are a standalone allocation (e.g. a synthesized
	// UDP header or formatted stats line) owned by the assembler itself.
	SegScratch
)

// Segment is one base+length entry in a scatter/gather list.
type Segment struct {
	Kind SegKind
	Data []byte
	// Release is invoked exactly once, when this segment's bytes have
	// been fully written, for Kind == SegItem. Nil otherwise.
	Release func()
}

// Msg is one outbound datagram (UDP) or one contiguous write unit (TCP):
// a sequence of segments plus enough bookkeeping to place the UDP framing
// header and to resume a partial write.
type Msg struct {
	Segments []Segment
	Len      int // total bytes across Segments

	// startOffset is the byte offset of the first "response start"
	// segment within this message, set only once (spec.md: "only the
	// first such segment per message is remembered").
	startOffset int
	hasStart    bool

	// headerReserved is true for datagram messages; the first segment is
	// an 8-byte scratch placeholder BuildUDPHeaders fills in before send.
	headerReserved bool

	// segCursor and segOffset track how much of this message has already
	// gone out, for resuming a partial write without recopying.
	segCursor int
	segOffset int
}

// Queue is the full set of messages queued for one connection's current
// response.
type Queue struct {
	Msgs     []Msg
	Datagram bool
	ReqID    uint16

	cursor int // index of the Msg currently being drained
}

// Reset clears the queue for reuse, releasing any unsent item segments so
// a connection that errors out mid-response doesn't leak refcounts.
func (q *Queue) Reset() {
	for i := range q.Msgs {
		releaseUnsent(&q.Msgs[i])
	}
	q.Msgs = q.Msgs[:0]
	q.cursor = 0
	q.ReqID = 0
}

func releaseUnsent(m *Msg) {
	for i := m.segCursor; i < len(m.Segments); i++ {
		if m.Segments[i].Release != nil {
			m.Segments[i].Release()
		}
	}
}

// Empty reports whether the queue has nothing left to transmit — spec.md
// 8 invariant 1: "for every connection in reading: msgused == 0 && iovused
// == 0" maps to Empty() == true once a response has fully drained.
func (q *Queue) Empty() bool {
	return len(q.Msgs) == 0
}

// AddMsg appends a new empty message. Datagram connections get an 8-byte
// header placeholder reserved at the front, matching spec.md 4.E.
func (q *Queue) AddMsg() *Msg {
	q.Msgs = append(q.Msgs, Msg{startOffset: -1})
	m := &q.Msgs[len(q.Msgs)-1]
	if q.Datagram {
		m.Segments = append(m.Segments, Segment{Kind: SegScratch, Data: make([]byte, UDPHeaderSize)})
		m.Len += UDPHeaderSize
		m.headerReserved = true
	}
	return m
}

func (q *Queue) currentMsg() *Msg {
	if len(q.Msgs) == 0 {
		return q.AddMsg()
	}
	return &q.Msgs[len(q.Msgs)-1]
}

// AddIOV appends one data segment, splitting across message boundaries per
// spec.md 4.E: a new message opens when the current one hits MaxIOV, or
// when (for datagram connections, or the very first message of any
// connection) appending seg would cross UDPMaxPayload — splitting the
// segment itself if the limit falls in its middle.
func (q *Queue) AddIOV(seg Segment, isStart bool) {
	if len(seg.Data) == 0 {
		if isStart {
			q.markStart(q.currentMsg(), 0)
		}
		return
	}

	remaining := seg.Data
	remainingSeg := seg
	first := true
	for len(remaining) > 0 {
		m := q.currentMsg()
		limitToDatagram := q.Datagram || len(q.Msgs) == 1

		if len(m.Segments) >= MaxIOV {
			m = q.AddMsg()
		}

		if limitToDatagram && m.Len+len(remaining) > UDPMaxPayload {
			fit := UDPMaxPayload - m.Len
			if fit < 0 {
				fit = 0
			}
			if fit == 0 {
				m = q.AddMsg()
				continue
			}
			head := remaining[:fit]
			tail := remaining[fit:]

			headSeg := Segment{Kind: remainingSeg.Kind, Data: head}
			if first && isStart {
				q.markStart(m, m.Len)
			}
			if len(tail) == 0 {
				headSeg.Release = remainingSeg.Release
			}
			m.Segments = append(m.Segments, headSeg)
			m.Len += len(head)

			remaining = tail
			remainingSeg = Segment{Kind: remainingSeg.Kind, Data: tail, Release: remainingSeg.Release}
			first = false
			if len(tail) > 0 {
				q.AddMsg()
			}
			continue
		}

		if first && isStart {
			q.markStart(m, m.Len)
		}
		piece := Segment{Kind: remainingSeg.Kind, Data: remaining, Release: remainingSeg.Release}
		m.Segments = append(m.Segments, piece)
		m.Len += len(remaining)
		remaining = nil
	}
}

func (q *Queue) markStart(m *Msg, offset int) {
	if !m.hasStart {
		m.hasStart = true
		m.startOffset = offset
	}
}
