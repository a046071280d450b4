package assembler

import "net"

// Result is the outcome of one Transmit call, per spec.md 4.E.
type Result int

const (
	// Complete means every queued message was fully sent; all held item
	// references have been released exactly once (spec.md 8 invariant 3).
	Complete Result = iota
	// Incomplete means a message is still partially queued; the caller
	// should re-arm writable interest and call Transmit again later.
	Incomplete
	// SoftError means the underlying write would have blocked; same
	// caller action as Incomplete.
	SoftError
	// HardError means a non-recoverable write error occurred; the caller
	// should close the connection.
	HardError
)

// Writer performs one vectored write attempt. wouldBlock distinguishes
// "try again later" from a real error, matching spec.md's SOFT_ERROR vs
// HARD_ERROR distinction — the direct analogue of a non-blocking
// writev()/sendmsg() returning EAGAIN.
type Writer interface {
	WriteV(bufs net.Buffers) (n int, err error, wouldBlock bool)
}

// Transmit iterates queued messages calling WriteV once per message (one
// sendmsg-equivalent per datagram/write-unit, per spec.md 4.E). On a
// partial write it advances the segment cursor so a subsequent Transmit
// call resumes exactly where the kernel left off, without re-copying
// already-sent bytes — the same bookkeeping xDarkicex/zippy's
// Buffer.consumeBytes uses for its single-buffer case, generalized here
// to per-message multi-segment lists.
func (q *Queue) Transmit(w Writer) Result {
	for q.cursor < len(q.Msgs) {
		m := &q.Msgs[q.cursor]

		bufs := m.pendingBuffers()
		if len(bufs) == 0 {
			q.cursor++
			continue
		}

		n, err, wouldBlock := w.WriteV(bufs)
		if n > 0 {
			m.consume(n)
		}

		if err != nil {
			if wouldBlock {
				return SoftError
			}
			return HardError
		}

		if !m.drained() {
			// Kernel accepted fewer bytes than offered with no error —
			// a legitimate partial write on a non-blocking socket.
			return Incomplete
		}
		releaseSent(m)
		q.cursor++
	}

	q.Msgs = q.Msgs[:0]
	q.cursor = 0
	return Complete
}

// pendingBuffers returns the unsent tail of m as net.Buffers, without
// mutating any state (mirrors zippy's peekNetBuffers: the write may fail
// or partially complete, so state updates are deferred until bytes are
// confirmed sent).
func (m *Msg) pendingBuffers() net.Buffers {
	if m.segCursor >= len(m.Segments) {
		return nil
	}
	bufs := make(net.Buffers, 0, len(m.Segments)-m.segCursor)
	first := m.Segments[m.segCursor].Data
	if m.segOffset > 0 && m.segOffset < len(first) {
		first = first[m.segOffset:]
	}
	bufs = append(bufs, first)
	bufs = append(bufs, dataOnly(m.Segments[m.segCursor+1:])...)
	return bufs
}

func dataOnly(segs []Segment) net.Buffers {
	bufs := make(net.Buffers, len(segs))
	for i, s := range segs {
		bufs[i] = s.Data
	}
	return bufs
}

// consume advances the segment cursor by n bytes of confirmed writes.
func (m *Msg) consume(n int) {
	for n > 0 && m.segCursor < len(m.Segments) {
		seg := &m.Segments[m.segCursor]
		available := len(seg.Data) - m.segOffset
		if n < available {
			m.segOffset += n
			return
		}
		n -= available
		if seg.Release != nil {
			seg.Release()
			seg.Release = nil
		}
		m.segCursor++
		m.segOffset = 0
	}
}

func (m *Msg) drained() bool {
	return m.segCursor >= len(m.Segments)
}

// releaseSent releases any remaining item references in a fully-drained
// message (consume already releases segments it fully consumes; this
// covers the case of a zero-length trailing segment never touched by
// consume).
func releaseSent(m *Msg) {
	for i := m.segCursor; i < len(m.Segments); i++ {
		if m.Segments[i].Release != nil {
			m.Segments[i].Release()
			m.Segments[i].Release = nil
		}
	}
}
