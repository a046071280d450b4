package assembler

import "encoding/binary"

// BuildUDPHeaders synthesizes the 8-byte framing header (spec.md 6) at the
// front of every queued message: request id, this message's index, total
// message count, and the byte offset of the first "response start"
// segment (0 if none was marked). Call it after the full response has
// been queued and before Transmit; calling it again rewrites the same
// bytes.
func (q *Queue) BuildUDPHeaders() {
	if !q.Datagram {
		return
	}
	total := uint16(len(q.Msgs))
	for i := range q.Msgs {
		m := &q.Msgs[i]
		if !m.headerReserved || len(m.Segments) == 0 {
			continue
		}
		hdr := m.Segments[0].Data
		if len(hdr) < UDPHeaderSize {
			continue
		}
		offset := 0
		if m.hasStart {
			offset = m.startOffset
		}
		binary.BigEndian.PutUint16(hdr[0:2], q.ReqID)
		binary.BigEndian.PutUint16(hdr[2:4], uint16(i))
		binary.BigEndian.PutUint16(hdr[4:6], total)
		binary.BigEndian.PutUint16(hdr[6:8], uint16(offset))
	}
}
