package conn

import (
	"bytes"
	"encoding/binary"

	"veloxd/internal/assembler"
	"veloxd/internal/protocol"
)

// udpDatagramMax is the largest inbound UDP datagram this connection will
// accept in one recvfrom, matching the assembler's own outbound cap.
const udpDatagramMax = assembler.UDPMaxPayload

// driveReadingUDP receives one datagram, validates its 8-byte framing
// header, and dispatches the single command line it carries. Multi-
// packet requests (seqCount > 1) are rejected outright — this repo never
// reassembles an inbound request split across datagrams, matching
// spec.md 8 scenario 6's "SERVER_ERROR multi-packet request not
// supported".
func (c *Conn) driveReadingUDP(ex *Executor) (Outcome, bool) {
	scratch := c.bufs.Get()
	defer c.bufs.Put(scratch)
	if len(scratch) > udpDatagramMax {
		scratch = scratch[:udpDatagramMax]
	}

	n, from, wouldBlock, err := recvfromUDP(c.Fd, scratch)
	if err != nil {
		return OutcomeArmRead, false
	}
	if wouldBlock {
		return OutcomeArmRead, false
	}
	if n < assembler.UDPHeaderSize {
		return OutcomeArmRead, true
	}

	datagram := scratch[:n]
	reqID := binary.BigEndian.Uint16(datagram[0:2])
	seqCount := binary.BigEndian.Uint16(datagram[4:6])

	c.Peer = from
	c.UDPReqID = reqID
	c.queue.ReqID = reqID

	if seqCount > 1 {
		ex.queueLine(c, "SERVER_ERROR multi-packet request not supported")
		c.transition(StateWrite)
		return c.armForState(), true
	}

	payload := datagram[assembler.UDPHeaderSize:]

	// The header line ends at the first "\r\n"; for non-storage commands
	// that's also the end of the payload (tolerate its absence, since
	// some clients omit the trailing CRLF on a single-packet datagram).
	// Storage commands carry their data block after that line, inline in
	// the same datagram rather than a separate nread phase — there is no
	// stream to keep reading from over UDP, so the whole value must
	// already be present (original_source/memcached.c's UDP path works
	// the same way, bounded to one packet per request).
	line := payload
	var dataBlock []byte
	if idx := bytes.Index(payload, []byte("\r\n")); idx >= 0 {
		line = payload[:idx]
		dataBlock = payload[idx+2:]
	}

	cmd, err2 := protocol.ParseLine(line, maxTokens)
	if err2 != nil {
		ex.queueLine(c, wireError(err2))
		c.transition(StateWrite)
		return c.armForState(), true
	}

	switch cmd.Verb {
	case protocol.VerbAdd, protocol.VerbSet, protocol.VerbReplace:
		ex.doUDPStore(c, cmd, dataBlock)
	default:
		ex.Dispatch(c, cmd)
	}
	return c.armForState(), true
}
