package conn

import (
	"veloxd/internal/protocol"
)

// maxTokens is the per-pass tokenizer budget (spec.md 4.F) ParseLine
// uses; ParseLine keeps tokenizing the remainder, so a multi-key get with
// more keys than this is not truncated.
const maxTokens = 256

// maxLineLen is the read-buffer size at or above which a buffer that has
// filled up without holding a complete command line is rejected as
// malformed; smaller buffers are doubled first. Read buffers come from
// bufpool at PageSize (16KB), which is already above this, so a line is
// rejected once it fills that buffer.
const maxLineLen = 8 * 1024

// Drive runs the connection's state machine until it has served budget
// requests, has nothing left to do without blocking, or must yield for
// I/O — the reqs-per-event budget and "I/O short-circuit" rule from
// spec.md 4.G, enforced here rather than left to the reactor.
func (c *Conn) Drive(ex *Executor, budget int) Outcome {
	for budget > 0 {
		switch c.state {
		case StateReading:
			before := c.state
			outcome, progressed := c.driveReading(ex)
			if !progressed {
				return outcome
			}
			if c.state != before {
				budget-- // a command was parsed and dispatched
			}

		case StateNread:
			before := c.state
			outcome, progressed := c.driveNread(ex)
			if !progressed {
				return outcome
			}
			if c.state != before {
				budget--
			}

		case StateSwallow:
			outcome, progressed := c.driveSwallow()
			if !progressed {
				return outcome
			}

		case StateWrite, StateMwrite:
			outcome, progressed := c.driveWrite()
			if !progressed {
				return outcome
			}
			budget--

		case StateClosing:
			return OutcomeClose
		}
	}
	return c.armForState()
}

func (c *Conn) armForState() Outcome {
	switch c.state {
	case StateWrite, StateMwrite:
		return OutcomeArmWrite
	case StateClosing:
		return OutcomeClose
	default:
		return OutcomeArmRead
	}
}

// driveReading tries to parse one command line from already-buffered
// bytes; if none is available it attempts one more non-blocking read.
// progressed is false exactly when the caller should return to the
// reactor (either armed for more input, or because the peer is gone).
func (c *Conn) driveReading(ex *Executor) (Outcome, bool) {
	if c.Transport == TransportUDP {
		return c.driveReadingUDP(ex)
	}

	c.ensureReadBuf()

	line, ok := c.findLine()
	if !ok {
		if c.readValid == len(c.readBuf) {
			if len(c.readBuf) >= maxLineLen {
				c.reportLineTooLong(ex)
				return OutcomeArmWrite, false
			}
			c.growReadBuf()
		}

		n, eof, wouldBlock, err := readRaw(c.Fd, c.readBuf[c.readValid:])
		if err != nil {
			c.transition(StateClosing)
			return OutcomeClose, false
		}
		if eof {
			c.transition(StateClosing)
			return OutcomeClose, false
		}
		if wouldBlock {
			return OutcomeArmRead, false
		}
		c.readValid += n
		return OutcomeArmRead, true
	}

	cmd, err := protocol.ParseLine(line, maxTokens)
	if err != nil {
		ex.queueLine(c, wireError(err))
		c.transition(StateWrite)
		return OutcomeArmWrite, true
	}

	switch cmd.Verb {
	case protocol.VerbAdd, protocol.VerbSet, protocol.VerbReplace:
		ex.BeginStore(c, cmd)
	default:
		ex.Dispatch(c, cmd)
	}
	return c.armForState(), true
}

func wireError(err error) string {
	if err == protocol.ErrUnknownCommand {
		return "ERROR"
	}
	return err.Error()
}

func (c *Conn) reportLineTooLong(ex *Executor) {
	ex.queueLine(c, "CLIENT_ERROR "+protocol.BadFormat)
	c.transition(StateWrite)
}

// driveNread accumulates the value payload for an in-flight storage
// command, pulling first from whatever is still sitting in readBuf
// before issuing a fresh read.
func (c *Conn) driveNread(ex *Executor) (Outcome, bool) {
	need := len(c.nreadBuf) - c.nreadGot

	if avail := c.readValid - c.readStart; avail > 0 && need > 0 {
		take := avail
		if take > need {
			take = need
		}
		copy(c.nreadBuf[c.nreadGot:], c.readBuf[c.readStart:c.readStart+take])
		c.nreadGot += take
		c.readStart += take
		need -= take
	}

	if need == 0 {
		ex.FinishStore(c)
		return c.armForState(), true
	}

	n, eof, wouldBlock, err := readRaw(c.Fd, c.nreadBuf[c.nreadGot:])
	if err != nil || eof {
		c.transition(StateClosing)
		return OutcomeClose, false
	}
	if wouldBlock {
		return OutcomeArmRead, false
	}
	c.nreadGot += n
	return OutcomeArmRead, true
}

func (c *Conn) driveSwallow() (Outcome, bool) {
	if c.swallowRemaining == 0 {
		c.transition(StateReading)
		return OutcomeArmRead, true
	}
	scratch := c.bufs.Get()
	defer c.bufs.Put(scratch)
	if len(scratch) > c.swallowRemaining {
		scratch = scratch[:c.swallowRemaining]
	}
	n, eof, wouldBlock, err := readRaw(c.Fd, scratch)
	if err != nil || eof {
		c.transition(StateClosing)
		return OutcomeClose, false
	}
	if wouldBlock {
		return OutcomeArmRead, false
	}
	c.swallowRemaining -= n
	return OutcomeArmRead, true
}

func (c *Conn) driveWrite() (Outcome, bool) {
	switch c.transmit() {
	case assemblerComplete:
		c.transition(StateReading)
		return OutcomeArmRead, true
	case assemblerIncomplete, assemblerSoftError:
		return OutcomeArmWrite, false
	default:
		c.transition(StateClosing)
		return OutcomeClose, false
	}
}
