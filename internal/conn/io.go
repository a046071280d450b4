package conn

import (
	"net"

	"golang.org/x/sys/unix"
)

// fdWriter adapts a raw non-blocking fd to assembler.Writer, using
// writev for scatter/gather sends — the TCP/Unix-stream path.
type fdWriter struct{ fd int }

func (w fdWriter) WriteV(bufs net.Buffers) (int, error, bool) {
	iovs := make([][]byte, len(bufs))
	for i, b := range bufs {
		iovs[i] = b
	}
	n, err := unix.Writev(w.fd, iovs)
	if err == unix.EAGAIN {
		return n, err, true
	}
	return n, err, false
}

// udpWriter adapts a raw non-blocking UDP socket to assembler.Writer,
// sending each message as one datagram to addr via sendto. UDP datagrams
// don't partially send, so a successful call always reports the full
// buffered length.
type udpWriter struct {
	fd   int
	addr unix.Sockaddr
}

func (w udpWriter) WriteV(bufs net.Buffers) (int, error, bool) {
	total := 0
	for _, b := range bufs {
		total += len(b)
	}
	flat := make([]byte, 0, total)
	for _, b := range bufs {
		flat = append(flat, b...)
	}
	err := unix.Sendto(w.fd, flat, 0, w.addr)
	if err == unix.EAGAIN {
		return 0, err, true
	}
	if err != nil {
		return 0, err, false
	}
	return total, nil, false
}

// readRaw performs one non-blocking read attempt into buf, returning
// bytes read, whether the peer closed (EOF), and whether nothing was
// available right now (would-block).
func readRaw(fd int, buf []byte) (n int, eof bool, wouldBlock bool, err error) {
	n, err = unix.Read(fd, buf)
	if err == unix.EAGAIN {
		return 0, false, true, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	if n == 0 {
		return 0, true, false, nil
	}
	return n, false, false, nil
}

// recvfromUDP performs one non-blocking recvfrom, capturing the sender's
// address for the reply path (UDP is connectionless: every datagram can
// come from a different peer).
func recvfromUDP(fd int, buf []byte) (n int, from unix.Sockaddr, wouldBlock bool, err error) {
	n, from, err = unix.Recvfrom(fd, buf, 0)
	if err == unix.EAGAIN {
		return 0, nil, true, nil
	}
	if err != nil {
		return 0, nil, false, err
	}
	return n, from, false, nil
}
