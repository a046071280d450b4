//go:build linux

package listener

import "golang.org/x/sys/unix"

// HasReusePort reports whether per-worker UDP sockets can each bind the
// same port independently (spec.md 9 Open Question ii, resolved in
// SPEC_FULL.md 9).
const HasReusePort = true

func setReusePort(fd int) error {
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
}
