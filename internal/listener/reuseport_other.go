//go:build !linux

package listener

// HasReusePort is false on platforms without SO_REUSEPORT support wired
// here; the listener falls back to one shared UDP socket handed to every
// worker (SPEC_FULL.md 9 Open Question ii).
const HasReusePort = false

func setReusePort(fd int) error {
	return nil
}
