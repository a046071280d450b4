package protocol

import "strconv"

// ParseFlags parses the 32-bit opaque client flags argument. Any parse
// error (including out-of-range) is reported uniformly as "bad command
// line format" (spec.md 9 Open Question i).
func ParseFlags(tok []byte) (uint32, error) {
	v, err := strconv.ParseUint(string(tok), 10, 32)
	if err != nil {
		return 0, ClientError{Detail: BadFormat}
	}
	return uint32(v), nil
}

// ParseExptime parses a signed expiry argument: 0 (never), a relative
// offset (<= clock.ThirtyDays), or an absolute unix time. Interpretation
// of the magnitude happens in internal/clock.Realtime; this just does the
// strict integer parse.
func ParseExptime(tok []byte) (int64, error) {
	v, err := strconv.ParseInt(string(tok), 10, 64)
	if err != nil {
		return 0, ClientError{Detail: BadFormat}
	}
	return v, nil
}

// ParseLength parses the value byte-length argument of a storage command.
func ParseLength(tok []byte) (int, error) {
	v, err := strconv.ParseUint(string(tok), 10, 32)
	if err != nil {
		return 0, ClientError{Detail: BadFormat}
	}
	return int(v), nil
}

// ParseDelta parses the incr/decr magnitude, always non-negative.
func ParseDelta(tok []byte) (uint64, error) {
	v, err := strconv.ParseUint(string(tok), 10, 64)
	if err != nil {
		return 0, ClientError{Detail: BadFormat}
	}
	return v, nil
}

// ParseGraceSeconds parses the optional deferred-delete grace period.
func ParseGraceSeconds(tok []byte) (int64, error) {
	v, err := strconv.ParseInt(string(tok), 10, 32)
	if err != nil {
		return 0, ClientError{Detail: BadFormat}
	}
	return v, nil
}

// ParseCas parses a 64-bit CAS token.
func ParseCas(tok []byte) (uint64, error) {
	v, err := strconv.ParseUint(string(tok), 10, 64)
	if err != nil {
		return 0, ClientError{Detail: BadFormat}
	}
	return v, nil
}
