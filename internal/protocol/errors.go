package protocol

import "errors"

// ErrEmptyCommand is returned for a blank input line.
var ErrEmptyCommand = errors.New("empty command")

// ClientError wraps a malformed-request detail, rendered as
// "CLIENT_ERROR <detail>" per spec.md 4.F/7.
type ClientError struct{ Detail string }

func (e ClientError) Error() string { return "CLIENT_ERROR " + e.Detail }

// ServerError wraps an internal failure, rendered as "SERVER_ERROR <detail>".
type ServerError struct{ Detail string }

func (e ServerError) Error() string { return "SERVER_ERROR " + e.Detail }

// ErrUnknownCommand renders as the bare "ERROR" line (spec.md 4.F:
// unrecognized verbs get the generic error, not a CLIENT_ERROR detail).
var ErrUnknownCommand = errors.New("ERROR")

// BadFormat is the detail text used uniformly for any numeric-argument
// parse failure (spec.md 9 Open Question i: reject any strconv error
// rather than trying to reproduce strtoul/errno ambiguity).
const BadFormat = "bad command line format"

// BadDataChunk is the detail text for a missing/misplaced "\r\n" after a
// store payload (spec.md 7: protocol error on store payload).
const BadDataChunk = "bad data chunk"
