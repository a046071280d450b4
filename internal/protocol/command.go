package protocol

import "bytes"

// Verb names, centralized the way the teacher's protocol package
// centralizes CommandGet/CommandSet/CommandExpire.
const (
	VerbGet       = "get"
	VerbBGet      = "bget"
	VerbMetaGet   = "metaget"
	VerbAdd       = "add"
	VerbSet       = "set"
	VerbReplace   = "replace"
	VerbIncr      = "incr"
	VerbDecr      = "decr"
	VerbDelete    = "delete"
	VerbFlushAll  = "flush_all"
	VerbFlushRgx  = "flush_regex"
	VerbStats     = "stats"
	VerbVerbosity = "verbosity"
	VerbVersion   = "version"
	VerbQuit      = "quit"
	VerbOwn       = "own"
	VerbDisown    = "disown"
	VerbBg        = "bg"
)

// MaxKeyLen mirrors internal/store.MaxKeyLen; duplicated here (rather than
// imported) so protocol stays independent of the store package, per
// SPEC_FULL.md 4.F's "Store semantics ... invoked through the narrow
// interface" — protocol only validates shape, never storage policy.
const MaxKeyLen = 250

// arity is [min, max] inclusive token counts, including the verb itself.
// max == -1 means unbounded (multi-key get/bget).
type arity struct{ min, max int }

// Counts include the verb itself. Storage/delete/incr/decr commands also
// accept a trailing "noreply" token, stripped by ParseLine before this
// check runs — so these bounds are the arity WITHOUT noreply.
var arityTable = map[string]arity{
	VerbGet:       {2, -1},
	VerbBGet:      {2, -1},
	VerbMetaGet:   {2, 2},
	VerbAdd:       {5, 5},
	VerbSet:       {5, 5},
	VerbReplace:   {5, 5},
	VerbIncr:      {3, 3},
	VerbDecr:      {3, 3},
	VerbDelete:    {2, 3},
	VerbFlushAll:  {1, 2},
	VerbFlushRgx:  {2, 2},
	VerbStats:     {1, -1},
	VerbVerbosity: {2, 2},
	VerbVersion:   {1, 1},
	VerbQuit:      {1, 1},
	VerbOwn:       {2, 2},
	VerbDisown:    {2, 2},
	VerbBg:        {2, 2},
}

// Command is one parsed request line: the verb plus its argument tokens
// (the verb itself excluded from Args), each a zero-copy view into the
// connection's read buffer — valid only until the next line is read (spec.md
// 4.F: "a Token is valid only for the duration of a single command
// dispatch").
type Command struct {
	Verb string
	Args [][]byte
	// Noreply is true when the final argument token is the literal
	// "noreply" sentinel, stripped from Args before the caller sees it.
	Noreply bool
}

// Key returns Args[i] as a string, validating the spec.md 250-byte limit.
func (c Command) Key(i int) (string, error) {
	if i >= len(c.Args) {
		return "", ClientError{Detail: BadFormat}
	}
	if len(c.Args[i]) > MaxKeyLen {
		return "", ClientError{Detail: BadFormat}
	}
	return string(c.Args[i]), nil
}

// ParseLine tokenizes and validates one command line (without its
// trailing "\r\n"), checking only shape: known verb, arity, and the
// "noreply" tail convention used by the storage and delete commands.
// Numeric argument values are NOT parsed here — callers use the
// ParseXxx helpers once they know which positions are numeric for this
// verb, since incr/delta/exptime occupy different positions per command.
func ParseLine(line []byte, maxTokens int) (Command, error) {
	tokens, rest := Tokenize(line, maxTokens)
	for rest != nil {
		var more [][]byte
		more, rest = Tokenize(rest, maxTokens)
		tokens = append(tokens, more...)
	}
	if len(tokens) == 0 {
		return Command{}, ErrEmptyCommand
	}

	verb := string(bytes.ToLower(tokens[0]))
	spec, ok := arityTable[verb]
	if !ok {
		return Command{}, ErrUnknownCommand
	}

	args := tokens[1:]
	noreply := false
	if n := len(args); n > 0 && string(args[n-1]) == "noreply" {
		noreply = true
		args = args[:n-1]
	}

	n := len(args) + 1
	if n < spec.min || (spec.max != -1 && n > spec.max) {
		return Command{}, ErrUnknownCommand
	}

	return Command{Verb: verb, Args: args, Noreply: noreply}, nil
}
