package protocol

import "testing"

func TestTokenizeSplitsOnSpaces(t *testing.T) {
	tokens, rem := Tokenize([]byte("get foo bar"), 10)
	if len(tokens) != 3 || rem != nil {
		t.Fatalf("got %d tokens, remaining %q", len(tokens), rem)
	}
	if string(tokens[0]) != "get" || string(tokens[2]) != "bar" {
		t.Fatalf("unexpected tokens: %v", tokens)
	}
}

func TestTokenizeRespectsBudget(t *testing.T) {
	tokens, rem := Tokenize([]byte("a b c d"), 3)
	if len(tokens) != 2 {
		t.Fatalf("expected 2 tokens within budget, got %d", len(tokens))
	}
	if string(rem) != "c d" {
		t.Fatalf("expected leftover 'c d', got %q", rem)
	}
}

func TestTokenizeCollapsesRepeatedSpaces(t *testing.T) {
	tokens, _ := Tokenize([]byte("get  foo   bar"), 10)
	if len(tokens) != 3 {
		t.Fatalf("expected repeated spaces to collapse, got %d tokens: %v", len(tokens), tokens)
	}
}

func TestParseLineUnknownVerb(t *testing.T) {
	if _, err := ParseLine([]byte("frobnicate x"), 10); err != ErrUnknownCommand {
		t.Fatalf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestParseLineEmpty(t *testing.T) {
	if _, err := ParseLine([]byte(""), 10); err != ErrEmptyCommand {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestParseLineWrongArity(t *testing.T) {
	if _, err := ParseLine([]byte("set a b"), 10); err != ErrUnknownCommand {
		t.Fatalf("expected arity rejection, got %v", err)
	}
}

func TestParseLineMultiGet(t *testing.T) {
	cmd, err := ParseLine([]byte("get a b c d e"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cmd.Args) != 5 {
		t.Fatalf("expected 5 keys, got %d", len(cmd.Args))
	}
}

func TestParseLineNoreplyStripped(t *testing.T) {
	cmd, err := ParseLine([]byte("set k 0 0 3 noreply"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cmd.Noreply {
		t.Fatalf("expected Noreply true")
	}
	if len(cmd.Args) != 4 {
		t.Fatalf("expected noreply stripped from args, got %d: %v", len(cmd.Args), cmd.Args)
	}
}

func TestKeyRejectsOversize(t *testing.T) {
	big := make([]byte, MaxKeyLen+1)
	for i := range big {
		big[i] = 'k'
	}
	cmd := Command{Args: [][]byte{big}}
	if _, err := cmd.Key(0); err == nil {
		t.Fatalf("expected oversized key to be rejected")
	}
}

func TestParseFlagsRejectsGarbage(t *testing.T) {
	if _, err := ParseFlags([]byte("not-a-number")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestParseExptimeAcceptsNegative(t *testing.T) {
	v, err := ParseExptime([]byte("-1"))
	if err != nil || v != -1 {
		t.Fatalf("got (%d, %v), want (-1, nil)", v, err)
	}
}
