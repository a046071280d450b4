package config

import "testing"

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TCPPort != 11211 || cfg.Workers != 4 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseRejectsBinaryPort(t *testing.T) {
	if _, err := Parse([]string{"-n", "11212"}); err == nil {
		t.Fatalf("expected binary protocol port to be rejected")
	}
}

func TestParseRejectsUnixSocketWithNetworkPorts(t *testing.T) {
	if _, err := Parse([]string{"-s", "/tmp/veloxd.sock"}); err == nil {
		t.Fatalf("expected unix socket + default TCP/UDP ports to conflict")
	}
}

func TestParseStackedVerbosity(t *testing.T) {
	cfg, err := Parse([]string{"-vvv"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Verbosity != 3 {
		t.Fatalf("expected verbosity 3, got %d", cfg.Verbosity)
	}
}
