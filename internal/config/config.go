// Package config parses the CLI surface from SPEC_FULL.md 6 with
// spf13/pflag, the idiomatic modern getopt replacement (no repo in the
// corpus ships a flag library; see DESIGN.md).
package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// Config is the immutable result of parsing the command line.
type Config struct {
	TCPPort    int
	UDPPort    int
	UnixSocket string
	BindAddr   string

	Daemonize  bool
	Child      bool // internal re-exec flag for -d's fork-and-exec
	RaiseCore  bool
	User       string
	MaxBytes   int64
	NoEvict    bool
	MaxConns   int
	MemLock    bool
	Verbosity  int
	Managed    bool
	PidFile    string
	GrowthFactor float64
	Workers    int
	StatsDelim string
	ReqsPerEvent int
	ConnBufBudget int64

	Help    bool
	License bool
}

// errBinaryProtocolUnsupported is returned when -n/-N select the binary
// framing port, which SPEC_FULL.md 6 explicitly rejects rather than
// silently ignores (spec.md 1's "Out of scope" line).
var errBinaryProtocolUnsupported = fmt.Errorf("binary protocol ports (-n/-N) are not supported by this build")

// Parse builds a Config from argv (excluding the program name).
func Parse(argv []string) (Config, error) {
	fs := pflag.NewFlagSet("veloxd", pflag.ContinueOnError)

	var cfg Config
	var binPort, binUDPPort int

	fs.IntVarP(&cfg.TCPPort, "port", "p", 11211, "TCP port to listen on (0 disables TCP)")
	fs.IntVarP(&cfg.UDPPort, "udp-port", "U", 11211, "UDP port to listen on (0 disables UDP)")
	fs.StringVarP(&cfg.UnixSocket, "unix-socket", "s", "", "unix domain socket path (mutually exclusive with network ports)")
	fs.StringVarP(&cfg.BindAddr, "listen", "l", "0.0.0.0", "interface to bind to")
	fs.BoolVarP(&cfg.Daemonize, "daemon", "d", false, "run as a daemon")
	fs.BoolVar(&cfg.Child, "child", false, "internal: re-exec target of -d, do not set directly")
	fs.BoolVarP(&cfg.RaiseCore, "enable-coredumps", "r", false, "raise RLIMIT_CORE")
	fs.StringVarP(&cfg.User, "user", "u", "", "user to drop privileges to (accepted, not acted on)")
	fs.Int64VarP(&cfg.MaxBytes, "memory-limit", "m", 64*1024*1024, "max cache bytes (accepted, not enforced)")
	fs.BoolVarP(&cfg.NoEvict, "disable-evictions", "M", false, "return an error instead of evicting on OOM (accepted, not acted on)")
	fs.IntVarP(&cfg.MaxConns, "conn-limit", "c", 1024, "max simultaneous connections (accepted, not enforced)")
	fs.BoolVarP(&cfg.MemLock, "lock-memory", "k", false, "mlockall to prevent swapping")
	fs.CountVarP(&cfg.Verbosity, "verbose", "v", "increase log verbosity, stackable")
	fs.BoolVarP(&cfg.Managed, "managed", "b", false, "enable managed (bucket-owned) mode")
	fs.StringVarP(&cfg.PidFile, "pidfile", "P", "", "write the daemon pid to this file")
	fs.Float64VarP(&cfg.GrowthFactor, "growth-factor", "f", 1.25, "slab growth factor (accepted, not acted on)")
	fs.IntVarP(&cfg.Workers, "threads", "t", 4, "number of reactor worker goroutines")
	fs.StringVarP(&cfg.StatsDelim, "stats-delimiter", "D", "", "per-prefix stats delimiter (accepted, not acted on)")
	fs.IntVarP(&cfg.ReqsPerEvent, "reqs-per-event", "R", 20, "max requests served per connection per event")
	fs.Int64VarP(&cfg.ConnBufBudget, "conn-buffer-budget", "C", 0, "total conn-buffer byte budget (accepted, not enforced)")
	fs.IntVarP(&binPort, "binary-port", "n", 0, "binary protocol TCP port (unsupported, rejected if set)")
	fs.IntVarP(&binUDPPort, "binary-udp-port", "N", 0, "binary protocol UDP port (unsupported, rejected if set)")
	fs.BoolVarP(&cfg.Help, "help", "h", false, "print usage and exit")
	fs.BoolVarP(&cfg.License, "license", "i", false, "print license and exit")

	if err := fs.Parse(argv); err != nil {
		return Config{}, err
	}

	if binPort != 0 || binUDPPort != 0 {
		return Config{}, errBinaryProtocolUnsupported
	}
	if cfg.UnixSocket != "" && (cfg.TCPPort != 0 || cfg.UDPPort != 0) {
		return Config{}, fmt.Errorf("config: unix socket (-s) is mutually exclusive with network ports (-p/-U)")
	}

	return cfg, nil
}
