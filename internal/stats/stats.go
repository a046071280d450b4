// Package stats implements the counters backing the `stats` command
// family from spec.md 4.F: the general snapshot, reset, and the detail
// on/off toggle; the other subcommands render the general snapshot.
// Counters are atomics, so no shared lock sits on the hot path, and
// Aggregate merges any number of Counters on read.
package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Counters holds running totals. cmd/veloxd wires one Counters shared
// by every worker; Aggregate turns it into a Snapshot on demand.
type Counters struct {
	CmdGet      atomic.Int64
	CmdSet      atomic.Int64
	GetHits     atomic.Int64
	GetMisses   atomic.Int64
	Deletes     atomic.Int64
	Incrs       atomic.Int64
	Decrs       atomic.Int64
	FlushAlls   atomic.Int64
	BytesRead   atomic.Int64
	BytesWritten atomic.Int64
	Connections atomic.Int64
	CurrConns   atomic.Int64

	detailOn atomic.Bool
}

// New returns a zeroed Counters, ready for concurrent use.
func New() *Counters { return &Counters{} }

// SetDetail toggles the "detail on|off" verbose per-key tracking switch.
// This repo only tracks the boolean; no per-key detail is captured.
func (c *Counters) SetDetail(on bool) { c.detailOn.Store(on) }

// DetailOn reports the current detail toggle.
func (c *Counters) DetailOn() bool { return c.detailOn.Load() }

// Reset zeroes every running counter for the `stats reset` subcommand,
// leaving the detail toggle untouched (original_source/memcached.c's own
// stats_reset leaves settings alone and only zeroes counters).
func (c *Counters) Reset() {
	c.CmdGet.Store(0)
	c.CmdSet.Store(0)
	c.GetHits.Store(0)
	c.GetMisses.Store(0)
	c.Deletes.Store(0)
	c.Incrs.Store(0)
	c.Decrs.Store(0)
	c.FlushAlls.Store(0)
	c.BytesRead.Store(0)
	c.BytesWritten.Store(0)
	c.Connections.Store(0)
	// CurrConns is not reset: it tracks live sockets, not a cumulative
	// counter, and zeroing it would desync it from reality.
}

// Snapshot is an aggregated, point-in-time view across every worker.
type Snapshot struct {
	Uptime      time.Duration
	CmdGet      int64
	CmdSet      int64
	GetHits     int64
	GetMisses   int64
	Deletes     int64
	Incrs       int64
	Decrs       int64
	FlushAlls   int64
	BytesRead   int64
	BytesWritten int64
	CurrConns   int64
	TotalConns  int64
	CurrItems   int64
}

// Aggregate merges every worker's Counters plus the live item count into
// one Snapshot.
func Aggregate(started time.Time, currItems int64, workers ...*Counters) Snapshot {
	s := Snapshot{Uptime: time.Since(started), CurrItems: currItems}
	for _, c := range workers {
		s.CmdGet += c.CmdGet.Load()
		s.CmdSet += c.CmdSet.Load()
		s.GetHits += c.GetHits.Load()
		s.GetMisses += c.GetMisses.Load()
		s.Deletes += c.Deletes.Load()
		s.Incrs += c.Incrs.Load()
		s.Decrs += c.Decrs.Load()
		s.FlushAlls += c.FlushAlls.Load()
		s.BytesRead += c.BytesRead.Load()
		s.BytesWritten += c.BytesWritten.Load()
		s.CurrConns += c.CurrConns.Load()
		s.TotalConns += c.Connections.Load()
	}
	return s
}

// Lines renders the general `stats` subcommand body as "STAT k v" lines,
// without the trailing END (the caller appends that per spec.md 4.F).
func (s Snapshot) Lines() []string {
	return []string{
		fmt.Sprintf("STAT uptime %d", int64(s.Uptime.Seconds())),
		fmt.Sprintf("STAT curr_connections %d", s.CurrConns),
		fmt.Sprintf("STAT total_connections %d", s.TotalConns),
		fmt.Sprintf("STAT cmd_get %d", s.CmdGet),
		fmt.Sprintf("STAT cmd_set %d", s.CmdSet),
		fmt.Sprintf("STAT get_hits %d", s.GetHits),
		fmt.Sprintf("STAT get_misses %d", s.GetMisses),
		fmt.Sprintf("STAT delete_hits %d", s.Deletes),
		fmt.Sprintf("STAT incr_hits %d", s.Incrs),
		fmt.Sprintf("STAT decr_hits %d", s.Decrs),
		fmt.Sprintf("STAT flush_all %d", s.FlushAlls),
		fmt.Sprintf("STAT bytes_read %d", s.BytesRead),
		fmt.Sprintf("STAT bytes_written %d", s.BytesWritten),
		fmt.Sprintf("STAT curr_items %d", s.CurrItems),
	}
}
