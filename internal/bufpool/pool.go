// Package bufpool implements the connection-buffer pool from spec.md
// 4.B: page-sized recyclable read buffers with a high-water shrink
// policy, grounded on xDarkicex-zippy's chunkPool/bufferPool sync.Pool
// pattern.
package bufpool

import (
	"sync"
	"sync/atomic"
)

// PageSize is the default allocation unit, matching the original's
// DATA_BUFFER_SIZE default.
const PageSize = 16 * 1024

// HighWater is the largest buffer Put will return to the pool; anything
// bigger is dropped so one oversized request doesn't permanently bloat
// every connection's steady-state memory (spec.md 4.B shrink policy).
const HighWater = 8 * PageSize

// Pool hands out []byte buffers sized PageSize and reclaims them on Put,
// tracking aggregate counts for the conn_buffer stats subcommand.
type Pool struct {
	pool sync.Pool

	gets   atomic.Int64
	puts   atomic.Int64
	drops  atomic.Int64 // Put calls that exceeded HighWater and were discarded
	allocs atomic.Int64 // New() calls by the underlying pool
}

// New creates an empty pool; buffers are allocated lazily on first Get.
func New() *Pool {
	p := &Pool{}
	p.pool.New = func() any {
		p.allocs.Add(1)
		return make([]byte, PageSize)
	}
	return p
}

// Get returns a buffer of at least PageSize bytes, reused from the pool
// when available.
func (p *Pool) Get() []byte {
	p.gets.Add(1)
	return p.pool.Get().([]byte)
}

// Put returns buf to the pool unless it grew past HighWater, in which
// case it's dropped so the pool's steady-state footprint stays bounded.
func (p *Pool) Put(buf []byte) {
	p.puts.Add(1)
	if cap(buf) > HighWater {
		p.drops.Add(1)
		return
	}
	p.pool.Put(buf[:PageSize])
}

// Stats returns the pool's counters keyed by their conn_buffer stats
// names (spec.md 4.F); the caller renders the STAT lines and the END.
func (p *Pool) Stats() map[string]int64 {
	return map[string]int64{
		"conn_buffer_gets":   p.gets.Load(),
		"conn_buffer_puts":   p.puts.Load(),
		"conn_buffer_drops":  p.drops.Load(),
		"conn_buffer_allocs": p.allocs.Load(),
	}
}
