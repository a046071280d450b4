package bufpool

import "testing"

func TestGetReturnsPageSizedBuffer(t *testing.T) {
	p := New()
	buf := p.Get()
	if len(buf) != PageSize {
		t.Fatalf("expected PageSize buffer, got %d", len(buf))
	}
}

func TestOversizedBufferNeverReturnedAfterPut(t *testing.T) {
	p := New()
	buf := p.Get()
	grown := append(buf[:0], make([]byte, HighWater+1)...)
	p.Put(grown)

	if p.Stats()["conn_buffer_drops"] != 1 {
		t.Fatalf("expected the oversized buffer to be dropped, not pooled")
	}

	for i := 0; i < 8; i++ {
		b := p.Get()
		if cap(b) > HighWater {
			t.Fatalf("oversized buffer leaked back out of the pool")
		}
		p.Put(b)
	}
}

func TestStatsCountGetsAndPuts(t *testing.T) {
	p := New()
	b := p.Get()
	p.Put(b)
	stats := p.Stats()
	if stats["conn_buffer_gets"] != 1 || stats["conn_buffer_puts"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
