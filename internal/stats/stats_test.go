package stats

import (
	"testing"
	"time"
)

func TestAggregateSumsAcrossWorkers(t *testing.T) {
	a, b := New(), New()
	a.CmdGet.Add(3)
	b.CmdGet.Add(4)
	a.GetHits.Add(1)
	b.GetMisses.Add(2)

	snap := Aggregate(time.Now().Add(-time.Minute), 10, a, b)
	if snap.CmdGet != 7 {
		t.Fatalf("expected CmdGet 7, got %d", snap.CmdGet)
	}
	if snap.GetHits != 1 || snap.GetMisses != 2 {
		t.Fatalf("unexpected hit/miss totals: %+v", snap)
	}
	if snap.CurrItems != 10 {
		t.Fatalf("expected CurrItems 10, got %d", snap.CurrItems)
	}
}

func TestLinesIncludesUptime(t *testing.T) {
	snap := Aggregate(time.Now().Add(-5*time.Second), 0)
	lines := snap.Lines()
	if len(lines) == 0 {
		t.Fatalf("expected non-empty stats lines")
	}
}

func TestDetailToggle(t *testing.T) {
	c := New()
	if c.DetailOn() {
		t.Fatalf("detail should start off")
	}
	c.SetDetail(true)
	if !c.DetailOn() {
		t.Fatalf("expected detail on after SetDetail(true)")
	}
}
