package timer

import "testing"

func TestDisabledProfilerNeverRecords(t *testing.T) {
	p := NewProfiler(NewClock(1000), 8)
	span := p.Start("fn", 0)
	span.Stop()
	if _, _, _, _, ok := p.FuncStats("fn"); ok {
		t.Fatal("disabled profiler recorded a span")
	}
}

func TestEnabledProfilerAggregatesCallCounts(t *testing.T) {
	p := NewProfiler(NewClock(1000), 8)
	p.SetEnabled(true)
	for i := 0; i < 3; i++ {
		span := p.Start("fn", 0)
		span.Stop()
	}
	total, calls, _, _, ok := p.FuncStats("fn")
	if !ok {
		t.Fatal("expected fn to have stats")
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	_ = total
}

func TestFuncStatsUnknownFunctionNotOK(t *testing.T) {
	p := NewProfiler(NewClock(1000), 8)
	if _, _, _, _, ok := p.FuncStats("missing"); ok {
		t.Fatal("expected ok=false for unknown function")
	}
}

func TestRingBufferDropsPastCapacity(t *testing.T) {
	p := NewProfiler(NewClock(1000), 2)
	p.SetEnabled(true)
	for i := 0; i < 5; i++ {
		span := p.Start("fn", 0)
		span.Stop()
	}
	if p.DroppedCount() == 0 {
		t.Fatal("expected dropped entries once ring buffer capacity is exceeded")
	}
	if len(p.Snapshot()) != 2 {
		t.Fatalf("Snapshot length = %d, want 2 (ring capacity)", len(p.Snapshot()))
	}
}

func TestNewProfilerDefaultsCapacity(t *testing.T) {
	p := NewProfiler(NewClock(1000), 0)
	if len(p.ring) != 4096 {
		t.Fatalf("default ring capacity = %d, want 4096", len(p.ring))
	}
}

func TestSessionIDIsPopulated(t *testing.T) {
	p := NewProfiler(NewClock(1000), 4)
	var zero [16]byte
	if p.SessionID == zero {
		t.Fatal("SessionID is zero value, want a generated UUID")
	}
}
