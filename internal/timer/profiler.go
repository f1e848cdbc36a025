package timer

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Entry is one ring-buffer record: a single function invocation's timing,
// tagged with the worker that produced it.
type Entry struct {
	Function   string
	StartTicks uint64
	EndTicks   uint64
	DurationUs uint64
	WorkerID   int
}

// FuncAggregate accumulates per-function statistics across every call,
// updated with lock-free atomic adds so any worker can report into it
// without contending on a mutex.
type FuncAggregate struct {
	TotalUs atomic.Uint64
	Calls   atomic.Uint64
	MinUs   atomic.Uint64
	MaxUs   atomic.Uint64
}

func (a *FuncAggregate) record(us uint64) {
	a.TotalUs.Add(us)
	a.Calls.Add(1)
	for {
		cur := a.MinUs.Load()
		if cur != 0 && cur <= us {
			break
		}
		if a.MinUs.CompareAndSwap(cur, us) {
			break
		}
	}
	for {
		cur := a.MaxUs.Load()
		if cur >= us {
			break
		}
		if a.MaxUs.CompareAndSwap(cur, us) {
			break
		}
	}
}

// AllocAggregate accumulates bytes in/out and peak usage for one named
// allocation site (a KV cache slab, the embedding table, a run-state
// scratch buffer, ...).
type AllocAggregate struct {
	BytesOut atomic.Int64
	BytesIn  atomic.Int64
	Peak     atomic.Int64
	Calls    atomic.Uint64
}

func (a *AllocAggregate) recordOut(n int64) {
	a.BytesOut.Add(n)
	a.Calls.Add(1)
	cur := a.BytesOut.Load() - a.BytesIn.Load()
	for {
		peak := a.Peak.Load()
		if peak >= cur {
			break
		}
		if a.Peak.CompareAndSwap(peak, cur) {
			break
		}
	}
}

func (a *AllocAggregate) recordIn(n int64) {
	a.BytesIn.Add(n)
}

// Profiler owns a fixed-capacity ring buffer of Entry plus the per-function
// and per-allocation-site aggregate maps. Enable/disable is a single flag;
// when disabled, Start/Stop never read the clock, matching spec.md §4.7's
// "free of timer reads" requirement.
type Profiler struct {
	SessionID uuid.UUID

	clock   *Clock
	enabled atomic.Bool

	mu      sync.Mutex
	ring    []Entry
	head    uint64
	dropped atomic.Uint64

	funcs  sync.Map // string -> *FuncAggregate
	allocs sync.Map // string -> *AllocAggregate
}

// NewProfiler allocates a ring buffer of the given capacity. Capacity is
// fixed for the engine's lifetime; overflow overwrites the oldest entry
// and increments the drop counter rather than growing the buffer, so the
// profiler never perturbs the heap budget it is trying to measure.
func NewProfiler(clock *Clock, capacity int) *Profiler {
	if capacity <= 0 {
		capacity = 4096
	}
	return &Profiler{
		SessionID: uuid.New(),
		clock:     clock,
		ring:      make([]Entry, capacity),
	}
}

// SetEnabled flips the single profiling flag.
func (p *Profiler) SetEnabled(on bool) { p.enabled.Store(on) }

// Enabled reports the current flag state.
func (p *Profiler) Enabled() bool { return p.enabled.Load() }

// Span is a started-but-not-yet-stopped timing; Stop appends it to the
// ring buffer and the function aggregate table.
type Span struct {
	p        *Profiler
	function string
	worker   int
	start    uint64
	live     bool
}

// Start begins timing function on behalf of worker. When profiling is
// disabled this is a cheap no-op that performs no clock read.
func (p *Profiler) Start(function string, worker int) Span {
	if !p.enabled.Load() {
		return Span{}
	}
	return Span{p: p, function: function, worker: worker, start: p.clock.Now(), live: true}
}

// Stop records the span's duration into the ring buffer (slot claimed and
// written under the ring mutex, so one writer per slot) and the lock-free
// per-function aggregate.
func (s Span) Stop() {
	if !s.live {
		return
	}
	end := s.p.clock.Now()
	us := s.p.clock.TicksToUs(end - s.start)

	s.p.mu.Lock()
	slot := s.p.head
	s.p.head++
	idx := slot % uint64(len(s.p.ring))
	if slot >= uint64(len(s.p.ring)) {
		s.p.dropped.Add(1)
	}
	s.p.ring[idx] = Entry{
		Function:   s.function,
		StartTicks: s.start,
		EndTicks:   end,
		DurationUs: us,
		WorkerID:   s.worker,
	}
	s.p.mu.Unlock()

	agg, _ := s.p.funcs.LoadOrStore(s.function, &FuncAggregate{})
	agg.(*FuncAggregate).record(us)
}

// RecordAlloc tracks a named allocation site's bytes-out/bytes-in/peak.
// bytesOut > 0 on allocation, passed again as bytesIn on the matching free.
func (p *Profiler) RecordAlloc(site string, bytesOut, bytesIn int64) {
	if !p.enabled.Load() {
		return
	}
	agg, _ := p.allocs.LoadOrStore(site, &AllocAggregate{})
	a := agg.(*AllocAggregate)
	if bytesOut > 0 {
		a.recordOut(bytesOut)
	}
	if bytesIn > 0 {
		a.recordIn(bytesIn)
	}
}

// DroppedCount returns how many ring-buffer entries were overwritten
// before being read.
func (p *Profiler) DroppedCount() uint64 { return p.dropped.Load() }

// FuncStats returns a snapshot of one function's aggregate, or ok=false
// if the function was never timed.
func (p *Profiler) FuncStats(function string) (total, calls, min, max uint64, ok bool) {
	v, found := p.funcs.Load(function)
	if !found {
		return 0, 0, 0, 0, false
	}
	a := v.(*FuncAggregate)
	return a.TotalUs.Load(), a.Calls.Load(), a.MinUs.Load(), a.MaxUs.Load(), true
}

// Snapshot copies out the live ring-buffer entries in chronological order.
func (p *Profiler) Snapshot() []Entry {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := p.head
	if n > uint64(len(p.ring)) {
		n = uint64(len(p.ring))
	}
	out := make([]Entry, 0, n)
	start := uint64(0)
	if p.head > uint64(len(p.ring)) {
		start = p.head - uint64(len(p.ring))
	}
	for i := start; i < p.head; i++ {
		out = append(out, p.ring[i%uint64(len(p.ring))])
	}
	return out
}
