// Package executor runs CPU-bound work across a fixed pool of goroutines
// pinned (where the OS allows it) to specific cores, grounded on the
// teacher's Backend.Load errgroup fan-out (ml/backend/ggml/backend_load.go)
// and go-highway's persistent ParallelForAtomic worker pool
// (other_examples/d81d09d9_janpfeifer-go-highway...matmul_packed_parallel_v2.go.go).
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Mode selects how parallel_for assigns loop iterations to workers.
type Mode int

const (
	// ModeWorkStealing lets idle workers pull the next unclaimed chunk
	// from a shared atomic cursor. Higher throughput on uneven workloads,
	// but the order in which chunks land on which worker is not fixed
	// from run to run.
	ModeWorkStealing Mode = iota
	// ModeDeterministic assigns chunk i to worker (i mod N) always, and
	// on linux pins worker w's goroutine to core (w mod NumCPU) via
	// unix.SchedSetaffinity so two runs with the same input produce the
	// same work/worker mapping.
	ModeDeterministic
)

// CoreStats accumulates per-worker counters across the pool's lifetime,
// read after a parallel_for call completes. The pool updates Items and
// Invocations only; Ticks and Idle are never written and stay zero.
type CoreStats struct {
	Ticks       atomic.Uint64
	Items       atomic.Uint64
	Idle        atomic.Uint64
	Invocations atomic.Uint64
}

// Pool is a fixed-size goroutine pool. It is created once per process
// (spec.md §4.3: "a single pool is created at engine init") and reused
// for every parallel_for call; nesting one parallel_for inside another
// is rejected rather than silently serialized or deadlocking.
type Pool struct {
	n       int
	mode    Mode
	log     *slog.Logger
	stats   []*CoreStats
	nesting atomic.Int32
}

// New builds a pool with n workers. n <= 0 defaults to GOMAXPROCS, the
// same default the teacher's Backend.Load uses for its errgroup limit.
func New(n int, mode Mode, log *slog.Logger) *Pool {
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = slog.Default()
	}
	p := &Pool{n: n, mode: mode, log: log, stats: make([]*CoreStats, n)}
	for i := range p.stats {
		p.stats[i] = &CoreStats{}
	}
	return p
}

// NumWorkers returns the fixed worker count.
func (p *Pool) NumWorkers() int { return p.n }

// Stats returns the accumulated per-core counters for worker i.
func (p *Pool) Stats(i int) *CoreStats { return p.stats[i] }

// ErrNested is returned when ParallelFor is called while another
// ParallelFor on the same pool is still in flight. spec.md §4.3 caps
// executor nesting at one level; a nested call is a caller bug, not a
// runtime condition to recover from silently.
var ErrNested = fmt.Errorf("executor: parallel_for called while already running on this pool")

// ParallelFor splits [0, total) into ceil(total/chunk) chunks and runs fn
// over each chunk's [start, end) range on the pool's workers, per
// spec.md §4.3. fn must be safe to call concurrently from up to
// NumWorkers() goroutines; any reduction fn performs into shared state
// must be associative-safe (spec.md §5) since ModeWorkStealing does not
// fix the order chunks complete in.
func (p *Pool) ParallelFor(ctx context.Context, total, chunk int, fn func(workerID, start, end int)) error {
	if total <= 0 {
		return nil
	}
	if chunk <= 0 {
		chunk = 1
	}
	if !p.nesting.CompareAndSwap(0, 1) {
		return ErrNested
	}
	defer p.nesting.Store(0)

	nChunks := (total + chunk - 1) / chunk
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.n)

	switch p.mode {
	case ModeDeterministic:
		p.runDeterministic(g, nChunks, chunk, total, fn)
	default:
		p.runWorkStealing(g, nChunks, chunk, total, fn)
	}

	return g.Wait()
}

func (p *Pool) runWorkStealing(g *errgroup.Group, nChunks, chunk, total int, fn func(workerID, start, end int)) {
	var cursor atomic.Int64
	for w := 0; w < p.n; w++ {
		workerID := w
		g.Go(func() error {
			stats := p.stats[workerID]
			for {
				idx := cursor.Add(1) - 1
				if idx >= int64(nChunks) {
					return nil
				}
				start := int(idx) * chunk
				end := min(start+chunk, total)
				stats.Invocations.Add(1)
				stats.Items.Add(uint64(end - start))
				fn(workerID, start, end)
			}
		})
	}
}

func (p *Pool) runDeterministic(g *errgroup.Group, nChunks, chunk, total int, fn func(workerID, start, end int)) {
	for w := 0; w < p.n; w++ {
		workerID := w
		g.Go(func() error {
			pinToCore(workerID, p.log)
			stats := p.stats[workerID]
			for idx := workerID; idx < nChunks; idx += p.n {
				start := idx * chunk
				end := min(start+chunk, total)
				stats.Invocations.Add(1)
				stats.Items.Add(uint64(end - start))
				fn(workerID, start, end)
			}
			return nil
		})
	}
}
