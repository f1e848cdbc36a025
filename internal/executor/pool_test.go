package executor

import (
	"context"
	"sort"
	"sync"
	"testing"
)

func TestParallelForCoversEveryIndexExactlyOnce(t *testing.T) {
	for _, mode := range []Mode{ModeWorkStealing, ModeDeterministic} {
		p := New(4, mode, nil)
		const total = 997 // deliberately not a multiple of chunk or worker count
		seen := make([]int, total)
		var mu sync.Mutex

		err := p.ParallelFor(context.Background(), total, 13, func(_, start, end int) {
			mu.Lock()
			defer mu.Unlock()
			for i := start; i < end; i++ {
				seen[i]++
			}
		})
		if err != nil {
			t.Fatalf("mode %v: ParallelFor returned %v", mode, err)
		}
		for i, c := range seen {
			if c != 1 {
				t.Fatalf("mode %v: index %d visited %d times, want 1", mode, i, c)
			}
		}
	}
}

func TestParallelForRejectsNesting(t *testing.T) {
	p := New(2, ModeWorkStealing, nil)
	err := p.ParallelFor(context.Background(), 10, 1, func(_, _, _ int) {
		nested := p.ParallelFor(context.Background(), 10, 1, func(_, _, _ int) {})
		if nested != ErrNested {
			t.Errorf("nested call returned %v, want ErrNested", nested)
		}
	})
	if err != nil {
		t.Fatalf("outer ParallelFor returned %v", err)
	}
}

func TestDeterministicModeAssignsFixedChunkToWorker(t *testing.T) {
	p := New(4, ModeDeterministic, nil)
	var mu sync.Mutex
	assignment := map[int]int{} // chunk index -> worker id

	err := p.ParallelFor(context.Background(), 100, 10, func(workerID, start, _ int) {
		mu.Lock()
		defer mu.Unlock()
		assignment[start/10] = workerID
	})
	if err != nil {
		t.Fatalf("ParallelFor returned %v", err)
	}
	for chunk, worker := range assignment {
		if want := chunk % 4; worker != want {
			t.Errorf("chunk %d ran on worker %d, want %d", chunk, worker, want)
		}
	}
}

func TestParallelForZeroTotalIsNoop(t *testing.T) {
	p := New(2, ModeWorkStealing, nil)
	called := false
	if err := p.ParallelFor(context.Background(), 0, 4, func(_, _, _ int) { called = true }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("fn should not be called for total=0")
	}
}

func TestStatsAccumulateAcrossCalls(t *testing.T) {
	p := New(3, ModeDeterministic, nil)
	run := func() {
		if err := p.ParallelFor(context.Background(), 30, 10, func(_, _, _ int) {}); err != nil {
			t.Fatalf("ParallelFor: %v", err)
		}
	}
	run()
	run()

	var total uint64
	for i := 0; i < p.NumWorkers(); i++ {
		total += p.Stats(i).Invocations.Load()
	}
	if total != 20 { // 10 chunks * 2 runs
		t.Fatalf("total invocations = %d, want 20", total)
	}
}

func TestModesProduceIdenticalSums(t *testing.T) {
	data := make([]float64, 4096)
	for i := range data {
		data[i] = float64(i%7) - 3
	}

	sumWith := func(mode Mode) float64 {
		p := New(4, mode, nil)
		partials := make([]float64, p.NumWorkers())
		err := p.ParallelFor(context.Background(), len(data), 64, func(w, start, end int) {
			var s float64
			for i := start; i < end; i++ {
				s += data[i]
			}
			partials[w] += s
		})
		if err != nil {
			t.Fatalf("ParallelFor: %v", err)
		}
		sort.Float64s(partials) // fixed reduction order regardless of worker completion order
		var total float64
		for _, s := range partials {
			total += s
		}
		return total
	}

	ws := sumWith(ModeWorkStealing)
	det := sumWith(ModeDeterministic)
	if ws != det {
		t.Fatalf("work-stealing sum %v != deterministic sum %v", ws, det)
	}
}
