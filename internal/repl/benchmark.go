package repl

import (
	"context"
	"fmt"
	"time"

	"github.com/dddimcha/embodiOS-sub004/internal/sampler"
	"github.com/dddimcha/embodiOS-sub004/internal/timer"
)

// benchmarkPrompt, benchmarkTokens and benchmarkTemperature are the
// fixed scenario spec.md §6 names for the `benchmark` CLI entry point:
// prompt "Once upon a time", 50 tokens, temperature 0 (greedy).
const (
	benchmarkPrompt      = "Once upon a time"
	benchmarkTokens      = 50
	benchmarkTemperature = float32(0)
)

// TimingRow is one line of the §4.7 timing table: a function's
// aggregate stats as reported by the profiler.
type TimingRow struct {
	Function string
	TotalUs  uint64
	Calls    uint64
	MinUs    uint64
	MaxUs    uint64
}

// Benchmark runs the fixed scenario and returns the wall-clock duration
// plus a timing table pulled from the session's profiler, if one was
// wired into the engine via engine.Options.Profiler.
func (s *Session) Benchmark(ctx context.Context, prof *timer.Profiler, functions []string) (time.Duration, []TimingRow, error) {
	promptIDs := s.Vocab.Encode(benchmarkPrompt)
	greedy := sampler.New(0, benchmarkTemperature) // fixed scenario always runs greedy, independent of the session's configured sampler
	start := time.Now()
	_, err := s.Engine.Generate(ctx, promptIDs, benchmarkTokens, greedy, s.EOSToken)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, nil, fmt.Errorf("benchmark generate: %w", err)
	}

	var rows []TimingRow
	if prof != nil {
		for _, fn := range functions {
			total, calls, min, max, ok := prof.FuncStats(fn)
			if !ok {
				continue
			}
			rows = append(rows, TimingRow{Function: fn, TotalUs: total, Calls: calls, MinUs: min, MaxUs: max})
		}
	}
	return elapsed, rows, nil
}
