// Command embodios is the hosted REPL/benchmark harness for the
// inference core, grounded on the teacher's cmd/cmd.go root-command
// setup (cobra.Command tree, SilenceUsage/SilenceErrors, one
// newXCmd-per-subcommand constructor).
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dddimcha/embodiOS-sub004/internal/blockdev"
	"github.com/dddimcha/embodiOS-sub004/internal/config"
	"github.com/dddimcha/embodiOS-sub004/internal/console"
	"github.com/dddimcha/embodiOS-sub004/internal/engine"
	"github.com/dddimcha/embodiOS-sub004/internal/executor"
	"github.com/dddimcha/embodiOS-sub004/internal/gguf"
	"github.com/dddimcha/embodiOS-sub004/internal/quant"
	"github.com/dddimcha/embodiOS-sub004/internal/repl"
	"github.com/dddimcha/embodiOS-sub004/internal/sampler"
	"github.com/dddimcha/embodiOS-sub004/internal/timer"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cobra.EnableCommandSorting = false

	root := &cobra.Command{
		Use:           "embodios",
		Short:         "Bare-metal transformer inference REPL and benchmark harness",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("model", "", "path to a GGUF model file")
	root.PersistentFlags().Int("max-out", 256, "maximum tokens to generate per prompt")
	root.PersistentFlags().Float32("temperature", 0.8, "sampling temperature (0 = greedy)")
	root.PersistentFlags().Uint64("seed", 1, "sampler PRNG seed")
	root.PersistentFlags().Bool("deterministic", false, "use fixed-assignment parallel_for and disable core pinning jitter")
	root.PersistentFlags().Bool("profile", false, "enable the timer/profiler")
	_ = root.MarkPersistentFlagRequired("model")

	root.AddCommand(newPromptCmd(), newBenchmarkCmd())
	return root
}

func buildSession(cmd *cobra.Command) (*repl.Session, *timer.Profiler, error) {
	modelPath, _ := cmd.Flags().GetString("model")
	maxOut, _ := cmd.Flags().GetInt("max-out")
	temperature, _ := cmd.Flags().GetFloat32("temperature")
	seed, _ := cmd.Flags().GetUint64("seed")
	deterministic, _ := cmd.Flags().GetBool("deterministic")
	profiling, _ := cmd.Flags().GetBool("profile")

	opts := config.New().
		WithDeterministic(deterministic).
		WithProfiling(profiling).
		WithSeed(seed).
		WithTemperature(temperature)

	dev, err := blockdev.OpenFile(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open model: %w", err)
	}

	buf := make([]byte, dev.Size())
	if _, err := dev.ReadAt(context.Background(), 0, buf); err != nil {
		return nil, nil, fmt.Errorf("read model: %w", err)
	}

	file, err := gguf.Parse(buf)
	if err != nil {
		return nil, nil, fmt.Errorf("parse gguf: %w", err)
	}
	cfg, err := gguf.ModelConfigFromFile(file)
	if err != nil {
		return nil, nil, fmt.Errorf("resolve model config: %w", err)
	}

	store := quant.NewWeightStore(file)

	mode := executor.ModeWorkStealing
	if opts.Deterministic() {
		mode = executor.ModeDeterministic
	}
	pool := executor.New(opts.ExecutorWorkers(), mode, slog.Default())

	var prof *timer.Profiler
	if opts.ProfilingEnabled() {
		prof = timer.NewProfiler(timer.NewClock(0), opts.ProfilerCapacity())
		prof.SetEnabled(true)
	}

	eng := engine.New(store, cfg, engine.Options{
		Pool:              pool,
		Profiler:          prof,
		Logger:            slog.Default(),
		KVWindow:          opts.KVWindow(),
		EmbeddingHotCount: opts.EmbeddingHotCount(),
		MaxSeqLen:         cfg.MaxSeqLen,
	})
	if err := eng.Load(engine.Options{KVWindow: opts.KVWindow(), EmbeddingHotCount: opts.EmbeddingHotCount()}); err != nil {
		return nil, nil, fmt.Errorf("load engine: %w", err)
	}
	if err := eng.Ready(); err != nil {
		return nil, nil, fmt.Errorf("ready engine: %w", err)
	}

	vocab := sampler.NewVocab(cfg.Tokens, cfg.Merges)
	samp := sampler.New(opts.Seed(), opts.Temperature())

	return &repl.Session{
		Engine:   eng,
		Vocab:    vocab,
		Sampler:  samp,
		Console:  console.NewStdio(os.Stdout, os.Stdin),
		MaxOut:   maxOut,
		EOSToken: cfg.EOSID,
	}, prof, nil
}

func newPromptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prompt [text]",
		Short: "Generate up to max-out tokens for a single prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, _, err := buildSession(cmd)
			if err != nil {
				return err
			}
			return session.Prompt(cmd.Context(), args[0])
		},
	}
}

func newBenchmarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "benchmark",
		Short: `Run the fixed scenario ("Once upon a time", 50 tokens, temperature 0) and print timing`,
		RunE: func(cmd *cobra.Command, args []string) error {
			session, prof, err := buildSession(cmd)
			if err != nil {
				return err
			}
			functions := []string{"engine.step"}
			elapsed, rows, err := session.Benchmark(cmd.Context(), prof, functions)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "elapsed: %s\n", elapsed)

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"FUNCTION", "TOTAL (us)", "CALLS", "MIN (us)", "MAX (us)"})
			table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
			table.SetAlignment(tablewriter.ALIGN_LEFT)
			table.SetHeaderLine(false)
			table.SetBorder(false)
			table.SetNoWhiteSpace(true)
			table.SetTablePadding("    ")
			for _, r := range rows {
				table.Append([]string{
					r.Function,
					strconv.FormatUint(r.TotalUs, 10),
					strconv.FormatUint(r.Calls, 10),
					strconv.FormatUint(r.MinUs, 10),
					strconv.FormatUint(r.MaxUs, 10),
				})
			}
			table.Render()
			return nil
		},
	}
}
