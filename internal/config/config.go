// Package config exposes the engine's runtime tunables as one function
// per setting, mirroring the teacher's envconfig package (config.go's
// "one function, one doc comment naming source and default" shape).
// Bare metal has no environment to read, so every function here sources
// its value from an explicit Options struct (never os.Getenv) plus a
// handful of compile-time build tags that flip the hard-coded defaults
// for deterministic or profiling builds.
package config

// Options is the explicit, caller-constructed configuration passed to
// engine.New / cmd/embodios — the bare-metal analogue of the teacher's
// environment variables. Zero value is the conservative default:
// work-stealing scheduling, profiling off, SIMD on, no KV eviction.
type Options struct {
	deterministic     bool
	profilingEnabled  bool
	simdDisabled      bool
	executorWorkers   int
	kvWindow          int
	embeddingHotCount int
	profilerCapacity  int
	seed              uint64
	temperature       float32
}

// New builds an Options from explicit values; every field has a named
// setter below so call sites read like the tunable they're touching
// rather than a positional struct literal.
func New() Options { return Options{} }

func (o Options) WithDeterministic(v bool) Options     { o.deterministic = v; return o }
func (o Options) WithProfiling(v bool) Options          { o.profilingEnabled = v; return o }
func (o Options) WithSIMDDisabled(v bool) Options       { o.simdDisabled = v; return o }
func (o Options) WithExecutorWorkers(n int) Options     { o.executorWorkers = n; return o }
func (o Options) WithKVWindow(n int) Options            { o.kvWindow = n; return o }
func (o Options) WithEmbeddingHotCount(n int) Options   { o.embeddingHotCount = n; return o }
func (o Options) WithProfilerCapacity(n int) Options    { o.profilerCapacity = n; return o }
func (o Options) WithSeed(seed uint64) Options          { o.seed = seed; return o }
func (o Options) WithTemperature(t float32) Options     { o.temperature = t; return o }

// Deterministic reports whether execution must use fixed-assignment
// parallel_for and disable core-pinning jitter sources, per spec.md §5.
// Source: the Options value, or-ed with the `deterministic` build tag's
// compiled-in default.
func (o Options) Deterministic() bool { return o.deterministic || deterministicBuildDefault }

// ProfilingEnabled reports whether the timer/profiler should start
// enabled. Source: the Options value, or the `profiling` build tag's
// compiled-in default.
func (o Options) ProfilingEnabled() bool { return o.profilingEnabled || profilingBuildDefault }

// SIMDDisabled reports whether the scalar kernel path was requested.
// Source: the Options value, or the `simd_off` build tag. Nothing in
// this module reads it: internal/quant's capability dispatch is chosen
// by DetectCapability from the host CPU alone.
func (o Options) SIMDDisabled() bool { return o.simdDisabled || simdOffBuildDefault }

// ExecutorWorkers returns the configured worker count, or 0 to mean
// "use GOMAXPROCS" (internal/executor.New's own default).
func (o Options) ExecutorWorkers() int { return o.executorWorkers }

// KVWindow returns the sliding-window size for KV cache eviction, or 0
// for unbounded (no eviction).
func (o Options) KVWindow() int { return o.kvWindow }

// EmbeddingHotCount returns how many leading positions get a
// precomputed combined embedding. spec.md §9's Open Question on this
// tunable is resolved here: it is a caller-supplied value, not a wired
// default (the zero value disables hot precompute entirely).
func (o Options) EmbeddingHotCount() int { return o.embeddingHotCount }

// ProfilerCapacity returns the ring buffer's entry capacity; 0 lets
// internal/timer apply its own default.
func (o Options) ProfilerCapacity() int { return o.profilerCapacity }

// Seed returns the sampler's PRNG seed. Determinism across runs
// requires the caller to pin this explicitly; there is no "random by
// default" mode since bare metal has no entropy source this package
// assumes is present.
func (o Options) Seed() uint64 { return o.seed }

// Temperature returns the sampling temperature; 0 selects greedy
// argmax.
func (o Options) Temperature() float32 { return o.temperature }
