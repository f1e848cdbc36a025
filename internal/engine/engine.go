// Package engine composes the quantized weight store, KV cache,
// embedding cache and parallel executor into the streaming forward-pass
// inference engine spec.md §4.4 describes. Tensor naming follows the
// teacher's GGUF convention (model/models/*/model.go's `gguf:"..."`
// struct tags): "token_embd.weight", "blk.N.attn_q.weight", etc.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dddimcha/embodiOS-sub004/internal/embedcache"
	"github.com/dddimcha/embodiOS-sub004/internal/executor"
	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
	"github.com/dddimcha/embodiOS-sub004/internal/gguf"
	"github.com/dddimcha/embodiOS-sub004/internal/kvcache"
	"github.com/dddimcha/embodiOS-sub004/internal/quant"
	"github.com/dddimcha/embodiOS-sub004/internal/timer"
)

// Sampler turns a vocabulary-sized logits vector into one token ID.
// internal/sampler implements this; engine only depends on the shape so
// the two packages don't import each other.
type Sampler interface {
	Sample(logits []float32) int32
}

// Options configures an Engine. Every field is an explicit tunable per
// SPEC_FULL.md's ambient-config rule: no env vars, no globals. New reads
// only Pool, Profiler and Logger; Load reads only KVWindow,
// EmbeddingHotCount and MaxSeqLen.
type Options struct {
	Pool              *executor.Pool // nil runs every projection single-threaded
	Profiler          *timer.Profiler
	Logger            *slog.Logger
	KVWindow          int // 0 disables sliding-window eviction
	EmbeddingHotCount int // spec.md §9 Open Question: caller-chosen, default 0 (disabled)
	MaxSeqLen         int // 0 uses cfg.MaxSeqLen from the GGUF metadata
}

// Engine is the streaming inference engine: one instance per loaded
// model, holding all mutable generation state (KV cache, hot embedding
// table) behind the state machine in state.go.
type Engine struct {
	store *quant.WeightStore
	cfg   gguf.ModelConfig
	kv    *kvcache.Cache
	embed *embedcache.Cache
	pool  *executor.Pool
	prof  *timer.Profiler
	log   *slog.Logger

	state     State
	maxSeqLen int
}

// New constructs an engine in StateUninit. Call Load to move to
// StateLoaded once the weight store is ready to be read.
func New(store *quant.WeightStore, cfg gguf.ModelConfig, opts Options) *Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	prof := opts.Profiler
	if prof == nil {
		// disabled by default (SetEnabled defaults false): Start/Stop
		// become no-ops that never read the clock, so an engine built
		// without an explicit profiler still costs nothing per step.
		prof = timer.NewProfiler(timer.NewClock(0), 0)
	}
	return &Engine{
		store: store,
		cfg:   cfg,
		pool:  opts.Pool,
		prof:  prof,
		log:   log,
		state: StateUninit,
	}
}

// Load allocates the KV cache and embedding cache against the model's
// configuration (StateUninit -> StateLoaded).
func (e *Engine) Load(opts Options) error {
	if err := move(&e.state, StateLoaded); err != nil {
		return err
	}
	maxSeq := opts.MaxSeqLen
	if maxSeq == 0 {
		maxSeq = e.cfg.MaxSeqLen
	}
	e.kv = kvcache.New(e.cfg.NLayers, maxSeq, e.cfg.NKVHeads*e.cfg.HeadDim, opts.KVWindow)
	e.embed = embedcache.New(e.store, "token_embd.weight", e.cfg.EmbeddingDim, opts.EmbeddingHotCount)
	e.maxSeqLen = maxSeq
	e.log.Info("engine loaded", "layers", e.cfg.NLayers, "embedding_dim", e.cfg.EmbeddingDim, "vocab", e.cfg.VocabSize)
	return nil
}

// Ready marks the engine able to accept Generate calls (StateLoaded ->
// StateReady). Split from Load so a caller can warm the hot embedding
// table or run a dry pass before serving real requests.
func (e *Engine) Ready() error {
	return move(&e.state, StateReady)
}

// State reports the engine's current lifecycle state.
func (e *Engine) State() State { return e.state }

func (e *Engine) layerTensor(layer int, suffix string) string {
	return fmt.Sprintf("blk.%d.%s.weight", layer, suffix)
}

// step runs one token through every transformer layer and returns the
// logits over the vocabulary, per spec.md §4.4's five-step forward pass.
func (e *Engine) step(tokenID int32, position int) ([]float32, error) {
	span := e.prof.Start("engine.step", 0)
	defer span.Stop()

	x, err := e.embed.Lookup(tokenID, position)
	if err != nil {
		return nil, err
	}
	x = append([]float32(nil), x...) // layers mutate in place; the cache's copy must stay pristine

	attnNorm := make([]float32, 0)
	for layer := 0; layer < e.cfg.NLayers; layer++ {
		if err := e.loadRowInto(&attnNorm, e.layerTensor(layer, "attn_norm"), 0); err != nil {
			return nil, err
		}
		normed := append([]float32(nil), x...)
		rmsNorm(normed, attnNorm, e.cfg.NormEps)

		attnOut, err := e.attention(layer, attentionWeights{
			wq: e.layerTensor(layer, "attn_q"),
			wk: e.layerTensor(layer, "attn_k"),
			wv: e.layerTensor(layer, "attn_v"),
			wo: e.layerTensor(layer, "attn_output"),
		}, normed, position)
		if err != nil {
			return nil, fmt.Errorf("layer %d attention: %w", layer, err)
		}
		for i := range x {
			x[i] += attnOut[i]
		}

		var ffnNorm []float32
		if err := e.loadRowInto(&ffnNorm, e.layerTensor(layer, "ffn_norm"), 0); err != nil {
			return nil, err
		}
		normed = append([]float32(nil), x...)
		rmsNorm(normed, ffnNorm, e.cfg.NormEps)

		gate := e.projectRows(e.layerTensor(layer, "ffn_gate"), normed, e.cfg.FFNHiddenDim)
		up := e.projectRows(e.layerTensor(layer, "ffn_up"), normed, e.cfg.FFNHiddenDim)
		swiglu(gate, up)
		down := e.projectRows(e.layerTensor(layer, "ffn_down"), gate, e.cfg.EmbeddingDim)
		for i := range x {
			x[i] += down[i]
		}
	}

	var outNorm []float32
	if err := e.loadRowInto(&outNorm, "output_norm.weight", 0); err != nil {
		return nil, err
	}
	rmsNorm(x, outNorm, e.cfg.NormEps)

	outputTensor := "output.weight"
	if !e.store.HasTensor(outputTensor) {
		// spec.md §4.4 step 4 weight-tying fallback: reuse the token
		// embedding table transposed, grounded on fs/ggml/gguf_model.go's
		// tensor-presence check for the analogous case.
		outputTensor = "token_embd.weight"
	}
	logits := e.projectRows(outputTensor, x, e.cfg.VocabSize)
	return logits, nil
}

// loadRowInto dequantizes a 1D tensor (norm weights have no row index)
// into dst, resizing it if needed.
func (e *Engine) loadRowInto(dst *[]float32, tensor string, row uint64) error {
	d, ok := e.store.Describe(tensor)
	if !ok {
		return fmt.Errorf("%w: tensor %q", ggerr.ErrMissingMetadata, tensor)
	}
	if cap(*dst) < int(d.Cols()) {
		*dst = make([]float32, d.Cols())
	} else {
		*dst = (*dst)[:d.Cols()]
	}
	return e.store.DequantizeRowInto(tensor, row, *dst)
}

// Generate runs prefill over prompt, then decodes up to maxNewTokens
// additional tokens with sampler, stopping early at eosID. It moves
// StateReady -> StateRunning for the duration and back to StateReady
// before returning, matching spec.md §4.4's generation loop.
func (e *Engine) Generate(ctx context.Context, prompt []int32, maxNewTokens int, sampler Sampler, eosID int32) ([]int32, error) {
	if len(prompt) == 0 {
		return nil, ggerr.ErrInvalidTokenID
	}

	if err := move(&e.state, StateRunning); err != nil {
		return nil, err
	}
	defer func() {
		if err := move(&e.state, StateReady); err != nil {
			e.log.Error("engine state transition failed after generate", "error", err)
		}
	}()

	generated := make([]int32, 0, maxNewTokens)
	position := 0
	var logits []float32
	var err error

	for _, tok := range prompt {
		select {
		case <-ctx.Done():
			return generated, ctx.Err()
		default:
		}
		if e.maxSeqLen > 0 && position >= e.maxSeqLen {
			return generated, ggerr.ErrContextOverflow
		}
		logits, err = e.step(tok, position)
		if err != nil {
			return generated, err
		}
		position++
	}

	for i := 0; i < maxNewTokens; i++ {
		select {
		case <-ctx.Done():
			return generated, ctx.Err()
		default:
		}
		if e.maxSeqLen > 0 && position >= e.maxSeqLen {
			return generated, ggerr.ErrContextOverflow
		}
		next := sampler.Sample(logits)
		generated = append(generated, next)
		if next == eosID {
			break
		}
		logits, err = e.step(next, position)
		if err != nil {
			return generated, err
		}
		position++
	}

	return generated, nil
}

// GetTokenText returns the vocabulary surface form for a token ID, per
// spec.md §6's `get_token_text` operation.
func (e *Engine) GetTokenText(tokenID int32) (string, error) {
	if tokenID < 0 || int(tokenID) >= len(e.cfg.Tokens) {
		return "", fmt.Errorf("%w: token id %d", ggerr.ErrInvalidTokenID, tokenID)
	}
	return e.cfg.Tokens[tokenID], nil
}
