// Package embedcache implements the token/position embedding cache from
// spec.md §3/§4.6: a token embedding table loaded straight out of the
// GGUF weight store, an optional precomputed "hot" table combining the
// first N positions' token+positional vectors, and a sinusoidal
// fallback used whenever the checkpoint has no "position_embd.weight"
// tensor. The fallback does not check for RoPE: with internal/engine,
// which also applies RoPE inside attention, a checkpoint without a
// positional tensor gets both.
package embedcache

import (
	"math"

	"github.com/dddimcha/embodiOS-sub004/internal/quant"
)

// Cache owns the token embedding table and an optional hot combined
// table for the first HotPositions positions.
type Cache struct {
	store        *quant.WeightStore
	tokenTensor  string
	embeddingDim int
	hotPositions int
	hot          [][]float32 // hot[pos] is a precomputed token+positional vector, lazily filled per token
	hotTokens    []int32     // which token occupies hot[pos], -1 if unfilled
}

// New builds a cache backed by a weight store. hotPositions sizes the
// precompute table; 0 disables hot precompute entirely (every lookup
// falls through to a fresh table read + positional add). spec.md §9's
// Open Question on embedding hot-position count is decided here: 128 is
// a caller-supplied tunable, not a value wired by default, so New takes
// it explicitly rather than hardcoding it.
func New(store *quant.WeightStore, tokenTensor string, embeddingDim, hotPositions int) *Cache {
	c := &Cache{
		store:        store,
		tokenTensor:  tokenTensor,
		embeddingDim: embeddingDim,
		hotPositions: hotPositions,
	}
	if hotPositions > 0 {
		c.hot = make([][]float32, hotPositions)
		c.hotTokens = make([]int32, hotPositions)
		for i := range c.hotTokens {
			c.hotTokens[i] = -1
		}
	}
	return c
}

// Lookup returns the combined token+positional embedding for tokenID at
// absolute position. The returned slice is owned by the cache; callers
// must copy it before the next Lookup call if they need it to outlive
// that call (mirrors WeightStore.Row's no-copy contract).
func (c *Cache) Lookup(tokenID int32, position int) ([]float32, error) {
	if position < c.hotPositions {
		if c.hotTokens[position] == tokenID && c.hot[position] != nil {
			return c.hot[position], nil
		}
		vec, err := c.compute(tokenID, position)
		if err != nil {
			return nil, err
		}
		if c.hot[position] == nil {
			c.hot[position] = make([]float32, c.embeddingDim)
		}
		copy(c.hot[position], vec)
		c.hotTokens[position] = tokenID
		return c.hot[position], nil
	}
	return c.compute(tokenID, position)
}

func (c *Cache) compute(tokenID int32, position int) ([]float32, error) {
	out := make([]float32, c.embeddingDim)
	if err := c.store.DequantizeRowInto(c.tokenTensor, uint64(tokenID), out); err != nil {
		return nil, err
	}
	if c.store.HasTensor("position_embd.weight") {
		pos := make([]float32, c.embeddingDim)
		if err := c.store.DequantizeRowInto("position_embd.weight", uint64(position), pos); err != nil {
			return nil, err
		}
		for i := range out {
			out[i] += pos[i]
		}
	} else {
		addSinusoidal(out, position)
	}
	return out, nil
}

// addSinusoidal adds the standard fixed positional encoding (Vaswani et
// al., "Attention Is All You Need", §3.5) in place: even dimensions get
// sin, odd get cos, at geometrically spaced frequencies. Used whenever
// the checkpoint carries no trained positional embedding tensor.
func addSinusoidal(out []float32, position int) {
	dim := len(out)
	for i := 0; i < dim; i += 2 {
		freq := math.Pow(10000, -float64(i)/float64(dim))
		angle := float64(position) * freq
		out[i] += float32(math.Sin(angle))
		if i+1 < dim {
			out[i+1] += float32(math.Cos(angle))
		}
	}
}

// EmbeddingDim reports the configured embedding width.
func (c *Cache) EmbeddingDim() int { return c.embeddingDim }

// HotPositions reports how many leading positions are precompute-backed.
func (c *Cache) HotPositions() int { return c.hotPositions }
