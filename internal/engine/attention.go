package engine

import (
	"context"
	"fmt"
	"math"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

// attentionWeights names the four projection tensors one transformer
// layer's self-attention block reads, per spec.md §3's per-layer tensor
// naming convention.
type attentionWeights struct {
	wq, wk, wv, wo string
}

// attention runs grouped-query causal self-attention for one token at
// one layer: project to Q/K/V, rotate Q/K with RoPE, store K/V in the
// cache, attend causally over every cached position, project back out.
// Grounded on the teacher's kvcache.Causal.Get/Put head-count bookkeeping
// (kvcache/tensor_ops.go) for the GQA head-repeat mapping.
func (e *Engine) attention(layer int, w attentionWeights, x []float32, position int) ([]float32, error) {
	nHeads, nKVHeads, headDim := e.cfg.NHeads, e.cfg.NKVHeads, e.cfg.HeadDim

	q := e.projectRows(w.wq, x, nHeads*headDim)
	k := e.projectRows(w.wk, x, nKVHeads*headDim)
	v := e.projectRows(w.wv, x, nKVHeads*headDim)

	for h := 0; h < nHeads; h++ {
		applyRoPE(q[h*headDim:(h+1)*headDim], position, e.cfg.RopeTheta)
	}
	for h := 0; h < nKVHeads; h++ {
		applyRoPE(k[h*headDim:(h+1)*headDim], position, e.cfg.RopeTheta)
	}

	if err := e.kv.Store(layer, position, k, v); err != nil {
		return nil, err
	}

	out := make([]float32, nHeads*headDim)
	headsPerKV := nHeads / nKVHeads
	scale := float32(1.0 / math.Sqrt(float64(headDim)))

	for h := 0; h < nHeads; h++ {
		kvHead := h / headsPerKV
		qh := q[h*headDim : (h+1)*headDim]

		var positions []int
		var scores []float32
		var values [][]float32
		collectErr := e.kv.Range(layer, func(pos int, key, val []float32) {
			kvHeadStart := kvHead * headDim
			score := dot(qh, key[kvHeadStart:kvHeadStart+headDim]) * scale
			positions = append(positions, pos)
			scores = append(scores, score)
			values = append(values, val[kvHead*headDim:(kvHead+1)*headDim])
		})
		if collectErr != nil {
			return nil, collectErr
		}
		if len(scores) == 0 {
			return nil, fmt.Errorf("%w: no cached positions for layer %d", ggerr.ErrNotInitialized, layer)
		}

		softmaxInPlace(scores)

		acc := out[h*headDim : (h+1)*headDim]
		for i, weight := range scores {
			for d := 0; d < headDim; d++ {
				acc[d] += weight * values[i][d]
			}
		}
	}

	return e.projectRows(w.wo, out, e.cfg.EmbeddingDim), nil
}

// projectRows computes W*x for a [cols, rows] weight tensor, distributing
// rows across the engine's executor pool when one is configured.
func (e *Engine) projectRows(tensor string, x []float32, rows int) []float32 {
	out := make([]float32, rows)
	compute := func(_, start, end int) {
		for r := start; r < end; r++ {
			v, err := e.store.Dot(tensor, uint64(r), x)
			if err != nil {
				panic(err) // row bounds are derived from the same descriptor Dot itself checks; a mismatch here is a config bug, not a runtime condition
			}
			out[r] = v
		}
	}
	if e.pool == nil {
		compute(0, 0, rows)
		return out
	}
	chunk := max(1, rows/e.pool.NumWorkers())
	_ = e.pool.ParallelFor(context.Background(), rows, chunk, compute)
	return out
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// softmaxInPlace applies a numerically stable softmax: subtract the max
// before exponentiating (spec.md §5's "range-reduced exp" requirement),
// matching llama.cpp's attention-score normalization.
func softmaxInPlace(scores []float32) {
	max := scores[0]
	for _, s := range scores[1:] {
		if s > max {
			max = s
		}
	}
	var sum float32
	for i, s := range scores {
		e := float32(math.Exp(float64(s - max)))
		scores[i] = e
		sum += e
	}
	for i := range scores {
		scores[i] /= sum
	}
}
