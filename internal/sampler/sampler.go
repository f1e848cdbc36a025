package sampler

import (
	"math"
	"math/rand/v2"
)

// Sampler turns a logits vector into one token ID: greedy argmax when
// Temperature is 0, otherwise temperature-scaled categorical sampling.
// Determinism (spec.md §5) requires a named, versioned algorithm with an
// explicit seed rather than the unseeded global math/rand source, so
// Sampler carries its own rand.Rand over a PCG bit source.
type Sampler struct {
	rng         *rand.Rand
	temperature float32
}

// New builds a seeded sampler. seed fully determines every future
// Sample call's output for a fixed sequence of logits vectors.
func New(seed uint64, temperature float32) *Sampler {
	return &Sampler{
		rng:         rand.New(rand.NewPCG(seed, seed>>32|1)),
		temperature: temperature,
	}
}

// Sample returns one token ID from logits.
func (s *Sampler) Sample(logits []float32) int32 {
	if s.temperature <= 0 {
		return argmax(logits)
	}
	probs := softmax(logits, s.temperature)
	r := s.rng.Float64()
	var cum float64
	for i, p := range probs {
		cum += float64(p)
		if r <= cum {
			return int32(i)
		}
	}
	return int32(len(probs) - 1)
}

func argmax(logits []float32) int32 {
	best := 0
	for i, v := range logits[1:] {
		if v > logits[best] {
			best = i + 1
		}
	}
	return int32(best)
}

func softmax(logits []float32, temperature float32) []float32 {
	out := make([]float32, len(logits))
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}
	var sum float32
	for i, v := range logits {
		e := float32(math.Exp(float64((v - max) / temperature)))
		out[i] = e
		sum += e
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
