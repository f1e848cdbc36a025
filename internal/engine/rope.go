package engine

import "math"

// applyRoPE rotates a single head's query or key vector in place at the
// given absolute position, per spec.md §4.4 step 3. headDim must be
// even; adjacent pairs (2i, 2i+1) are rotated together (the interleaved
// convention, not the GPT-NeoX split-half pairing of i with i+headDim/2).
func applyRoPE(vec []float32, position int, theta float32) {
	headDim := len(vec)
	for i := 0; i+1 < headDim; i += 2 {
		freq := 1.0 / math.Pow(float64(theta), float64(i)/float64(headDim))
		angle := float64(position) * freq
		sin, cos := math.Sincos(angle)
		x0, x1 := float64(vec[i]), float64(vec[i+1])
		vec[i] = float32(x0*cos - x1*sin)
		vec[i+1] = float32(x0*sin + x1*cos)
	}
}
