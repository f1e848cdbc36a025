package engine

import "math"

// swiglu computes the SwiGLU feed-forward block spec.md §4.4 step 4
// names: down(swish(gate(x)) * up(x)), where swish(v) = v * sigmoid(v).
// gate and up are the projected hidden vectors (already matmul'd by the
// caller); swiglu combines them in place into gate.
func swiglu(gate, up []float32) {
	for i := range gate {
		g := float64(gate[i])
		swish := g / (1 + math.Exp(-g))
		gate[i] = float32(swish) * up[i]
	}
}
