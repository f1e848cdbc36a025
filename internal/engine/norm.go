package engine

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// rmsNorm applies root-mean-square layer normalization in place:
// x_i := x_i / sqrt(mean(x^2) + eps) * weight_i, spec.md §4.4 step 2's
// normalization between blocks.
func rmsNorm(x []float32, weight []float32, eps float32) {
	sq := make([]float64, len(x))
	xf := make([]float64, len(x))
	for i, v := range x {
		xf[i] = float64(v)
		sq[i] = xf[i]
	}
	sumSq := floats.Dot(xf, sq)
	scale := float32(1.0 / math.Sqrt(sumSq/float64(len(x))+float64(eps)))
	for i := range x {
		x[i] = x[i] * scale * weight[i]
	}
}
