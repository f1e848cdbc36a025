package embedcache

import (
	"math"
	"testing"
)

func TestAddSinusoidalEvenOddSplit(t *testing.T) {
	out := make([]float32, 6)
	addSinusoidal(out, 5)
	for i := 0; i < len(out); i += 2 {
		freq := math.Pow(10000, -float64(i)/float64(len(out)))
		angle := 5 * freq
		if got, want := float64(out[i]), math.Sin(angle); math.Abs(got-want) > 1e-6 {
			t.Errorf("out[%d] = %v, want sin(%v) = %v", i, got, angle, want)
		}
		if i+1 < len(out) {
			if got, want := float64(out[i+1]), math.Cos(angle); math.Abs(got-want) > 1e-6 {
				t.Errorf("out[%d] = %v, want cos(%v) = %v", i+1, got, angle, want)
			}
		}
	}
}

func TestAddSinusoidalPositionZeroIsSin0AndCos1(t *testing.T) {
	out := make([]float32, 4)
	addSinusoidal(out, 0)
	for i := 0; i < len(out); i += 2 {
		if out[i] != 0 {
			t.Errorf("sin component at position 0 should be 0, got %v", out[i])
		}
		if i+1 < len(out) && out[i+1] != 1 {
			t.Errorf("cos component at position 0 should be 1, got %v", out[i+1])
		}
	}
}
