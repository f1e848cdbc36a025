package engine

import "testing"

// spec.md §8 property 6: softmax must stay finite for extreme logits and
// be invariant to a constant additive shift, since softmaxInPlace relies
// on subtracting the row max rather than exponentiating raw scores.
func TestSoftmaxInPlaceIsStableForExtremeLogits(t *testing.T) {
	scores := []float32{1e30, -1e30, 0, 1e30}
	softmaxInPlace(scores)
	var sum float32
	for _, s := range scores {
		if s != s { // NaN check without importing math
			t.Fatalf("softmax produced NaN: %v", scores)
		}
		if s < 0 || s > 1 {
			t.Fatalf("softmax output %v out of [0,1] range: %v", s, scores)
		}
		sum += s
	}
	if diff := sum - 1; diff < -1e-3 || diff > 1e-3 {
		t.Fatalf("softmax outputs sum to %v, want 1", sum)
	}
}

func TestSoftmaxInPlaceInvariantToConstantShift(t *testing.T) {
	base := []float32{2, -1, 0.5, 3}
	shifted := []float32{1002, 999, 1000.5, 1003}
	softmaxInPlace(base)
	softmaxInPlace(shifted)
	for i := range base {
		diff := base[i] - shifted[i]
		if diff < -1e-4 || diff > 1e-4 {
			t.Fatalf("softmax(shifted)[%d] = %v, softmax(base)[%d] = %v, want equal", i, shifted[i], i, base[i])
		}
	}
}
