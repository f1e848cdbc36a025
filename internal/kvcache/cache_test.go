package kvcache

import (
	"errors"
	"testing"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

func vec(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestReadUnwrittenPositionFails(t *testing.T) {
	c := New(2, 8, 4, 0)
	_, _, err := c.Read(0, 3)
	if !errors.Is(err, ggerr.ErrNotInitialized) {
		t.Fatalf("got %v, want ErrNotInitialized", err)
	}
}

func TestStoreThenReadRoundTrips(t *testing.T) {
	c := New(1, 8, 4, 0)
	k, v := vec(1, 4), vec(2, 4)
	if err := c.Store(0, 3, k, v); err != nil {
		t.Fatalf("Store: %v", err)
	}
	gotK, gotV, err := c.Read(0, 3)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	for i := range gotK {
		if gotK[i] != k[i] || gotV[i] != v[i] {
			t.Fatalf("round-trip mismatch at %d: key=%v value=%v", i, gotK, gotV)
		}
	}
}

func TestSlidingWindowEvictsOldest(t *testing.T) {
	c := New(1, 100, 2, 3) // window of 3
	for pos := 0; pos < 5; pos++ {
		if err := c.Store(0, pos, vec(float32(pos), 2), vec(float32(pos), 2)); err != nil {
			t.Fatalf("Store(%d): %v", pos, err)
		}
	}
	// positions 0 and 1 should have been evicted, leaving 2,3,4 live.
	if _, _, err := c.Read(0, 0); !errors.Is(err, ggerr.ErrNotInitialized) {
		t.Fatalf("position 0: got %v, want evicted", err)
	}
	if _, _, err := c.Read(0, 1); !errors.Is(err, ggerr.ErrNotInitialized) {
		t.Fatalf("position 1: got %v, want evicted", err)
	}
	if _, _, err := c.Read(0, 4); err != nil {
		t.Fatalf("position 4 should still be live: %v", err)
	}
	if got := c.Stats().Evictions; got != 2 {
		t.Fatalf("evictions = %d, want 2", got)
	}
}

func TestLayerOutOfRange(t *testing.T) {
	c := New(2, 8, 4, 0)
	if err := c.Store(5, 0, vec(0, 4), vec(0, 4)); !errors.Is(err, ggerr.ErrInvalidTokenID) {
		t.Fatalf("got %v, want ErrInvalidTokenID", err)
	}
}

func TestRangeVisitsOnlyLivePositions(t *testing.T) {
	c := New(1, 100, 2, 2)
	for pos := 0; pos < 4; pos++ {
		_ = c.Store(0, pos, vec(float32(pos), 2), vec(float32(pos), 2))
	}
	var seen []int
	if err := c.Range(0, func(position int, _, _ []float32) {
		seen = append(seen, position)
	}); err != nil {
		t.Fatalf("Range: %v", err)
	}
	if len(seen) != 2 {
		t.Fatalf("Range visited %v, want exactly the 2 live positions", seen)
	}
}
