// Package kvcache implements the single-sequence key/value cache
// described in spec.md §3/§4.5: one ring buffer per transformer layer,
// addressed by absolute sequence position, with FIFO eviction once a
// configured sliding window fills. Grounded on the teacher's kvcache
// package (constructors.go's per-layer map-of-tensors shape,
// sequence_ops.go's window/eviction bookkeeping) collapsed from the
// teacher's multi-sequence design down to the single always-active
// sequence spec.md §1's Non-goals require ("multi-tenant isolation" is
// out of scope).
package kvcache

import (
	"fmt"

	"github.com/emirpasic/gods/v2/queues/arrayqueue"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

// Stats mirrors the counters spec.md §4.5 and §8 property 7 ask the
// cache to expose: how many stores/reads/evictions have happened since
// construction.
type Stats struct {
	Stores    uint64
	Reads     uint64
	Evictions uint64
}

// layerSlot holds one position's key and value vectors for one layer.
type layerSlot struct {
	key, value []float32
	written    bool
}

// Layer is one transformer layer's ring buffer of key/value slots.
type Layer struct {
	slots []layerSlot
	// positions tracks, in FIFO order, which absolute position occupies
	// each ring slot currently holding live data — needed so eviction
	// can find the oldest live position when the sliding window is full.
	positions *arrayqueue.Queue[int]
	headDim   int
	window    int // 0 means unbounded (no eviction)
}

// Cache holds one Layer per transformer layer, keyed by layer index.
type Cache struct {
	layers []*Layer
	stats  Stats
}

// New builds a cache with nLayers ring buffers, each sized to hold
// `capacity` positions of headDim-wide key/value vectors. window > 0
// enables FIFO sliding-window eviction (spec.md §4.5); window == 0
// disables eviction entirely (the ring never wraps past capacity, and a
// write past capacity is a caller error).
func New(nLayers, capacity, headDim, window int) *Cache {
	c := &Cache{layers: make([]*Layer, nLayers)}
	for i := range c.layers {
		c.layers[i] = &Layer{
			slots:     make([]layerSlot, capacity),
			positions: arrayqueue.New[int](),
			headDim:   headDim,
			window:    window,
		}
	}
	return c
}

// Store writes the key/value vectors for one (layer, position) pair,
// evicting the oldest live position first if the sliding window is full.
// key and value must each have exactly headDim elements; Store copies
// them, so the caller's buffers may be reused immediately after return.
func (c *Cache) Store(layer, position int, key, value []float32) error {
	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	if len(key) != l.headDim || len(value) != l.headDim {
		return fmt.Errorf("%w: kv store expected headDim=%d, got key=%d value=%d", ggerr.ErrMalformedTensor, l.headDim, len(key), len(value))
	}
	if l.window == 0 && position >= len(l.slots) {
		return fmt.Errorf("%w: position %d exceeds capacity %d", ggerr.ErrContextOverflow, position, len(l.slots))
	}

	slotIdx := position % len(l.slots)
	if l.window > 0 && l.positions.Size() >= l.window {
		c.evictOldest(l)
	}

	slot := &l.slots[slotIdx]
	if cap(slot.key) < l.headDim {
		slot.key = make([]float32, l.headDim)
		slot.value = make([]float32, l.headDim)
	}
	copy(slot.key, key)
	copy(slot.value, value)
	slot.written = true
	l.positions.Enqueue(position)
	c.stats.Stores++
	return nil
}

func (c *Cache) evictOldest(l *Layer) {
	oldest, ok := l.positions.Dequeue()
	if !ok {
		return
	}
	l.slots[oldest%len(l.slots)].written = false
	c.stats.Evictions++
}

// Read returns the stored key/value vectors for one (layer, position)
// pair. Reading a position never written, or one already evicted,
// returns ggerr.ErrNotInitialized per spec.md §8 property 7.
func (c *Cache) Read(layer, position int) (key, value []float32, err error) {
	l, err := c.layer(layer)
	if err != nil {
		return nil, nil, err
	}
	slot := &l.slots[position%len(l.slots)]
	if !slot.written {
		return nil, nil, fmt.Errorf("%w: layer %d position %d", ggerr.ErrNotInitialized, layer, position)
	}
	c.stats.Reads++
	return slot.key, slot.value, nil
}

// Range calls fn for every live position in ascending FIFO order, used
// by attention to walk the causal window without the caller needing to
// know which positions survived eviction.
func (c *Cache) Range(layer int, fn func(position int, key, value []float32)) error {
	l, err := c.layer(layer)
	if err != nil {
		return err
	}
	for _, position := range l.positions.Values() {
		slot := &l.slots[position%len(l.slots)]
		if slot.written {
			fn(position, slot.key, slot.value)
		}
	}
	return nil
}

func (c *Cache) layer(layer int) (*Layer, error) {
	if layer < 0 || layer >= len(c.layers) {
		return nil, fmt.Errorf("%w: layer %d out of range [0,%d)", ggerr.ErrInvalidTokenID, layer, len(c.layers))
	}
	return c.layers[layer], nil
}

// Stats returns a snapshot of the cache's lifetime counters.
func (c *Cache) Stats() Stats { return c.stats }

// NumLayers reports how many per-layer ring buffers this cache holds.
func (c *Cache) NumLayers() int { return len(c.layers) }
