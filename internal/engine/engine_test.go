package engine

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
	"github.com/dddimcha/embodiOS-sub004/internal/gguf"
	"github.com/dddimcha/embodiOS-sub004/internal/quant"
	"github.com/dddimcha/embodiOS-sub004/internal/sampler"
)

const (
	testEmbeddingDim = 4
	testFFNHidden    = 4
	testVocabSize    = 3
)

type tensorSpec struct {
	name string
	dims []uint64 // GGUF order: dims[0] = cols (fastest-varying), dims[1] = rows
	data []float32
}

// buildFixtureModel assembles a one-layer, F32-only GGUF image small
// enough to run Generate end to end: every projection matrix is the
// identity (or a basis-vector embedding/output table), so the forward
// pass produces finite, reproducible logits without asserting on
// specific numeric output.
func buildFixtureModel(t *testing.T, maxSeqLen int) (*quant.WeightStore, gguf.ModelConfig) {
	t.Helper()

	identity4 := func() []float32 {
		m := make([]float32, 16)
		for i := 0; i < 4; i++ {
			m[i*4+i] = 1
		}
		return m
	}
	basis := func(n, dim int) []float32 {
		m := make([]float32, n*dim)
		for i := 0; i < n; i++ {
			m[i*dim+i%dim] = 1
		}
		return m
	}
	ones := func(n int) []float32 {
		m := make([]float32, n)
		for i := range m {
			m[i] = 1
		}
		return m
	}

	tensors := []tensorSpec{
		{"token_embd.weight", []uint64{testEmbeddingDim, testVocabSize}, basis(testVocabSize, testEmbeddingDim)},
		{"blk.0.attn_norm.weight", []uint64{testEmbeddingDim}, ones(testEmbeddingDim)},
		{"blk.0.attn_q.weight", []uint64{testEmbeddingDim, testEmbeddingDim}, identity4()},
		{"blk.0.attn_k.weight", []uint64{testEmbeddingDim, testEmbeddingDim}, identity4()},
		{"blk.0.attn_v.weight", []uint64{testEmbeddingDim, testEmbeddingDim}, identity4()},
		{"blk.0.attn_output.weight", []uint64{testEmbeddingDim, testEmbeddingDim}, identity4()},
		{"blk.0.ffn_norm.weight", []uint64{testEmbeddingDim}, ones(testEmbeddingDim)},
		{"blk.0.ffn_gate.weight", []uint64{testEmbeddingDim, testFFNHidden}, identity4()},
		{"blk.0.ffn_up.weight", []uint64{testEmbeddingDim, testFFNHidden}, identity4()},
		{"blk.0.ffn_down.weight", []uint64{testFFNHidden, testEmbeddingDim}, identity4()},
		{"output_norm.weight", []uint64{testEmbeddingDim}, ones(testEmbeddingDim)},
		{"output.weight", []uint64{testEmbeddingDim, testVocabSize}, basis(testVocabSize, testEmbeddingDim)},
	}

	var buf bytes.Buffer
	writeStr := func(s string) {
		binary.Write(&buf, binary.LittleEndian, uint64(len(s)))
		buf.WriteString(s)
	}

	buf.WriteString("GGUF")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	binary.Write(&buf, binary.LittleEndian, uint64(len(tensors)))
	binary.Write(&buf, binary.LittleEndian, uint64(1)) // kv count

	writeStr("general.architecture")
	binary.Write(&buf, binary.LittleEndian, uint32(8)) // typeString
	writeStr("testarch")

	// blobOffsets[i] is where tensor i's packed bytes land within the
	// weight blob, computed up front so each tensor record's offset
	// field can be written directly in the single pass below.
	blobOffsets := make([]uint64, len(tensors))
	var blobCursor uint64
	for i, ts := range tensors {
		blobOffsets[i] = blobCursor
		blobCursor += uint64(len(ts.data)) * 4
	}

	for i, ts := range tensors {
		writeStr(ts.name)
		binary.Write(&buf, binary.LittleEndian, uint32(len(ts.dims)))
		for _, d := range ts.dims {
			binary.Write(&buf, binary.LittleEndian, d)
		}
		binary.Write(&buf, binary.LittleEndian, uint32(gguf.TensorTypeF32))
		binary.Write(&buf, binary.LittleEndian, blobOffsets[i])
	}

	header := buf.Bytes()
	headerLen := int64(len(header))
	pad := (256 - headerLen%256) % 256
	var image bytes.Buffer
	image.Write(header)
	image.Write(make([]byte, pad))
	for _, ts := range tensors {
		for _, v := range ts.data {
			binary.Write(&image, binary.LittleEndian, math.Float32bits(v))
		}
	}

	f, err := gguf.Parse(image.Bytes())
	if err != nil {
		t.Fatalf("Parse fixture: %v", err)
	}
	store := quant.NewWeightStore(f)

	cfg := gguf.ModelConfig{
		VocabSize:    testVocabSize,
		EmbeddingDim: testEmbeddingDim,
		NLayers:      1,
		NHeads:       1,
		NKVHeads:     1,
		HeadDim:      testEmbeddingDim,
		FFNHiddenDim: testFFNHidden,
		MaxSeqLen:    maxSeqLen,
		RopeTheta:    10000,
		NormEps:      1e-5,
		BOSID:        0,
		EOSID:        99,
		Tokens:       []string{"a", "b", "c"},
	}
	return store, cfg
}

func newTestEngine(t *testing.T, maxSeqLen int) *Engine {
	t.Helper()
	store, cfg := buildFixtureModel(t, maxSeqLen)
	e := New(store, cfg, Options{})
	if err := e.Load(Options{MaxSeqLen: maxSeqLen}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := e.Ready(); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	return e
}

func TestGenerateEmptyPromptReturnsInvalidTokenID(t *testing.T) {
	e := newTestEngine(t, 16)
	out, err := e.Generate(context.Background(), nil, 5, sampler.New(1, 0), 99)
	if !errors.Is(err, ggerr.ErrInvalidTokenID) {
		t.Fatalf("err = %v, want ErrInvalidTokenID", err)
	}
	if out != nil {
		t.Fatalf("out = %v, want nil", out)
	}
	if e.State() != StateReady {
		t.Fatalf("state = %v, want StateReady (unchanged)", e.State())
	}
}

func TestGenerateStopsAtContextOverflow(t *testing.T) {
	e := newTestEngine(t, 3) // prompt length == maxSeqLen-1
	out, err := e.Generate(context.Background(), []int32{0, 1}, 10, sampler.New(1, 0), 99)
	if !errors.Is(err, ggerr.ErrContextOverflow) {
		t.Fatalf("err = %v, want ErrContextOverflow", err)
	}
	if len(out) != 1 {
		t.Fatalf("generated %d tokens, want exactly 1", len(out))
	}
	if e.State() != StateReady {
		t.Fatalf("state = %v, want StateReady after Generate returns", e.State())
	}
}

func TestGenerateIsDeterministicForFixedSeed(t *testing.T) {
	e1 := newTestEngine(t, 32)
	e2 := newTestEngine(t, 32)

	out1, err := e1.Generate(context.Background(), []int32{0, 1}, 5, sampler.New(7, 0), 99)
	if err != nil {
		t.Fatalf("Generate 1: %v", err)
	}
	out2, err := e2.Generate(context.Background(), []int32{0, 1}, 5, sampler.New(7, 0), 99)
	if err != nil {
		t.Fatalf("Generate 2: %v", err)
	}
	if len(out1) != len(out2) {
		t.Fatalf("lengths differ: %d vs %d", len(out1), len(out2))
	}
	for i := range out1 {
		if out1[i] != out2[i] {
			t.Fatalf("sequences diverge at %d: %v vs %v", i, out1, out2)
		}
	}
}
