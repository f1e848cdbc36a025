package quant

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/dddimcha/embodiOS-sub004/internal/gguf"
)

// buildStoreFixture returns a parsed GGUF file with one 2D F32 tensor
// "weight" of shape [cols=3, rows=2], row-major by GGUF's
// fastest-varying-first convention, so Row(1) picks up the second row.
func buildStoreFixture(t *testing.T) *gguf.File {
	t.Helper()
	var buf bytes.Buffer
	writeStr := func(s string) {
		binary.Write(&buf, binary.LittleEndian, uint64(len(s)))
		buf.WriteString(s)
	}

	buf.WriteString("GGUF")
	binary.Write(&buf, binary.LittleEndian, uint32(3))
	binary.Write(&buf, binary.LittleEndian, uint64(1)) // tensor count
	binary.Write(&buf, binary.LittleEndian, uint64(1)) // kv count

	writeStr("general.architecture")
	binary.Write(&buf, binary.LittleEndian, uint32(8)) // typeString
	writeStr("testarch")

	writeStr("weight")
	binary.Write(&buf, binary.LittleEndian, uint32(2)) // ndims
	binary.Write(&buf, binary.LittleEndian, uint64(3)) // dims[0] = cols
	binary.Write(&buf, binary.LittleEndian, uint64(2)) // dims[1] = rows
	binary.Write(&buf, binary.LittleEndian, uint32(gguf.TensorTypeF32))
	binary.Write(&buf, binary.LittleEndian, uint64(0)) // offset

	headerLen := int64(buf.Len())
	pad := (256 - headerLen%256) % 256
	buf.Write(make([]byte, pad))

	rows := [][]float32{{1, 2, 3}, {4, 5, 6}}
	for _, row := range rows {
		for _, v := range row {
			binary.Write(&buf, binary.LittleEndian, math.Float32bits(v))
		}
	}

	f, err := gguf.Parse(buf.Bytes())
	if err != nil {
		t.Fatalf("Parse fixture: %v", err)
	}
	return f
}

func TestWeightStoreRowAndDequantize(t *testing.T) {
	store := NewWeightStore(buildStoreFixture(t))

	d, ok := store.Describe("weight")
	if !ok || d.Rows() != 2 || d.Cols() != 3 {
		t.Fatalf("Describe = %+v, ok=%v", d, ok)
	}

	out := make([]float32, 3)
	if err := store.DequantizeRowInto("weight", 1, out); err != nil {
		t.Fatalf("DequantizeRowInto: %v", err)
	}
	want := []float32{4, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("row 1 = %v, want %v", out, want)
		}
	}
}

func TestWeightStoreDotMatchesManualDot(t *testing.T) {
	store := NewWeightStore(buildStoreFixture(t))
	act := []float32{1, 1, 1}
	got, err := store.Dot("weight", 0, act)
	if err != nil {
		t.Fatalf("Dot: %v", err)
	}
	if got != 6 { // 1+2+3
		t.Fatalf("Dot = %v, want 6", got)
	}
}

func TestWeightStoreRowOutOfRangeFails(t *testing.T) {
	store := NewWeightStore(buildStoreFixture(t))
	if _, err := store.Row("weight", 5); err == nil {
		t.Fatal("expected error for out-of-range row")
	}
}

func TestWeightStoreHasTensor(t *testing.T) {
	store := NewWeightStore(buildStoreFixture(t))
	if !store.HasTensor("weight") {
		t.Fatal("HasTensor(weight) = false, want true")
	}
	if store.HasTensor("missing") {
		t.Fatal("HasTensor(missing) = true, want false")
	}
}
