package quant

import (
	"math"

	"github.com/dddimcha/embodiOS-sub004/internal/gguf"
)

// DequantizeRow expands one packed row of the given kind into out, which
// must have capacity for exactly NumBlocks(k, len(row)) * k.BlockElems()
// float32 values. This is the scalar reference form spec.md §4.2 requires
// to exist for every kind and to be byte-identical to the llama.cpp
// reference implementation.
func DequantizeRow(k Kind, row []byte, out []float32) {
	switch k {
	case KindF32:
		dequantF32(row, out)
	case KindF16:
		dequantF16(row, out)
	case KindQ4_0:
		dequantQ4_0(row, out)
	case KindQ8_0:
		dequantQ8_0(row, out)
	case KindQ4_K:
		dequantQ4_K(row, out)
	case KindQ5_K:
		dequantQ5_K(row, out)
	case KindQ6_K:
		dequantQ6_K(row, out)
	default:
		panic("quant: unsupported kind in DequantizeRow")
	}
}

// Exported kind aliases so callers don't reach into the gguf package
// just to name a quantization kind when building a WeightStore.
const (
	KindF32  = gguf.TensorTypeF32
	KindF16  = gguf.TensorTypeF16
	KindQ4_0 = gguf.TensorTypeQ4_0
	KindQ8_0 = gguf.TensorTypeQ8_0
	KindQ4_K = gguf.TensorTypeQ4_K
	KindQ5_K = gguf.TensorTypeQ5_K
	KindQ6_K = gguf.TensorTypeQ6_K
)

func dequantF32(row []byte, out []float32) {
	for i := range out {
		b := row[i*4 : i*4+4]
		bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
		out[i] = math.Float32frombits(bits)
	}
}

func dequantF16(row []byte, out []float32) {
	for i := range out {
		out[i] = decodeF16(row[i*2 : i*2+2])
	}
}

// dequantQ4_0 decodes Q4_0 blocks: 2-byte f16 scale + 16 nibble-packed
// bytes holding 32 4-bit signed (biased by 8) values. Low nibbles decode
// the first 16 elements, high nibbles the last 16 — the GGUF "split
// nibble" layout, grounded on other_examples' BaseDequantizeQ4_0.
func dequantQ4_0(row []byte, out []float32) {
	nb := NumBlocks(KindQ4_0, len(row))
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ4_0 : (b+1)*blockBytesQ4_0]
		d := decodeF16(block[0:2])
		qs := block[2:]
		o := out[b*blockElemsQK:]
		for i := 0; i < 16; i++ {
			lo := int(qs[i] & 0x0F)
			hi := int(qs[i] >> 4)
			o[i] = d * float32(lo-8)
			o[i+16] = d * float32(hi-8)
		}
	}
}

// dequantQ8_0 decodes Q8_0 blocks: 2-byte f16 scale + 32 signed int8
// values.
func dequantQ8_0(row []byte, out []float32) {
	nb := NumBlocks(KindQ8_0, len(row))
	for b := 0; b < nb; b++ {
		block := row[b*blockBytesQ8_0 : (b+1)*blockBytesQ8_0]
		d := decodeF16(block[0:2])
		qs := block[2:]
		o := out[b*blockElemsQK:]
		for i := 0; i < blockElemsQK; i++ {
			o[i] = d * float32(int8(qs[i]))
		}
	}
}
