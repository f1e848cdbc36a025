// Package quant implements the block-structured quantized weight store
// and the dequantization/matmul kernels of spec.md §3–§4.2: Q4_0, Q8_0,
// Q4_K, Q5_K, Q6_K, F16 and F32, each processed block-in-place so that a
// full F32 copy of a weight tensor is never materialized.
//
// Block layouts are grounded on the teacher's fs/ggml/tensortype.go kind
// table and on the other_examples go-highway gguf kernels, which carry
// the same llama.cpp-compatible byte layouts in portable Go rather than
// cgo.
package quant

import (
	"github.com/x448/float16"

	"github.com/dddimcha/embodiOS-sub004/internal/gguf"
)

const (
	blockElemsQK   = 32  // Q4_0, Q8_0
	blockElemsQKK  = 256 // Q4_K, Q5_K, Q6_K

	blockBytesQ4_0 = 18
	blockBytesQ8_0 = 34
	blockBytesQ4_K = 144
	blockBytesQ5_K = 176
	blockBytesQ6_K = 210

	kScaleSize = 12 // bytes of packed 6-bit scale/min pairs in Q4_K/Q5_K
)

// Kind re-exports gguf.TensorType under the package that actually
// operates on block bytes, so callers of quant don't need to import
// gguf just to name a quantization kind.
type Kind = gguf.TensorType

func decodeF16(b []byte) float32 {
	bits := uint16(b[0]) | uint16(b[1])<<8
	return float16.Frombits(bits).Float32()
}

// NumBlocks returns how many fixed-size blocks a packed row of kind k
// and nbytes total bytes contains.
func NumBlocks(k Kind, nbytes int) int {
	bb := k.BlockBytes()
	if bb == 0 {
		return 0
	}
	return nbytes / bb
}
