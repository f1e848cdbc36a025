package gguf

import "fmt"

// TensorType is the quantization kind of a tensor's packed storage,
// restricted to the kinds spec.md §3 requires the core to reproduce
// exactly: F32, F16, Q4_0, Q8_0, Q4_K, Q5_K, Q6_K.
type TensorType uint32

const (
	TensorTypeF32 TensorType = iota
	TensorTypeF16
	TensorTypeQ4_0
	_ // Q4_1, unsupported
	_ // Q4_2, unused upstream
	_ // Q4_3, unused upstream
	_ // Q5_0, unsupported
	_ // Q5_1, unsupported
	TensorTypeQ8_0
	_ // Q8_1, unsupported
	_ // Q2_K, unsupported
	_ // Q3_K, unsupported
	TensorTypeQ4_K
	TensorTypeQ5_K
	TensorTypeQ6_K
)

func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	case TensorTypeQ4_0:
		return "Q4_0"
	case TensorTypeQ8_0:
		return "Q8_0"
	case TensorTypeQ4_K:
		return "Q4_K"
	case TensorTypeQ5_K:
		return "Q5_K"
	case TensorTypeQ6_K:
		return "Q6_K"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// BlockElems is the number of scalar elements packed into one block of
// this kind, per the table in spec.md §3.
func (t TensorType) BlockElems() int {
	switch t {
	case TensorTypeF32, TensorTypeF16:
		return 1
	case TensorTypeQ4_0, TensorTypeQ8_0:
		return 32
	case TensorTypeQ4_K, TensorTypeQ5_K, TensorTypeQ6_K:
		return 256
	default:
		return 0
	}
}

// BlockBytes is the packed byte size of one block of this kind.
func (t TensorType) BlockBytes() int {
	switch t {
	case TensorTypeF32:
		return 4
	case TensorTypeF16:
		return 2
	case TensorTypeQ4_0:
		return 18
	case TensorTypeQ8_0:
		return 34
	case TensorTypeQ4_K:
		return 144
	case TensorTypeQ5_K:
		return 176
	case TensorTypeQ6_K:
		return 210
	default:
		return 0
	}
}

func (t TensorType) IsQuantized() bool {
	return t != TensorTypeF32 && t != TensorTypeF16
}

// RowSize returns the packed byte size of a row of ne elements.
func (t TensorType) RowSize(ne uint64) uint64 {
	be := uint64(t.BlockElems())
	if be == 0 {
		return 0
	}
	return ne / be * uint64(t.BlockBytes())
}

// TensorInfo is the Tensor Descriptor of spec.md §3: name, shape (up to
// 4 dims), quantization kind, and absolute byte offset into the weight
// blob (Offset is relative to the blob origin as parsed; PackedSize is
// the packed byte size spanned).
type TensorInfo struct {
	Name       string
	NDims      int
	Dims       [4]uint64
	Type       TensorType
	Offset     uint64
	PackedSize uint64
}

// NumElements is the product of all dims.
func (t TensorInfo) NumElements() uint64 {
	n := uint64(1)
	for i := 0; i < t.NDims; i++ {
		n *= t.Dims[i]
	}
	return n
}
