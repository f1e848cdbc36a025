package quant

import (
	"fmt"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
	"github.com/dddimcha/embodiOS-sub004/internal/gguf"
)

// WeightStore is the addressable-by-name view over a GGUF image's tensor
// directory spec.md §3 describes: it never materializes a dequantized
// copy of a weight tensor, only hands out packed row slices and per-row
// kernels (DequantizeRow, RowDot) that operate on them in place.
type WeightStore struct {
	file *gguf.File
}

// NewWeightStore wraps an already-parsed GGUF file. The file must stay
// mapped for the lifetime of the store; WeightStore never copies tensor
// bytes out of it.
func NewWeightStore(f *gguf.File) *WeightStore {
	return &WeightStore{file: f}
}

// Descriptor exposes the subset of a TensorInfo a caller needs to drive
// row-wise kernels without reaching into the gguf package directly.
type Descriptor struct {
	Name       string
	Kind       Kind
	Dims       [4]uint64
	NDims      int
	PackedSize uint64
}

func newDescriptor(t gguf.TensorInfo) Descriptor {
	return Descriptor{Name: t.Name, Kind: t.Type, Dims: t.Dims, NDims: t.NDims, PackedSize: t.PackedSize}
}

// Describe returns a tensor's shape/kind without touching its bytes.
func (s *WeightStore) Describe(name string) (Descriptor, bool) {
	t, ok := s.file.TensorInfo(name)
	if !ok {
		return Descriptor{}, false
	}
	return newDescriptor(t), true
}

// Rows returns the number of rows in a 2D weight matrix: dims[1] for a
// [cols, rows] GGUF tensor (GGUF stores the fastest-varying dimension
// first), or 1 for a 1D tensor (bias/norm vector).
func (d Descriptor) Rows() uint64 {
	if d.NDims < 2 {
		return 1
	}
	return d.Dims[1]
}

// Cols returns the row width in logical elements.
func (d Descriptor) Cols() uint64 {
	if d.NDims == 0 {
		return 0
	}
	return d.Dims[0]
}

// Row returns the packed bytes for one row of a tensor, without
// dequantizing. Row 0 of a 1D tensor is the whole tensor.
func (s *WeightStore) Row(name string, row uint64) ([]byte, error) {
	d, ok := s.Describe(name)
	if !ok {
		return nil, fmt.Errorf("%w: tensor %q", ggerr.ErrMalformedTensor, name)
	}
	if row >= d.Rows() {
		return nil, fmt.Errorf("%w: row %d out of range for %q (%d rows)", ggerr.ErrInvalidTokenID, row, name, d.Rows())
	}
	full, err := s.file.TensorBytes(name)
	if err != nil {
		return nil, err
	}
	if d.Rows() == 1 {
		return full, nil
	}
	rowBytes := uint64(d.Kind.RowSize(d.Cols()))
	start := row * rowBytes
	return full[start : start+rowBytes], nil
}

// DequantizeRowInto dequantizes one row of a named tensor into out, which
// must have capacity for exactly Cols() float32 values.
func (s *WeightStore) DequantizeRowInto(name string, row uint64, out []float32) error {
	d, ok := s.Describe(name)
	if !ok {
		return fmt.Errorf("%w: tensor %q", ggerr.ErrMalformedTensor, name)
	}
	rb, err := s.Row(name, row)
	if err != nil {
		return err
	}
	DequantizeRow(d.Kind, rb, out)
	return nil
}

// Dot computes one row's dot product against an activation vector without
// dequantizing the full tensor, per spec.md §4.2.
func (s *WeightStore) Dot(name string, row uint64, act []float32) (float32, error) {
	d, ok := s.Describe(name)
	if !ok {
		return 0, fmt.Errorf("%w: tensor %q", ggerr.ErrMalformedTensor, name)
	}
	rb, err := s.Row(name, row)
	if err != nil {
		return 0, err
	}
	return RowDot(d.Kind, rb, act), nil
}

// HasTensor reports whether a tensor exists, used for weight-tying
// fallback (spec.md §4.4 step 4: reuse the embedding table when
// "output.weight" is absent from the checkpoint).
func (s *WeightStore) HasTensor(name string) bool {
	_, ok := s.file.TensorInfo(name)
	return ok
}
