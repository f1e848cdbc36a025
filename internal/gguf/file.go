// Package gguf parses a memory-mapped GGUF model image into the
// immutable {ModelConfig, TensorDirectory, WeightBlob} triple described
// in spec.md §4.1. It never opens a file itself: the caller supplies the
// byte range (typically a block-device-backed mmap on bare metal, or an
// os.File-backed mmap/read under the hosted harness) and guarantees it
// stays readable for the engine's lifetime.
package gguf

import (
	"fmt"
	"math"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

const maxTensorNameLen = 127

// File is the parsed, immutable view over one GGUF model image.
type File struct {
	Magic   [4]byte
	Version uint32

	KeyValues  []KeyValue
	kvIndex    map[string]int
	Tensors    []TensorInfo
	tensorIdx  map[string]int
	BlobOffset int64 // aligned start of the weight blob within data (256 bytes unless general.alignment says otherwise)
	data       []byte
}

// Parse runs the exact parse order from spec.md §4.1 over an in-memory
// byte range: magic, version, tensor count, kv count, n_kv KV records,
// n_tensors tensor records, then align the cursor up to the next 256-byte
// boundary (or the file's general.alignment value, when it sets a
// positive one) to find the weight blob origin.
func Parse(data []byte) (*File, error) {
	c := newCursor(data)

	magicBytes, err := c.bytes(4)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ggerr.ErrTruncated, err)
	}
	var magic [4]byte
	copy(magic[:], magicBytes)
	if magic != [4]byte{'G', 'G', 'U', 'F'} {
		return nil, fmt.Errorf("%w: got %q", ggerr.ErrBadMagic, magic)
	}

	version, err := readFixed[uint32](c)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ggerr.ErrTruncated, err)
	}
	if version != 2 && version != 3 {
		return nil, fmt.Errorf("%w: version %d", ggerr.ErrUnsupportedVersion, version)
	}

	tensorCount, err := readFixed[uint64](c)
	if err != nil {
		return nil, fmt.Errorf("%w: tensor count: %v", ggerr.ErrTruncated, err)
	}
	kvCount, err := readFixed[uint64](c)
	if err != nil {
		return nil, fmt.Errorf("%w: kv count: %v", ggerr.ErrTruncated, err)
	}

	f := &File{
		Magic:     magic,
		Version:   version,
		kvIndex:   make(map[string]int, kvCount),
		tensorIdx: make(map[string]int, tensorCount),
		data:      data,
	}

	for i := uint64(0); i < kvCount; i++ {
		kv, err := readKeyValue(c)
		if err != nil {
			return nil, fmt.Errorf("kv record %d: %w", i, err)
		}
		f.kvIndex[kv.Key] = len(f.KeyValues)
		f.KeyValues = append(f.KeyValues, kv)
	}

	for i := uint64(0); i < tensorCount; i++ {
		t, err := readTensorRecord(c)
		if err != nil {
			return nil, fmt.Errorf("tensor record %d: %w", i, err)
		}
		f.tensorIdx[t.Name] = len(f.Tensors)
		f.Tensors = append(f.Tensors, t)
	}

	alignment := int64(256)
	if v, ok := f.keyValueRaw("general.alignment"); ok {
		if a := v.Int(); a > 0 {
			alignment = int64(a)
		}
	}
	offset := c.pos
	f.BlobOffset = offset + (alignment-offset%alignment)%alignment

	if err := f.validateTensorOffsets(); err != nil {
		return nil, err
	}

	return f, nil
}

func readTensorRecord(c *cursor) (TensorInfo, error) {
	name, err := readString(c)
	if err != nil {
		return TensorInfo{}, err
	}
	if len(name) > maxTensorNameLen {
		return TensorInfo{}, fmt.Errorf("%w: name %q exceeds %d bytes", ggerr.ErrMalformedTensor, name, maxTensorNameLen)
	}

	nDims, err := readFixed[uint32](c)
	if err != nil {
		return TensorInfo{}, err
	}
	if nDims > 4 {
		return TensorInfo{}, fmt.Errorf("%w: %s has %d dims", ggerr.ErrMalformedTensor, name, nDims)
	}

	var dims [4]uint64
	for i := uint32(0); i < nDims; i++ {
		dims[i], err = readFixed[uint64](c)
		if err != nil {
			return TensorInfo{}, err
		}
	}
	for i := range dims {
		if dims[i] == 0 {
			dims[i] = 1
		}
	}

	kind, err := readFixed[uint32](c)
	if err != nil {
		return TensorInfo{}, err
	}
	tt := TensorType(kind)
	if tt.BlockElems() == 0 {
		return TensorInfo{}, fmt.Errorf("%w: %s kind %d", ggerr.ErrUnsupportedQuant, name, kind)
	}

	offset, err := readFixed[uint64](c)
	if err != nil {
		return TensorInfo{}, err
	}

	t := TensorInfo{Name: name, NDims: int(nDims), Dims: dims, Type: tt, Offset: offset}

	ne := t.NumElements()
	if tt.IsQuantized() && ne%uint64(tt.BlockElems()) != 0 {
		return TensorInfo{}, fmt.Errorf("%w: %s has %d elements, not a multiple of block size %d", ggerr.ErrMalformedTensor, name, ne, tt.BlockElems())
	}

	size := tt.RowSize(ne)
	if size == 0 || size > math.MaxInt64 {
		return TensorInfo{}, fmt.Errorf("%w: %s byte size overflow", ggerr.ErrMalformedTensor, name)
	}
	t.PackedSize = size

	return t, nil
}

func (f *File) validateTensorOffsets() error {
	blobLen := int64(len(f.data)) - f.BlobOffset
	if blobLen < 0 {
		return fmt.Errorf("%w: weight blob origin beyond end of file", ggerr.ErrTruncated)
	}
	for _, t := range f.Tensors {
		end := t.Offset + t.PackedSize
		if end < t.Offset || int64(end) > blobLen {
			return fmt.Errorf("%w: %s [%d, %d) out of weight blob bounds [0, %d)", ggerr.ErrMalformedTensor, t.Name, t.Offset, end, blobLen)
		}
	}
	return nil
}

func (f *File) keyValueRaw(key string) (Value, bool) {
	if i, ok := f.kvIndex[key]; ok {
		return f.KeyValues[i].Value, true
	}
	return Value{}, false
}

// Architecture returns the general.architecture metadata string, used to
// resolve architecture-prefixed keys like "<arch>.attention.head_count".
func (f *File) Architecture() string {
	v, _ := f.keyValueRaw("general.architecture")
	return v.String()
}

// KeyValue looks up a metadata key, prefixing it with the model's
// architecture unless it already names a "general." or "tokenizer."
// namespace, mirroring the teacher's fs/gguf accessor convention.
func (f *File) KeyValue(key string) (Value, bool) {
	if len(key) < 8 || (key[:8] != "general." && (len(key) < 10 || key[:10] != "tokenizer.")) {
		key = f.Architecture() + "." + key
	}
	return f.keyValueRaw(key)
}

// RequireKeyValue is KeyValue but returns ErrMissingMetadata when absent,
// for the handful of keys §4.1 lists as required to build a ModelConfig.
func (f *File) RequireKeyValue(key string) (Value, error) {
	v, ok := f.KeyValue(key)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ggerr.ErrMissingMetadata, key)
	}
	return v, nil
}

// TensorInfo looks up one tensor's descriptor by name.
func (f *File) TensorInfo(name string) (TensorInfo, bool) {
	i, ok := f.tensorIdx[name]
	if !ok {
		return TensorInfo{}, false
	}
	return f.Tensors[i], true
}

// TensorBytes returns the packed tensor bytes as a slice into the
// original image, spanning exactly PackedSize bytes from the weight
// blob origin. No copy; the caller owns the returned slice only for as
// long as the underlying image stays mapped.
func (f *File) TensorBytes(name string) ([]byte, error) {
	t, ok := f.TensorInfo(name)
	if !ok {
		return nil, fmt.Errorf("%w: tensor %q", ggerr.ErrMalformedTensor, name)
	}
	start := f.BlobOffset + int64(t.Offset)
	end := start + int64(t.PackedSize)
	if end > int64(len(f.data)) {
		return nil, fmt.Errorf("%w: tensor %q exceeds image", ggerr.ErrTruncated, name)
	}
	return f.data[start:end], nil
}
