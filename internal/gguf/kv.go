package gguf

import (
	"fmt"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

// valueType mirrors the GGUF metadata type tag, u8 through the recursive
// array tag. Values are read byte-wise in readValue's switch, matching
// the teacher's fs/gguf read-dispatch shape one-for-one.
type valueType uint32

const (
	typeUint8 valueType = iota
	typeInt8
	typeUint16
	typeInt16
	typeUint32
	typeInt32
	typeFloat32
	typeBool
	typeString
	typeArray
	typeUint64
	typeInt64
	typeFloat64
)

// Value wraps the decoded metadata payload; callers use the typed
// accessors below rather than type-asserting Raw directly.
type Value struct {
	Raw any
}

func (v Value) String() string {
	s, _ := v.Raw.(string)
	return s
}

// Int coerces any of the GGUF integer/float metadata kinds to int, which
// is all the ModelConfig fields (vocab_size, n_layers, ...) ever need.
func (v Value) Int() int {
	switch t := v.Raw.(type) {
	case uint8:
		return int(t)
	case int8:
		return int(t)
	case uint16:
		return int(t)
	case int16:
		return int(t)
	case uint32:
		return int(t)
	case int32:
		return int(t)
	case uint64:
		return int(t)
	case int64:
		return int(t)
	case float32:
		return int(t)
	case float64:
		return int(t)
	default:
		return 0
	}
}

func (v Value) Float() float64 {
	switch t := v.Raw.(type) {
	case float32:
		return float64(t)
	case float64:
		return t
	default:
		return float64(v.Int())
	}
}

func (v Value) StringArray() []string {
	s, _ := v.Raw.([]string)
	return s
}

func (v Value) Int32Array() []int32 {
	switch t := v.Raw.(type) {
	case []int32:
		return t
	case []uint32:
		out := make([]int32, len(t))
		for i, e := range t {
			out[i] = int32(e)
		}
		return out
	default:
		return nil
	}
}

// KeyValue is one decoded metadata record: an ASCII key and its typed
// value, in file order.
type KeyValue struct {
	Key   string
	Value Value
}

func readValue(c *cursor, t valueType) (any, error) {
	switch t {
	case typeUint8:
		return readFixed[uint8](c)
	case typeInt8:
		return readFixed[int8](c)
	case typeUint16:
		return readFixed[uint16](c)
	case typeInt16:
		return readFixed[int16](c)
	case typeUint32:
		return readFixed[uint32](c)
	case typeInt32:
		return readFixed[int32](c)
	case typeUint64:
		return readFixed[uint64](c)
	case typeInt64:
		return readFixed[int64](c)
	case typeFloat32:
		return readFixed[float32](c)
	case typeFloat64:
		return readFixed[float64](c)
	case typeBool:
		return readBool(c)
	case typeString:
		return readString(c)
	case typeArray:
		return readArray(c)
	default:
		return nil, fmt.Errorf("%w: metadata type %d", ggerr.ErrUnsupportedQuant, t)
	}
}

func readArray(c *cursor) (any, error) {
	elemType, err := readFixed[uint32](c)
	if err != nil {
		return nil, err
	}
	n, err := readFixed[uint64](c)
	if err != nil {
		return nil, err
	}

	switch valueType(elemType) {
	case typeString:
		out := make([]string, n)
		for i := range out {
			s, err := readString(c)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	case typeInt32:
		return readArrayData[int32](c, n)
	case typeUint32:
		return readArrayData[uint32](c, n)
	case typeFloat32:
		return readArrayData[float32](c, n)
	case typeInt64:
		return readArrayData[int64](c, n)
	case typeUint64:
		return readArrayData[uint64](c, n)
	case typeUint8:
		return readArrayData[uint8](c, n)
	case typeInt8:
		return readArrayData[int8](c, n)
	case typeUint16:
		return readArrayData[uint16](c, n)
	case typeInt16:
		return readArrayData[int16](c, n)
	case typeFloat64:
		return readArrayData[float64](c, n)
	case typeBool:
		out := make([]bool, n)
		for i := range out {
			b, err := readBool(c)
			if err != nil {
				return nil, err
			}
			out[i] = b
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: array element type %d", ggerr.ErrUnsupportedQuant, elemType)
	}
}

func readArrayData[T uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64](c *cursor, n uint64) ([]T, error) {
	out := make([]T, n)
	for i := range out {
		v, err := readFixed[T](c)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func readKeyValue(c *cursor) (KeyValue, error) {
	key, err := readString(c)
	if err != nil {
		return KeyValue{}, err
	}
	t, err := readFixed[uint32](c)
	if err != nil {
		return KeyValue{}, err
	}
	val, err := readValue(c, valueType(t))
	if err != nil {
		return KeyValue{}, fmt.Errorf("key %q: %w", key, err)
	}
	return KeyValue{Key: key, Value: Value{Raw: val}}, nil
}
