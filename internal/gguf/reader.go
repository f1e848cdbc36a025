package gguf

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

// cursor is a byte-wise little-endian reader over the mmap'd model image.
// Every multi-byte field is decoded field-by-field rather than cast
// through an aligned struct pointer, because aarch64 traps on unaligned
// loads and the weight blob gives no alignment guarantee for header
// fields that precede it.
type cursor struct {
	data []byte
	pos  int64
}

func newCursor(data []byte) *cursor {
	return &cursor{data: data}
}

func (c *cursor) remaining() int64 { return int64(len(c.data)) - c.pos }

func (c *cursor) need(n int64) error {
	if n < 0 || c.remaining() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ggerr.ErrTruncated, n, c.remaining())
	}
	return nil
}

func (c *cursor) bytes(n int64) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

func readFixed[T uint8 | int8 | uint16 | int16 | uint32 | int32 | uint64 | int64 | float32 | float64](c *cursor) (T, error) {
	var z T
	n := int64(binary.Size(z))
	b, err := c.bytes(n)
	if err != nil {
		return z, err
	}
	if err := binary.Read(byteReader(b), binary.LittleEndian, &z); err != nil {
		return z, fmt.Errorf("%w: %v", ggerr.ErrTruncated, err)
	}
	return z, nil
}

// byteReader adapts a []byte to io.Reader without an extra allocation per
// call; encoding/binary.Read wants an io.Reader even for fixed-size reads.
type byteReader []byte

func (b byteReader) Read(p []byte) (int, error) {
	n := copy(p, b)
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

func readBool(c *cursor) (bool, error) {
	v, err := readFixed[uint8](c)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

func readString(c *cursor) (string, error) {
	n, err := readFixed[uint64](c)
	if err != nil {
		return "", err
	}
	if n > uint64(c.remaining()) {
		return "", fmt.Errorf("%w: string length %d exceeds remaining %d", ggerr.ErrTruncated, n, c.remaining())
	}
	b, err := c.bytes(int64(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
