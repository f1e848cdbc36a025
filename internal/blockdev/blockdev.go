// Package blockdev declares the block-read primitive the GGUF loader
// consumes per spec.md §6, plus one hosted implementation so the core
// can be driven end-to-end under a normal OS. Real block device drivers
// (VirtIO-blk, NVMe, e1000e, I2C/SPI/GPIO) are external collaborators
// per spec.md §1 and are not implemented here.
package blockdev

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dddimcha/embodiOS-sub004/internal/ggerr"
)

// Device is the block-read primitive spec.md §6 names:
// `block.read(offset, len, buffer) -> Ok | IOError | Timeout`. Offsets
// and lengths are byte-granular; an implementation on real hardware
// translates them to sector reads internally.
type Device interface {
	ReadAt(ctx context.Context, offset int64, buf []byte) (n int, err error)
	Size() int64
}

// FileDevice backs Device with an os.File, for tests and the hosted CLI
// harness. It is not part of the specified core.
type FileDevice struct {
	f    *os.File
	size int64
}

// OpenFile opens path read-only and stats its size once.
func OpenFile(path string) (*FileDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ggerr.ErrReadFailed, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ggerr.ErrReadFailed, err)
	}
	return &FileDevice{f: f, size: info.Size()}, nil
}

// ReadAt reads len(buf) bytes starting at offset. Context cancellation
// maps to ggerr.ErrTimeout, matching spec.md §6's Timeout outcome.
func (d *FileDevice) ReadAt(ctx context.Context, offset int64, buf []byte) (int, error) {
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%w: %v", ggerr.ErrTimeout, ctx.Err())
	default:
	}
	n, err := d.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: %v", ggerr.ErrReadFailed, err)
	}
	return n, nil
}

// Size returns the underlying file's byte length.
func (d *FileDevice) Size() int64 { return d.size }

// Close releases the underlying file handle.
func (d *FileDevice) Close() error { return d.f.Close() }
