// Package ggerr defines the error taxonomy shared by every core package:
// Load, Resource, State, Runtime and IO categories. Callers compare with
// errors.Is against the sentinels below; wrapped errors carry the
// offending name or key via fmt.Errorf("%w: ...", Sentinel).
package ggerr

import "errors"

// Load errors are fatal to the engine instance that produced them.
var (
	ErrBadMagic           = errors.New("gguf: bad magic")
	ErrUnsupportedVersion = errors.New("gguf: unsupported version")
	ErrTruncated          = errors.New("gguf: truncated")
	ErrMalformedTensor    = errors.New("gguf: malformed tensor")
	ErrMissingMetadata    = errors.New("gguf: missing metadata key")
	ErrUnsupportedQuant   = errors.New("gguf: unsupported quantization kind")
)

// Resource errors signal exhaustion of a caller-supplied buffer or arena.
var (
	ErrOutOfMemory    = errors.New("resource: out of memory")
	ErrBufferTooSmall = errors.New("resource: buffer too small")
)

// State errors signal a call made outside the engine's valid state machine.
var (
	ErrWrongState     = errors.New("state: wrong state")
	ErrNotInitialized = errors.New("state: not initialized")
)

// Runtime errors abort the in-flight generation but leave the engine Ready.
var (
	ErrNumericOverflow = errors.New("runtime: numeric overflow")
	ErrInvalidTokenID  = errors.New("runtime: invalid token id")
	ErrContextOverflow = errors.New("runtime: context overflow")
)

// IO errors originate from the block device collaborator.
var (
	ErrReadFailed = errors.New("io: read failed")
	ErrTimeout    = errors.New("io: timeout")
)
