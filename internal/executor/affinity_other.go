//go:build !linux

package executor

import "log/slog"

// pinToCore is a no-op outside linux: Go's runtime/OS combination has no
// portable affinity syscall, so ModeDeterministic still fixes the
// chunk-to-worker mapping (the part spec.md §5 needs for bit-identical
// reductions) without guaranteeing which physical core runs it.
func pinToCore(worker int, log *slog.Logger) {
	_ = worker
	_ = log
}
