//go:build linux

package executor

import (
	"log/slog"
	"runtime"

	"golang.org/x/sys/unix"
)

// pinToCore locks the calling goroutine to its OS thread and restricts
// that thread's affinity mask to a single core, so ModeDeterministic's
// worker-to-core assignment actually holds at the scheduler level. A
// failure here (e.g. insufficient privilege, or a container cgroup that
// excludes the requested core) downgrades to unpinned execution per
// spec.md §7's "feature-detect failure never aborts the run" rule.
func pinToCore(worker int, log *slog.Logger) {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(worker % runtime.NumCPU())
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		log.Debug("core pinning unavailable, continuing unpinned", "worker", worker, "error", err)
	}
}
