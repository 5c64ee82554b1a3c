package workers

import (
	"os"
	"runtime"
	"strconv"

	"fileindex/internal/logging"
	"fileindex/internal/memory"
)

// MaxIndexWorkers caps the traversal worker count. Every worker lists every
// directory, so past this point extra workers only add redundant readdirs.
const MaxIndexWorkers = 32

const gib = 1 << 30

// Count returns a worker count for a given task type.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier is 1.0 for CPU-bound work and higher for tasks that mostly
// wait on I/O. The limit caps the result. Use 0 for no limit.
func Count(multiplier float64, limit int) int {
	workers := int(float64(runtime.GOMAXPROCS(0)) * multiplier)

	if workers < 1 {
		workers = 1
	}
	if limit > 0 && workers > limit {
		workers = limit
	}

	return workers
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU). It sizes the
// per-worker stat concurrency when none is configured.
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForIndex returns the number of traversal workers for a full build.
//
// An explicit count wins, then the INDEX_WORKERS environment variable.
// Otherwise the CPU count is scaled down on memory-constrained hosts.
// The result is always between 1 and MaxIndexWorkers.
func ForIndex(explicit int) int {
	if explicit > 0 {
		return clamp(explicit)
	}

	if override := os.Getenv("INDEX_WORKERS"); override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return clamp(count)
		}
		logging.Warn("Ignoring invalid INDEX_WORKERS %q", override)
	}

	return scaleForMemory(runtime.GOMAXPROCS(0), memory.Available())
}

// scaleForMemory derives a worker count from cores and available bytes.
// Unknown memory (0) is treated as plentiful.
func scaleForMemory(cores int, available uint64) int {
	workers := cores
	switch {
	case available == 0:
	case available < 2*gib:
		workers = 1
	case available < 4*gib:
		workers = cores / 4
	case available < 8*gib:
		workers = cores / 2
	}
	return clamp(workers)
}

func clamp(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxIndexWorkers {
		return MaxIndexWorkers
	}
	return n
}
