package memory

import (
	"math"
	"runtime/debug"
)

// Available reports how much memory the process may use, in bytes.
// It prefers the container limit (MEMORY_LIMIT), then an explicit GOMEMLIMIT,
// then total physical memory. Zero means unknown.
func Available() uint64 {
	if limit, ok := containerLimit(); ok {
		return uint64(limit)
	}
	if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
		return uint64(limit)
	}
	return systemTotal()
}
