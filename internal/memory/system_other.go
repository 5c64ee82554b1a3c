//go:build !linux

package memory

// systemTotal is unknown off Linux; callers fall back to CPU-only sizing.
func systemTotal() uint64 {
	return 0
}
