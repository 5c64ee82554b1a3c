//go:build linux

package memory

import (
	"golang.org/x/sys/unix"

	"fileindex/internal/logging"
)

func systemTotal() uint64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		logging.Debug("sysinfo failed: %v", err)
		return 0
	}
	return uint64(info.Totalram) * uint64(info.Unit)
}
