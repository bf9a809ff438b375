//go:build linux

package capability

import "golang.org/x/sys/unix"

// hostMemoryGB returns total RAM in GiB, or 0 when unknown.
func hostMemoryGB() float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	return float64(uint64(info.Totalram)*uint64(info.Unit)) / (1 << 30)
}
