//go:build !linux

package capability

// hostMemoryGB is unknown off Linux; Classify falls back to the default.
func hostMemoryGB() float64 { return 0 }
