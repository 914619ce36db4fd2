//go:build !linux

package sysres

import "runtime"

// readMemory falls back to the Go runtime's view of memory obtained from
// the OS. Physical memory is unknown, so configured totals apply.
func readMemory() (memoryInfo, error) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return memoryInfo{rssMB: float64(ms.Sys) / bytesPerMB}, nil
}
