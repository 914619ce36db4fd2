//go:build linux

package sysres

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// readMemory reads resident set size from /proc/self/statm and physical
// memory from /proc/meminfo.
func readMemory() (memoryInfo, error) {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return memoryInfo{}, fmt.Errorf("read statm: %w", err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return memoryInfo{}, fmt.Errorf("unexpected statm format %q", string(data))
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return memoryInfo{}, fmt.Errorf("parse statm rss: %w", err)
	}

	return memoryInfo{
		rssMB:   float64(pages) * float64(os.Getpagesize()) / bytesPerMB,
		totalMB: memTotalMB(),
	}, nil
}

// memTotalMB returns MemTotal, or 0 when it cannot be read.
func memTotalMB() float64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) >= 2 && fields[0] == "MemTotal:" {
			kb, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				return 0
			}
			return kb / 1024
		}
	}
	return 0
}
