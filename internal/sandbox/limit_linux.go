//go:build linux

package sandbox

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// headroom covers runtime threads and GC metadata created after the
// limit is applied.
const headroom = 64 << 20

// limitAddressSpace caps RLIMIT_AS at the current virtual size plus limit.
// An allocation past the cap fails inside the Go runtime, which then exits
// with "out of memory".
func limitAddressSpace(limit int64) error {
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return err
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return fmt.Errorf("unexpected statm %q", data)
	}
	pages, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse statm: %w", err)
	}

	ceiling := pages*uint64(os.Getpagesize()) + uint64(limit) + headroom
	return syscall.Setrlimit(syscall.RLIMIT_AS, &syscall.Rlimit{Cur: ceiling, Max: ceiling})
}
