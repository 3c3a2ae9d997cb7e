//go:build !linux

package sandbox

// limitAddressSpace is a no-op off Linux; the worker relies on the soft
// limit set through debug.SetMemoryLimit and on the parent's timeout.
func limitAddressSpace(limit int64) error {
	return nil
}
