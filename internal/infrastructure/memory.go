package infrastructure

import (
	"runtime"
)

// MemoryMonitor compares heap usage against a ceiling.
type MemoryMonitor struct {
	// CeilingBytes is the heap size treated as pressure. Zero disables checks.
	CeilingBytes uint64
	// Usage reports current heap bytes. Defaults to runtime heap alloc.
	Usage func() uint64
}

// NewMemoryMonitor creates a monitor with a ceiling in megabytes.
func NewMemoryMonitor(ceilingMB int64) *MemoryMonitor {
	var ceiling uint64
	if ceilingMB > 0 {
		ceiling = uint64(ceilingMB) << 20
	}
	return &MemoryMonitor{CeilingBytes: ceiling, Usage: HeapAlloc}
}

// HeapAlloc returns the bytes of allocated heap objects.
func HeapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}

// Check returns current usage and whether it exceeds the ceiling.
func (m *MemoryMonitor) Check() (uint64, bool) {
	if m == nil {
		return 0, false
	}
	usage := HeapAlloc
	if m.Usage != nil {
		usage = m.Usage
	}
	used := usage()
	return used, m.CeilingBytes > 0 && used > m.CeilingBytes
}

// Release asks the runtime to collect after caches were dropped.
func (m *MemoryMonitor) Release() {
	runtime.GC()
}
