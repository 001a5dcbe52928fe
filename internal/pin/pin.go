// Package pin implements the platform-specific half of spec.md §3/§5's
// pinned-memory requirement: decode-pool output buffers are requested as
// pinned (page-locked) memory whenever the device is not host CPU memory,
// to speed host-to-device transfer. It also offers optional OS-thread
// pinning for decode workers.
//
// Grounded on the teacher's per-platform dispatch convention —
// affinity/affinity_{linux,windows}.go and
// internal/concurrency/pin_{linux,windows}.go — and on the
// VirtualAllocExNuma/MEM_LARGE_PAGES approach in pool/bufferpool_windows.go
// and the mmap/MAP_HUGETLB approach in pool/bufferpool_linux.go, adapted
// here to lock already-allocated Go-heap memory in place (via mlock /
// VirtualLock) rather than allocate from hugepages — the loader's buffers
// are a fixed two-slot ring, not a general slab allocator, so the simpler
// lock-in-place primitive is the right fit.
package pin

// LockBuffer attempts to pin b's pages in physical memory. Pinning is a
// best-effort latency optimization, never a correctness requirement: on
// platforms without a locking syscall, or when the call fails (e.g. the
// process lacks the privilege), the error is returned for the caller to log
// and ignore.
func LockBuffer(b []byte) error { return lockBuffer(b) }

// UnlockBuffer releases a page lock taken by LockBuffer.
func UnlockBuffer(b []byte) error { return unlockBuffer(b) }

// PinCurrentThread pins the calling goroutine's OS thread to cpuID. Callers
// must call runtime.LockOSThread() first so the pinning outlives any Go
// scheduler migration. A negative cpuID is a no-op.
func PinCurrentThread(cpuID int) error { return pinCurrentThread(cpuID) }
