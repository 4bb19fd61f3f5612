package netkit

import "github.com/thanhtphung/sysnetkit/bitvec"

// InvalidHandle is returned by HandleAllocator.Allocate when no slot is
// free.
const InvalidHandle = bitvec.InvalidBit

// HandleAllocator hands out 1-based handles backed by a bit vector,
// searching round-robin from the slot after the last one allocated so
// reused handles spread out instead of clustering at the low end.
type HandleAllocator struct {
	used *bitvec.BitVec
	seed uint32
}

// NewHandleAllocator creates an allocator with room for maxHandles
// concurrently live handles.
func NewHandleAllocator(maxHandles uint32) *HandleAllocator {
	return &HandleAllocator{used: bitvec.New(maxHandles, false)}
}

// Allocate reserves and returns a free handle (1-based), or
// InvalidHandle if none remain.
func (a *HandleAllocator) Allocate() uint32 {
	n := a.used.MaxBits()
	if n == 0 {
		return InvalidHandle
	}
	for tries := uint32(0); tries < n; tries++ {
		slot := (a.seed + tries) % n
		if a.used.IsClear(slot) {
			a.used.Set(slot)
			a.seed = (slot + 1) % n
			return slot + 1
		}
	}
	return InvalidHandle
}

// Release returns handle to the free pool. Releasing an unallocated or
// out-of-range handle is a silent no-op.
func (a *HandleAllocator) Release(handle uint32) {
	if handle == 0 || handle > a.used.MaxBits() {
		return
	}
	a.used.Clear(handle - 1)
}

// IsAllocated reports whether handle is currently in use.
func (a *HandleAllocator) IsAllocated(handle uint32) bool {
	if handle == 0 || handle > a.used.MaxBits() {
		return false
	}
	return a.used.IsSet(handle - 1)
}

// NumAllocated returns how many handles are currently in use.
func (a *HandleAllocator) NumAllocated() uint32 { return a.used.CountSetBits() }

// Capacity returns the maximum number of concurrently live handles.
func (a *HandleAllocator) Capacity() uint32 { return a.used.MaxBits() }
