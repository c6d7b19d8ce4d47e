// Package pmm implements the physical page-frame allocator: a single
// bitmap-backed structure tracking free/used 4 KiB frames across a
// contiguous physical range, built from a firmware memory map and handed
// off, bitmap and all, from the bootloader to the kernel.
//
// This collapses the two-stage early/bitmap allocator design into the one
// allocator the boot-handoff protocol expects: a single bitmap, constructed
// once from the firmware memory map, that survives unmodified (frames and
// all) across exit_boot_services.
package pmm

import (
	"boot64/kernel"
	"boot64/kernel/mem"
	"boot64/kernel/mem/bitmap"
	syncx "boot64/kernel/sync"
)

var (
	// ErrOutOfMemory is returned by RequestPage when no free frame remains.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	// ErrAlreadyUsed is returned by LockPage/LockPages when the target
	// frame is already marked used.
	ErrAlreadyUsed = &kernel.Error{Module: "pmm", Message: "frame already used"}

	// ErrDoubleFree is returned by FreePage/FreePages when the target
	// frame is already marked free.
	ErrDoubleFree = &kernel.Error{Module: "pmm", Message: "frame double-freed"}
)

// Allocator tracks 4 KiB physical frames across a contiguous physical range
// [0, bitmap.Len()*PageSize) using one bit per frame. A single spinlock
// guards every public operation so the allocator remains correct if it is
// ever called from more than one core; the boot path in scope never
// contends against itself.
type Allocator struct {
	mu syncx.Spinlock

	bm       bitmap.Bitmap
	freeRAM  mem.Size
	usedRAM  mem.Size
	cursor   uint64 // first index that might be free; an optimization, not a correctness requirement
}

// New wraps an already-initialized bitmap (all bits already reflecting
// used/free frames) as an Allocator. freeRAM and usedRAM must agree with
// the bitmap's contents; they are tracked redundantly so totals can be
// reported without rescanning the bitmap.
func New(bm bitmap.Bitmap, freeRAM, usedRAM mem.Size) *Allocator {
	return &Allocator{bm: bm, freeRAM: freeRAM, usedRAM: usedRAM}
}

// Bitmap returns the allocator's backing bitmap. It is exposed so the boot
// orchestration can record it in BootInfo. Its frames get no separate
// mapping; they stay reachable through the identity and direct-map ranges.
func (a *Allocator) Bitmap() *bitmap.Bitmap { return &a.bm }

// FreeRAM returns the number of bytes currently free.
func (a *Allocator) FreeRAM() mem.Size {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freeRAM
}

// UsedRAM returns the number of bytes currently used.
func (a *Allocator) UsedRAM() mem.Size {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.usedRAM
}

func frameIndex(addr mem.PhysicalAddress) uint64 {
	return addr.Uint64() >> mem.PageShift
}

// RequestPage scans from the cursor for the first free frame, marks it
// used, and returns its address. RequestPage only moves the cursor
// forward and FreePage moves it back; it is an optimization, not required
// for correctness.
func (a *Allocator) RequestPage() (mem.PhysicalAddress, *kernel.Error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for index := a.cursor; index < a.bm.Len(); index++ {
		if !a.bm.Get(index) {
			a.cursor = index
			addr := mem.NewPhysicalAddress(index << mem.PageShift)
			a.lockPageLocked(addr)
			return addr, nil
		}
	}

	return 0, ErrOutOfMemory
}

// LockPage marks the frame at addr used.
func (a *Allocator) LockPage(addr mem.PhysicalAddress) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lockPageLocked(addr)
}

func (a *Allocator) lockPageLocked(addr mem.PhysicalAddress) *kernel.Error {
	index := frameIndex(addr)
	if a.bm.Get(index) {
		return ErrAlreadyUsed
	}

	a.bm.Set(index, true)
	a.freeRAM -= mem.PageSize
	a.usedRAM += mem.PageSize
	return nil
}

// LockPages locks a contiguous range of pageCount frames starting at addr.
// On failure it stops at the first error; frames already locked earlier in
// the range remain locked.
func (a *Allocator) LockPages(addr mem.PhysicalAddress, pageCount uint64) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := uint64(0); i < pageCount; i++ {
		if err := a.lockPageLocked(addr.IncrementPages(i)); err != nil {
			return err
		}
	}
	return nil
}

// FreePage marks the frame at addr free.
func (a *Allocator) FreePage(addr mem.PhysicalAddress) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.freePageLocked(addr)
}

func (a *Allocator) freePageLocked(addr mem.PhysicalAddress) *kernel.Error {
	index := frameIndex(addr)
	if !a.bm.Get(index) {
		return ErrDoubleFree
	}

	a.bm.Set(index, false)
	a.freeRAM += mem.PageSize
	a.usedRAM -= mem.PageSize
	if index < a.cursor {
		a.cursor = index
	}
	return nil
}

// FreePages frees a contiguous range of pageCount frames starting at addr.
// On failure it stops at the first error; subsequent frames in the range
// are left untouched, matching the bulk page-table unmap policy.
func (a *Allocator) FreePages(addr mem.PhysicalAddress, pageCount uint64) *kernel.Error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i := uint64(0); i < pageCount; i++ {
		if err := a.freePageLocked(addr.IncrementPages(i)); err != nil {
			return err
		}
	}
	return nil
}
