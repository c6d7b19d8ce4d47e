package vmm

import (
	"testing"
	"unsafe"

	"boot64/kernel"
	"boot64/kernel/mem"
)

// testAllocator is a FrameAllocator double backed by a plain Go slice of
// 4 KiB-aligned buffers, so page tables can be built and torn down without
// any real physical memory.
type testAllocator struct {
	frames   [][]byte
	used     map[uint64]bool
	requests int
}

func newTestAllocator(capacity int) *testAllocator {
	return &testAllocator{used: make(map[uint64]bool), frames: make([][]byte, 0, capacity)}
}

func (a *testAllocator) RequestPage() (mem.PhysicalAddress, *kernel.Error) {
	// Over-allocate and round up so the returned address is page-aligned;
	// freestanding code would never need to do this since frames come
	// from a real bitmap allocator, but a host-side test has no other way
	// to get 4 KiB-aligned backing storage.
	buf := make([]byte, uint64(mem.PageSize)*2)
	addr := (uintptr(unsafe.Pointer(&buf[0])) + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
	a.frames = append(a.frames, buf)
	a.requests++

	phys := mem.NewPhysicalAddress(uint64(addr))
	a.used[phys.Uint64()] = true
	return phys, nil
}

func (a *testAllocator) FreePage(addr mem.PhysicalAddress) *kernel.Error {
	if !a.used[addr.Uint64()] {
		return &kernel.Error{Module: "vmm-test", Message: "double free"}
	}
	delete(a.used, addr.Uint64())
	return nil
}

func (a *testAllocator) liveCount() int { return len(a.used) }

func TestManagerMapAndTranslate(t *testing.T) {
	alloc := newTestAllocator(8)
	m, err := NewFromAllocator(alloc, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	virt := mem.NewVirtualAddress(0xFFFF_8000_0000_0000)
	phys := mem.NewPhysicalAddress(0x10_0000)

	if err := m.Map(virt, phys, alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := m.Translate(virt)
	if !ok {
		t.Fatal("expected mapping to be present")
	}
	if got != phys {
		t.Errorf("expected 0x%x; got 0x%x", phys.Uint64(), got.Uint64())
	}
}

func TestManagerUnmapRemovesTranslation(t *testing.T) {
	alloc := newTestAllocator(8)
	m, err := NewFromAllocator(alloc, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	virt := mem.NewVirtualAddress(0xFFFF_8000_0000_1000)
	phys := mem.NewPhysicalAddress(0x20_0000)

	if err := m.Map(virt, phys, alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m.Unmap(virt)

	if _, ok := m.Translate(virt); ok {
		t.Error("expected translation to be absent after unmap")
	}
}

func TestManagerTranslateAbsentByDefault(t *testing.T) {
	alloc := newTestAllocator(4)
	m, err := NewFromAllocator(alloc, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := m.Translate(mem.NewVirtualAddress(0x1000)); ok {
		t.Error("expected translation to be absent before any mapping")
	}
}

func TestManagerMapRangeContiguous(t *testing.T) {
	alloc := newTestAllocator(16)
	m, err := NewFromAllocator(alloc, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	virt := mem.NewVirtualAddress(0x0040_0000_0000)
	phys := mem.NewPhysicalAddress(0x30_0000)

	if err := m.MapRange(virt, phys, 4, alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := uint64(0); i < 4; i++ {
		got, ok := m.Translate(virt.IncrementPages(i))
		if !ok {
			t.Fatalf("page %d: expected mapping to be present", i)
		}
		if want := phys.IncrementPages(i); got != want {
			t.Errorf("page %d: expected 0x%x; got 0x%x", i, want.Uint64(), got.Uint64())
		}
	}
}

// TestManagerReleaseTablesFreesIntermediateFrames mirrors the invariant that
// after teardown, every frame allocated for intermediate tables (and the
// root itself) has been returned to the allocator; only frames the caller
// separately owns (like mapped leaf frames, which the allocator never saw
// requested for this test) remain.
func TestManagerReleaseTablesFreesIntermediateFrames(t *testing.T) {
	alloc := newTestAllocator(8)
	m, err := NewFromAllocator(alloc, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.Map(mem.NewVirtualAddress(0xFFFF_8000_0000_0000), mem.NewPhysicalAddress(0x10_0000), alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Map(mem.NewVirtualAddress(0x0000_1000_0000_0000), mem.NewPhysicalAddress(0x20_0000), alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if alloc.liveCount() == 0 {
		t.Fatal("expected intermediate tables to have been allocated")
	}

	if err := m.ReleaseTables(alloc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := alloc.liveCount(); got != 0 {
		t.Errorf("expected every allocated frame to be freed; %d still outstanding", got)
	}
}

func TestBuildIdentityMappedTablesNoOffsetWhenKernelFitsBelowOneGiB(t *testing.T) {
	alloc := newTestAllocator(64)

	maxPhysical := mem.NewPhysicalAddress(4 * uint64(mem.PageSize))
	kernelBase := mem.NewVirtualAddress(0x10_0000)

	m, offset, err := BuildIdentityMappedTables(alloc, maxPhysical, kernelBase)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if offset != 0 {
		t.Errorf("expected zero offset when kernel base falls within the identity-mapped range; got 0x%x", offset)
	}

	got, ok := m.Translate(mem.NewVirtualAddress(0))
	if !ok || got != 0 {
		t.Errorf("expected frame 0 to be identity-mapped; got 0x%x, ok=%v", got.Uint64(), ok)
	}
}

func TestBuildIdentityMappedTablesRejectsOversizedMemory(t *testing.T) {
	alloc := newTestAllocator(1)

	_, _, err := BuildIdentityMappedTables(alloc, mem.NewPhysicalAddress(MaxMemSize+uint64(mem.PageSize)), mem.NewVirtualAddress(0))
	if err != ErrMemoryTooLarge {
		t.Fatalf("expected ErrMemoryTooLarge; got %v", err)
	}
}
