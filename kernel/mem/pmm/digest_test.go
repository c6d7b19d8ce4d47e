package pmm

import (
	"testing"
	"unsafe"

	"boot64/kernel/mem"
	"boot64/kernel/mem/bitmap"
)

func newDigestBuf(t *testing.T, totalPages uint64) mem.PhysicalAddress {
	t.Helper()
	buf := make([]byte, bitmap.ByteSize(totalPages)+uint64(mem.PageSize))
	addr := (uintptr(unsafe.Pointer(&buf[0])) + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)
	return mem.NewPhysicalAddress(uint64(addr))
}

// TestInitFromMemoryMapMaxAddresses checks that a reserved region past the
// end of every conventional region raises MaxPhysical without raising
// MaxUsablePhysical, since only conventional memory counts as usable.
func TestInitFromMemoryMapMaxAddresses(t *testing.T) {
	const conventionalPages = 64
	const reservedPages = 64
	totalPages := uint64(conventionalPages + reservedPages)
	hostAddr := newDigestBuf(t, totalPages)

	regions := []Region{
		{Kind: RegionConventional, PhysAddr: 0, NumPages: conventionalPages},
		{Kind: RegionReserved, PhysAddr: mem.NewPhysicalAddress(conventionalPages * uint64(mem.PageSize)), NumPages: reservedPages},
	}

	result := InitFromMemoryMap(RegionSlice(regions), hostAddr, 1)

	wantMax := mem.PhysicalAddress(totalPages * uint64(mem.PageSize))
	if result.MaxPhysical != wantMax {
		t.Errorf("expected MaxPhysical 0x%x; got 0x%x", wantMax.Uint64(), result.MaxPhysical.Uint64())
	}

	wantUsable := mem.PhysicalAddress(conventionalPages * uint64(mem.PageSize))
	if result.MaxUsablePhysical != wantUsable {
		t.Errorf("expected MaxUsablePhysical 0x%x; got 0x%x", wantUsable.Uint64(), result.MaxUsablePhysical.Uint64())
	}
}

// TestInitFromMemoryMapRelocksBitmapPages verifies the bitmap's own
// backing pages are never handed out by RequestPage, even though they sit
// inside the conventional region that was just marked free.
func TestInitFromMemoryMapRelocksBitmapPages(t *testing.T) {
	const totalPages = 32
	const bitmapPages = 2
	hostAddr := newDigestBuf(t, totalPages)

	regions := []Region{
		{Kind: RegionConventional, PhysAddr: hostAddr, NumPages: totalPages},
	}

	result := InitFromMemoryMap(RegionSlice(regions), hostAddr, bitmapPages)

	for i := 0; i < int(totalPages); i++ {
		addr, err := result.Allocator.RequestPage()
		if err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
		if addr >= hostAddr && addr < hostAddr.IncrementPages(bitmapPages) {
			t.Errorf("request %d returned a bitmap-backing frame 0x%x", i, addr.Uint64())
		}
	}
}

// TestInitFromMemoryMapToleratesOverlap reproduces two conventional
// descriptors covering the same pages; FreePages' resulting DoubleFree
// must not propagate out of InitFromMemoryMap.
func TestInitFromMemoryMapToleratesOverlap(t *testing.T) {
	const totalPages = 16
	hostAddr := newDigestBuf(t, totalPages)

	regions := []Region{
		{Kind: RegionConventional, PhysAddr: 0, NumPages: totalPages},
		{Kind: RegionConventional, PhysAddr: 0, NumPages: totalPages},
	}

	result := InitFromMemoryMap(RegionSlice(regions), hostAddr, 1)

	addr, err := result.Allocator.RequestPage()
	if err != nil {
		t.Fatalf("unexpected error after overlapping regions: %v", err)
	}
	if addr.Uint64() >= totalPages*uint64(mem.PageSize) {
		t.Errorf("expected a page within the overlapping region; got 0x%x", addr.Uint64())
	}
}

// TestInitFromMemoryMapNoConventionalRegions covers an all-reserved map:
// the allocator comes up with nothing free to hand out.
func TestInitFromMemoryMapNoConventionalRegions(t *testing.T) {
	hostAddr := newDigestBuf(t, 8)

	regions := []Region{
		{Kind: RegionReserved, PhysAddr: 0, NumPages: 8},
	}

	result := InitFromMemoryMap(RegionSlice(regions), hostAddr, 1)

	if _, err := result.Allocator.RequestPage(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory with no conventional regions; got %v", err)
	}
}

func TestLargestConventionalRegionNoneFound(t *testing.T) {
	regions := []Region{
		{Kind: RegionReserved, PhysAddr: 0, NumPages: 100},
	}

	if _, ok := LargestConventionalRegion(RegionSlice(regions)); ok {
		t.Fatal("expected no conventional region to be found")
	}
}
