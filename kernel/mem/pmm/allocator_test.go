package pmm

import (
	"testing"
	"unsafe"

	"boot64/kernel/mem"
	"boot64/kernel/mem/bitmap"
)

func newTestAllocator(t *testing.T, numPages uint64) (*Allocator, []byte) {
	t.Helper()
	buf := make([]byte, bitmap.ByteSize(numPages))
	bm := bitmap.New(uintptr(unsafe.Pointer(&buf[0])), numPages)
	return New(bm, mem.Size(numPages)*mem.PageSize, 0), buf
}

func TestAllocatorRequestPageMarksUsed(t *testing.T) {
	alloc, _ := newTestAllocator(t, 4)

	addr, err := alloc.RequestPage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != 0 {
		t.Errorf("expected first request to return frame 0; got 0x%x", addr.Uint64())
	}

	if alloc.UsedRAM() != mem.PageSize {
		t.Errorf("expected used RAM to be one page; got %d", alloc.UsedRAM())
	}
	if alloc.FreeRAM() != 3*mem.PageSize {
		t.Errorf("expected free RAM to be three pages; got %d", alloc.FreeRAM())
	}
}

func TestAllocatorRequestPageAdvancesCursor(t *testing.T) {
	alloc, _ := newTestAllocator(t, 4)

	for i := 0; i < 4; i++ {
		if _, err := alloc.RequestPage(); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}

	if _, err := alloc.RequestPage(); err != ErrOutOfMemory {
		t.Fatalf("expected ErrOutOfMemory once exhausted; got %v", err)
	}
}

func TestAllocatorLockPageAlreadyUsed(t *testing.T) {
	alloc, _ := newTestAllocator(t, 4)

	addr := mem.NewPhysicalAddress(0)
	if err := alloc.LockPage(addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := alloc.LockPage(addr); err != ErrAlreadyUsed {
		t.Fatalf("expected ErrAlreadyUsed; got %v", err)
	}
}

func TestAllocatorFreePageDoubleFree(t *testing.T) {
	alloc, _ := newTestAllocator(t, 4)

	addr := mem.NewPhysicalAddress(uint64(mem.PageSize))
	if err := alloc.LockPage(addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := alloc.FreePage(addr); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := alloc.FreePage(addr); err != ErrDoubleFree {
		t.Fatalf("expected ErrDoubleFree; got %v", err)
	}
}

func TestAllocatorFreePageRewindsCursor(t *testing.T) {
	alloc, _ := newTestAllocator(t, 4)

	for i := 0; i < 3; i++ {
		if _, err := alloc.RequestPage(); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	first := mem.NewPhysicalAddress(0)
	if err := alloc.FreePage(first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	addr, err := alloc.RequestPage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr != first {
		t.Errorf("expected freed frame 0 to be re-allocated first; got 0x%x", addr.Uint64())
	}
}

func TestAllocatorLockPagesStopsAtFirstError(t *testing.T) {
	alloc, _ := newTestAllocator(t, 4)

	base := mem.NewPhysicalAddress(0)
	if err := alloc.LockPage(base.IncrementPages(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := alloc.LockPages(base, 4); err != ErrAlreadyUsed {
		t.Fatalf("expected ErrAlreadyUsed; got %v", err)
	}

	// Frame 0 was locked before the failure at frame 1 and must remain
	// locked; frames 2 and 3 were never reached.
	if err := alloc.LockPage(base); err != ErrAlreadyUsed {
		t.Errorf("expected frame 0 to already be locked; got %v", err)
	}
	if err := alloc.LockPage(base.IncrementPages(2)); err != nil {
		t.Errorf("expected frame 2 to still be free: %v", err)
	}
}

// TestAllocatorDigestion mirrors scenario 4: a single Conventional region
// followed by a BootServicesData region; after digestion, RequestPage
// returns an address inside the conventional range and used RAM increases
// by exactly one page.
func TestAllocatorDigestion(t *testing.T) {
	const conventionalPages = 256
	const otherPages = 16
	totalPages := uint64(conventionalPages + otherPages)

	buf := make([]byte, bitmap.ByteSize(totalPages)+uint64(mem.PageSize))
	hostAddr := mem.NewPhysicalAddress(uint64((uintptr(unsafe.Pointer(&buf[0])) + uintptr(mem.PageSize) - 1) &^ (uintptr(mem.PageSize) - 1)))

	regions := []Region{
		{Kind: RegionConventional, PhysAddr: 0, NumPages: conventionalPages},
		{Kind: RegionReserved, PhysAddr: mem.NewPhysicalAddress(conventionalPages * uint64(mem.PageSize)), NumPages: otherPages},
	}

	result := InitFromMemoryMap(RegionSlice(regions), hostAddr, 1)

	usedBefore := result.Allocator.UsedRAM()

	addr, err := result.Allocator.RequestPage()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if addr.Uint64() >= conventionalPages*uint64(mem.PageSize) {
		t.Errorf("expected requested page to fall within the conventional region; got 0x%x", addr.Uint64())
	}

	if got := result.Allocator.UsedRAM() - usedBefore; got != mem.PageSize {
		t.Errorf("expected used RAM to increase by exactly one page; got %d", got)
	}
}

func TestLargestConventionalRegion(t *testing.T) {
	regions := []Region{
		{Kind: RegionConventional, PhysAddr: 0, NumPages: 4},
		{Kind: RegionReserved, PhysAddr: 0, NumPages: 1000},
		{Kind: RegionConventional, PhysAddr: 0, NumPages: 40},
	}

	best, ok := LargestConventionalRegion(RegionSlice(regions))
	if !ok {
		t.Fatal("expected a conventional region to be found")
	}
	if best.NumPages != 40 {
		t.Errorf("expected the 40-page region to be selected; got %d", best.NumPages)
	}
}
