package pmm

import (
	"boot64/kernel/mem"
	"boot64/kernel/mem/bitmap"
)

// bitmapFromBuffer wraps a bitmap over a physical address. Before the new
// page table is activated, UEFI firmware identity-maps all memory it knows
// about, so treating a physical address as a directly dereferenceable
// pointer is valid during digestion; this mirrors the Rust original, which
// does the same for the same reason.
func bitmapFromBuffer(addr mem.PhysicalAddress, numBits uint64) bitmap.Bitmap {
	return bitmap.New(uintptr(addr.Uint64()), numBits)
}

// RegionKind classifies a firmware memory-map descriptor as either usable
// after exit_boot_services or reserved. Concrete firmware adapters (see
// firmware/uefi) translate their own descriptor type codes into one of
// these two buckets before calling InitFromMemoryMap.
type RegionKind uint8

const (
	// RegionReserved covers descriptor types that must never be handed
	// to the allocator as free (Runtime, ACPI-NVS, MMIO, unusable, ...).
	RegionReserved RegionKind = iota

	// RegionConventional covers descriptor types that become free RAM
	// once boot services have exited (Conventional, LoaderCode,
	// LoaderData, BootServicesCode, BootServicesData,
	// ACPI-Reclaimable).
	RegionConventional
)

// Region is one digested firmware memory-map descriptor.
type Region struct {
	Kind     RegionKind
	PhysAddr mem.PhysicalAddress
	NumPages uint64
}

// RegionSource abstracts over a sequence of memory-map regions. It lets
// InitFromMemoryMap and LargestConventionalRegion walk a firmware-owned
// descriptor buffer directly, one entry at a time, instead of requiring
// every caller to first materialize a []Region — the one allocation this
// boot stage (just after ExitBootServices, before any allocator the
// digested result could itself come from) must not make.
type RegionSource interface {
	Len() int
	RegionAt(i int) Region
}

// RegionSlice adapts a plain []Region, already resident in memory, to
// RegionSource — the shape every test in this package builds its fixture
// data in.
type RegionSlice []Region

// Len implements RegionSource.
func (s RegionSlice) Len() int { return len(s) }

// RegionAt implements RegionSource.
func (s RegionSlice) RegionAt(i int) Region { return s[i] }

// DigestResult reports where the allocator placed its own bitmap and the
// maximum physical address observed across the memory map, both of which
// the boot orchestration needs for the page-table construction steps that
// follow.
type DigestResult struct {
	Allocator        *Allocator
	MaxPhysical       mem.PhysicalAddress
	MaxUsablePhysical mem.PhysicalAddress
	BitmapPhysAddr    mem.PhysicalAddress
	BitmapPageCount    uint64
}

// InitFromMemoryMap builds an Allocator from a digested firmware memory
// map. hostBitmapAddr must point to a region of at least
// bitmap.ByteSize(maxPhysical >> PageShift) bytes (one bit per frame below
// the highest address any region reaches), rounded up to whole pages, that the
// caller has already reserved (typically the single largest conventional
// region, per the construction algorithm below) and identity-addressable
// at hostBitmapAddr.
//
// Construction proceeds exactly as specified: initialize every bit as used,
// then free every page belonging to a conventional region, then re-lock the
// pages that hold the bitmap itself (they come from the region that was
// chosen to host it, so they were just marked free in the previous step).
// A DoubleFree while freeing conventional regions indicates two descriptors
// overlap; it is tolerated, not propagated, since firmware memory maps are
// not guaranteed disjoint.
func InitFromMemoryMap(regions RegionSource, hostBitmapAddr mem.PhysicalAddress, hostBitmapPages uint64) *DigestResult {
	var maxPhysical, maxUsable mem.PhysicalAddress
	var totalPages uint64

	for i := 0; i < regions.Len(); i++ {
		r := regions.RegionAt(i)
		end := mem.PhysicalAddress(r.PhysAddr.Uint64() + r.NumPages*uint64(mem.PageSize))
		if end > maxPhysical {
			maxPhysical = end
		}
		if r.Kind == RegionConventional {
			if end > maxUsable {
				maxUsable = end
			}
			totalPages += r.NumPages
		}
	}

	numBits := maxPhysical.Uint64() >> mem.PageShift
	bm := bitmapFromBuffer(hostBitmapAddr, numBits)
	bm.Fill(true)

	alloc := New(bm, 0, mem.Size(numBits)*mem.PageSize)

	for i := 0; i < regions.Len(); i++ {
		r := regions.RegionAt(i)
		if r.Kind != RegionConventional {
			continue
		}
		if err := alloc.FreePages(r.PhysAddr, r.NumPages); err != nil {
			// Overlapping descriptors double-free a handful of
			// frames; the spec tolerates this during digestion.
			continue
		}
	}

	// The bitmap's own frames were just freed along with the region that
	// hosts them; re-lock them so the allocator never hands its own
	// backing store out as free memory.
	_ = alloc.LockPages(hostBitmapAddr, hostBitmapPages)

	return &DigestResult{
		Allocator:         alloc,
		MaxPhysical:       maxPhysical,
		MaxUsablePhysical: maxUsable,
		BitmapPhysAddr:    hostBitmapAddr,
		BitmapPageCount:   hostBitmapPages,
	}
}

// LargestConventionalRegion returns the conventional region with the most
// pages, used to pick a host for the allocator's own bitmap.
func LargestConventionalRegion(regions RegionSource) (Region, bool) {
	var best Region
	found := false
	for i := 0; i < regions.Len(); i++ {
		r := regions.RegionAt(i)
		if r.Kind != RegionConventional {
			continue
		}
		if !found || r.NumPages > best.NumPages {
			best = r
			found = true
		}
	}
	return best, found
}
