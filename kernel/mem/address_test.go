package mem

import "testing"

func TestNewPhysicalAddress(t *testing.T) {
	specs := []struct {
		in   uint64
		want uint64
	}{
		{0x0, 0x0},
		{0x1000, 0x1000},
		{0x1001, 0x1000},
		{0xFFFF_FFFF_FFFF_FFFF, 0x000F_FFFF_FFFF_F000},
	}

	for _, spec := range specs {
		if got := NewPhysicalAddress(spec.in).Uint64(); got != spec.want {
			t.Errorf("NewPhysicalAddress(0x%x): expected 0x%x; got 0x%x", spec.in, spec.want, got)
		}
	}
}

func TestPhysicalAddressIncrementPages(t *testing.T) {
	addr := NewPhysicalAddress(0x1000)
	if got := addr.IncrementPages(2).Uint64(); got != 0x3000 {
		t.Errorf("expected 0x3000; got 0x%x", got)
	}
}

func TestVirtualAddressCanonicalization(t *testing.T) {
	specs := []struct {
		in   uint64
		want uint64
	}{
		// bit 47 clear: bits 48-63 must be cleared
		{0x0000_7FFF_FFFF_FFFF, 0x0000_7FFF_FFFF_FFFF},
		// bit 47 set: bits 48-63 must be sign-extended to 1
		{0x0000_8000_0000_0000, 0xFFFF_8000_0000_0000},
		{0xFFFF_FFFF_FFFF_FFFF, 0xFFFF_FFFF_FFFF_FFFF},
	}

	for _, spec := range specs {
		if got := NewVirtualAddress(spec.in).Uint64(); got != spec.want {
			t.Errorf("NewVirtualAddress(0x%x): expected 0x%x; got 0x%x", spec.in, spec.want, got)
		}
	}
}

func TestVirtualAddressIndexRoundTrip(t *testing.T) {
	specs := []struct{ p4, p3, p2, p1, offset uint64 }{
		{0, 0, 0, 0, 0},
		{511, 511, 511, 511, 4095},
		{1, 2, 3, 4, 0x123},
		{256, 0, 511, 0, 0xFFF},
	}

	for _, spec := range specs {
		addr := VirtualAddressFromIndexes(spec.p4, spec.p3, spec.p2, spec.p1, spec.offset)

		if got := uint64(addr.P4Index()); got != spec.p4 {
			t.Errorf("p4 index: expected %d; got %d", spec.p4, got)
		}
		if got := uint64(addr.P3Index()); got != spec.p3 {
			t.Errorf("p3 index: expected %d; got %d", spec.p3, got)
		}
		if got := uint64(addr.P2Index()); got != spec.p2 {
			t.Errorf("p2 index: expected %d; got %d", spec.p2, got)
		}
		if got := uint64(addr.P1Index()); got != spec.p1 {
			t.Errorf("p1 index: expected %d; got %d", spec.p1, got)
		}
		if got := addr.PageOffset(); got != spec.offset {
			t.Errorf("page offset: expected 0x%x; got 0x%x", spec.offset, got)
		}
	}
}

func TestVirtualAddressIndex(t *testing.T) {
	addr := VirtualAddressFromIndexes(1, 2, 3, 4, 0)
	if got := addr.Index(4); got != 1 {
		t.Errorf("level 4: expected 1; got %d", got)
	}
	if got := addr.Index(1); got != 4 {
		t.Errorf("level 1: expected 4; got %d", got)
	}
}

func TestVirtualAddressIndexPanicsOnBadLevel(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for an invalid page table level")
		}
	}()

	VirtualAddress(0).Index(0)
}

func TestVirtualAddressAligned(t *testing.T) {
	if !NewVirtualAddress(0x1000).Aligned() {
		t.Error("expected 0x1000 to be page-aligned")
	}
	if NewVirtualAddress(0x1001).Aligned() {
		t.Error("expected 0x1001 to not be page-aligned")
	}
}
