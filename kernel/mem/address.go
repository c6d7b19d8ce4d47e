package mem

const (
	physAddrMask = 0x000F_FFFF_FFFF_F000

	virtAddrMask      = 0x0000_FFFF_FFFF_FFFF
	virtAddrSignExt   = 0xFFFF_0000_0000_0000
	virtAddrHighBit   = 1 << 47
	pageOffsetMask    = 0xFFF
	pageTableIdxMask  = 0x1FF
	p1Shift           = 12
	p2Shift           = p1Shift + 9
	p3Shift           = p2Shift + 9
	p4Shift           = p3Shift + 9
)

// PhysicalAddress is a 64-bit value masked to the 52-bit physical address
// space and aligned down to the nearest 4 KiB page.
type PhysicalAddress uint64

// NewPhysicalAddress masks addr down to a valid physical address.
func NewPhysicalAddress(addr uint64) PhysicalAddress {
	return PhysicalAddress(addr & physAddrMask)
}

// Uint64 returns the raw address value.
func (a PhysicalAddress) Uint64() uint64 { return uint64(a) }

// IncrementPages returns the address advanced by numPages 4 KiB pages.
func (a PhysicalAddress) IncrementPages(numPages uint64) PhysicalAddress {
	return PhysicalAddress(uint64(a) + numPages*uint64(PageSize))
}

// VirtualAddressAtOffset adds offset to the physical address and
// canonicalizes the result as a VirtualAddress.
func (a PhysicalAddress) VirtualAddressAtOffset(offset uint64) VirtualAddress {
	return NewVirtualAddress(uint64(a) + offset)
}

// Less reports whether a sorts before b.
func (a PhysicalAddress) Less(b PhysicalAddress) bool { return a < b }

// VirtualAddress is a 64-bit canonical x86-64 virtual address: the low 48
// bits are preserved and bits 48-63 are sign-extended from bit 47.
type VirtualAddress uint64

// NewVirtualAddress canonicalizes addr per the x86-64 sign-extension rule.
func NewVirtualAddress(addr uint64) VirtualAddress {
	addr &= virtAddrMask
	if addr&virtAddrHighBit != 0 {
		addr |= virtAddrSignExt
	}
	return VirtualAddress(addr)
}

// VirtualAddressFromIndexes reconstructs a canonical virtual address from
// the four page-table level indexes and the page offset.
func VirtualAddressFromIndexes(p4, p3, p2, p1, offset uint64) VirtualAddress {
	addr := offset
	addr |= (p4 & pageTableIdxMask) << p4Shift
	addr |= (p3 & pageTableIdxMask) << p3Shift
	addr |= (p2 & pageTableIdxMask) << p2Shift
	addr |= (p1 & pageTableIdxMask) << p1Shift
	return NewVirtualAddress(addr)
}

// Uint64 returns the raw address value.
func (a VirtualAddress) Uint64() uint64 { return uint64(a) }

// IncrementPages returns the address advanced by numPages 4 KiB pages.
func (a VirtualAddress) IncrementPages(numPages uint64) VirtualAddress {
	return NewVirtualAddress(uint64(a) + numPages*uint64(PageSize))
}

// PageOffset returns the low 12 bits of the address.
func (a VirtualAddress) PageOffset() uint64 { return uint64(a) & pageOffsetMask }

// P1Index returns the level-1 (page table) index.
func (a VirtualAddress) P1Index() int { return int((uint64(a) >> p1Shift) & pageTableIdxMask) }

// P2Index returns the level-2 (page directory) index.
func (a VirtualAddress) P2Index() int { return int((uint64(a) >> p2Shift) & pageTableIdxMask) }

// P3Index returns the level-3 (PDPT) index.
func (a VirtualAddress) P3Index() int { return int((uint64(a) >> p3Shift) & pageTableIdxMask) }

// P4Index returns the level-4 (PML4) index.
func (a VirtualAddress) P4Index() int { return int((uint64(a) >> p4Shift) & pageTableIdxMask) }

// Index returns the index for page table level n (4 down to 1).
func (a VirtualAddress) Index(level int) int {
	switch level {
	case 4:
		return a.P4Index()
	case 3:
		return a.P3Index()
	case 2:
		return a.P2Index()
	case 1:
		return a.P1Index()
	default:
		panic("mem: invalid page table level")
	}
}

// Less reports whether a sorts before b.
func (a VirtualAddress) Less(b VirtualAddress) bool { return a < b }

// Aligned reports whether the address is 4 KiB page-aligned.
func (a VirtualAddress) Aligned() bool { return a.PageOffset() == 0 }
