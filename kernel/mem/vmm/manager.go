package vmm

import (
	"unsafe"

	"boot64/kernel"
	"boot64/kernel/cpu"
	"boot64/kernel/mem"
)

var (
	// ErrOutOfMemory surfaces a FrameAllocator failure during mapping or
	// teardown.
	ErrOutOfMemory = &kernel.Error{Module: "vmm", Message: "frame allocator exhausted while building page tables"}

	// ErrMemoryTooLarge is returned by BuildIdentityMappedTables when the
	// reported maximum physical address exceeds MaxMemSize.
	ErrMemoryTooLarge = &kernel.Error{Module: "vmm", Message: "physical memory exceeds 512 GiB"}
)

const (
	// OneGiB is the size, in bytes, of one gigabyte; used to compute the
	// direct-map offset Δ.
	OneGiB = 1024 * 1024 * 1024

	// MaxMemSize is the largest physical memory size the page-table
	// construction step accepts.
	MaxMemSize = 512 * OneGiB
)

// FrameAllocator is the capability the page-table manager needs from a
// physical frame allocator: request a frame, or return one. Frames are not
// expected to arrive zeroed; the manager clears every table frame itself.
// kernel/mem/pmm.Allocator satisfies this interface.
type FrameAllocator interface {
	RequestPage() (mem.PhysicalAddress, *kernel.Error)
	FreePage(mem.PhysicalAddress) *kernel.Error
}

// Manager owns the physical address of a level-4 page table and the
// virtual offset at which physical memory is currently mapped (the
// direct-map offset Δ). While active, every physical frame of every
// intermediate page table must be reachable via Δ+frame.
type Manager struct {
	p4     mem.PhysicalAddress
	offset uint64
}

// NewFromAllocator requests a fresh frame from allocator, zeroes it, and
// returns a Manager rooted at it with direct-map offset offset.
func NewFromAllocator(allocator FrameAllocator, offset uint64) (*Manager, *kernel.Error) {
	p4Addr, err := allocator.RequestPage()
	if err != nil {
		return nil, err
	}

	m := &Manager{p4: p4Addr, offset: offset}
	m.tableAt(p4Addr).MakeUnused()
	return m, nil
}

// NewFromActiveRoot wraps the currently active root page table (read from
// CR3) for reading and teardown, with direct-map offset offset.
func NewFromActiveRoot(offset uint64) *Manager {
	return &Manager{p4: mem.NewPhysicalAddress(uint64(cpu.ActivePDT())), offset: offset}
}

// RootAddress returns the physical address of the level-4 table.
func (m *Manager) RootAddress() mem.PhysicalAddress { return m.p4 }

// Offset returns the manager's current direct-map offset.
func (m *Manager) Offset() uint64 { return m.offset }

// SetOffset updates Δ. The caller must ensure the currently active page
// table already maps every intermediate table frame at the new offset
// before calling this; otherwise subsequent lookups dereference unmapped
// memory.
func (m *Manager) SetOffset(offset uint64) { m.offset = offset }

// translate maps a physical address to the virtual address it is currently
// reachable at, via the direct-map offset.
func (m *Manager) translate(phys mem.PhysicalAddress) mem.VirtualAddress {
	return phys.VirtualAddressAtOffset(m.offset)
}

func (m *Manager) tableAt(phys mem.PhysicalAddress) *PageTable {
	return (*PageTable)(unsafe.Pointer(uintptr(m.translate(phys).Uint64())))
}

// Activate commits this table as the active root by writing its physical
// address to CR3, which simultaneously flushes the TLB. The caller must
// ensure the current instruction pointer, stack, and the manager's own
// intermediate tables remain reachable after activation.
func (m *Manager) Activate() {
	cpu.SwitchPDT(uintptr(m.p4.Uint64()))
}

// Map installs a single present+read-write mapping from virt to phys,
// allocating and zeroing any missing intermediate tables along the way.
// Large pages are never emitted.
func (m *Manager) Map(virt mem.VirtualAddress, phys mem.PhysicalAddress, allocator FrameAllocator) *kernel.Error {
	p4 := m.tableAt(m.p4)
	p3Addr, err := m.childTable(p4, virt.P4Index(), allocator)
	if err != nil {
		return err
	}

	p3 := m.tableAt(p3Addr)
	p2Addr, err := m.childTable(p3, virt.P3Index(), allocator)
	if err != nil {
		return err
	}

	p2 := m.tableAt(p2Addr)
	p1Addr, err := m.childTable(p2, virt.P2Index(), allocator)
	if err != nil {
		return err
	}

	p1 := m.tableAt(p1Addr)
	entry := &p1.Entries[virt.P1Index()]
	entry.SetFrame(phys)
	entry.SetFlags(FlagPresent|FlagReadWrite, true)
	return nil
}

// childTable returns the physical address of the child table referenced by
// parent's entry at index, allocating and zeroing a new one if the entry
// is not yet present.
func (m *Manager) childTable(parent *PageTable, index int, allocator FrameAllocator) (mem.PhysicalAddress, *kernel.Error) {
	entry := &parent.Entries[index]
	if entry.Present() {
		return entry.Frame(), nil
	}

	childAddr, err := allocator.RequestPage()
	if err != nil {
		return 0, err
	}
	m.tableAt(childAddr).MakeUnused()

	entry.MakeUnused()
	entry.SetFrame(childAddr)
	entry.SetFlags(FlagPresent|FlagReadWrite, true)
	return childAddr, nil
}

// MapRange installs numPages consecutive single-page mappings starting at
// virt/phys. Atomicity is only guaranteed at the single-page level: on
// failure at page k, the first k pages remain mapped.
func (m *Manager) MapRange(virt mem.VirtualAddress, phys mem.PhysicalAddress, numPages uint64, allocator FrameAllocator) *kernel.Error {
	for page := uint64(0); page < numPages; page++ {
		if err := m.Map(virt.IncrementPages(page), phys.IncrementPages(page), allocator); err != nil {
			return err
		}
	}
	return nil
}

// Translate walks the four levels and returns the physical frame virt is
// mapped to, or false if any intermediate entry is absent. Large-page
// entries are not traversed further (they terminate the walk at whatever
// level holds them, which the bootloader never emits).
func (m *Manager) Translate(virt mem.VirtualAddress) (mem.PhysicalAddress, bool) {
	entry, ok := m.leafEntry(virt)
	if !ok {
		return 0, false
	}
	return entry.Frame(), true
}

func (m *Manager) leafEntry(virt mem.VirtualAddress) (*PageTableEntry, bool) {
	p4 := m.tableAt(m.p4)
	p4e := &p4.Entries[virt.P4Index()]
	if !p4e.Present() {
		return nil, false
	}

	p3 := m.tableAt(p4e.Frame())
	p3e := &p3.Entries[virt.P3Index()]
	if !p3e.Present() {
		return nil, false
	}
	if p3e.PageSize() {
		return p3e, true
	}

	p2 := m.tableAt(p3e.Frame())
	p2e := &p2.Entries[virt.P2Index()]
	if !p2e.Present() {
		return nil, false
	}
	if p2e.PageSize() {
		return p2e, true
	}

	p1 := m.tableAt(p2e.Frame())
	p1e := &p1.Entries[virt.P1Index()]
	if !p1e.Present() {
		return nil, false
	}
	return p1e, true
}

// Unmap clears the mapping for virt, if any, and flushes its TLB entry.
func (m *Manager) Unmap(virt mem.VirtualAddress) {
	entry, ok := m.leafEntry(virt)
	if !ok {
		return
	}
	entry.MakeUnused()
	cpu.FlushTLBEntry(uintptr(virt.Uint64()))
}

// ReleaseTables recursively frees every descendant table reachable from
// the root, then frees the root frame itself. Level-1 tables terminate the
// recursion: they hold page mappings, not child tables. This is how the
// bootloader releases the firmware's page table after cutting over to its
// own.
func (m *Manager) ReleaseTables(allocator FrameAllocator) *kernel.Error {
	p4 := m.tableAt(m.p4)
	for index := 0; index < EntriesPerTable; index++ {
		if err := m.unmapP4Entry(p4, index, allocator); err != nil {
			return err
		}
	}
	return allocator.FreePage(m.p4)
}

func (m *Manager) unmapP4Entry(p4 *PageTable, index int, allocator FrameAllocator) *kernel.Error {
	entry := &p4.Entries[index]
	if !entry.Present() {
		return nil
	}

	p3Addr := entry.Frame()
	if err := m.unmapP3(m.tableAt(p3Addr), allocator); err != nil {
		return err
	}
	entry.MakeUnused()
	return allocator.FreePage(p3Addr)
}

func (m *Manager) unmapP3(p3 *PageTable, allocator FrameAllocator) *kernel.Error {
	for index := 0; index < EntriesPerTable; index++ {
		entry := &p3.Entries[index]
		if !entry.Present() {
			continue
		}
		if entry.PageSize() {
			entry.MakeUnused()
			continue
		}

		p2Addr := entry.Frame()
		if err := m.unmapP2(m.tableAt(p2Addr), allocator); err != nil {
			return err
		}
		entry.MakeUnused()
		if err := allocator.FreePage(p2Addr); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) unmapP2(p2 *PageTable, allocator FrameAllocator) *kernel.Error {
	for index := 0; index < EntriesPerTable; index++ {
		entry := &p2.Entries[index]
		if !entry.Present() {
			continue
		}
		if entry.PageSize() {
			entry.MakeUnused()
			continue
		}

		p1Addr := entry.Frame()
		m.tableAt(p1Addr).MakeUnused()
		entry.MakeUnused()
		if err := allocator.FreePage(p1Addr); err != nil {
			return err
		}
	}
	return nil
}

// BuildIdentityMappedTables implements boot orchestration step 11: build a
// fresh Manager, identity-map [0, maxPhysical), then compute and apply the
// direct-map offset Δ = max(0, kernelBase - ceil(maxPhysical/1GiB)*1GiB),
// mapping [Δ, Δ+maxPhysical) to the same frames when Δ is non-zero.
func BuildIdentityMappedTables(allocator FrameAllocator, maxPhysical mem.PhysicalAddress, kernelBase mem.VirtualAddress) (*Manager, uint64, *kernel.Error) {
	if maxPhysical.Uint64() > MaxMemSize {
		return nil, 0, ErrMemoryTooLarge
	}

	m, err := NewFromAllocator(allocator, 0)
	if err != nil {
		return nil, 0, err
	}

	numPages := maxPhysical.Uint64() >> mem.PageShift
	if err := m.MapRange(mem.NewVirtualAddress(0), 0, numPages, allocator); err != nil {
		return nil, 0, err
	}

	numGiB := (maxPhysical.Uint64() + OneGiB - 1) / OneGiB
	var offset uint64
	if numGiB*OneGiB < kernelBase.Uint64() {
		offset = kernelBase.Uint64() - numGiB*OneGiB
		if err := m.MapRange(mem.NewVirtualAddress(offset), 0, numPages, allocator); err != nil {
			return nil, 0, err
		}
	}

	return m, offset, nil
}
