package uefi

import (
	"unsafe"

	"boot64/kernel/mem"
	"boot64/kernel/mem/pmm"
)

// MemoryType mirrors EFI_MEMORY_TYPE. Only the values the bootloader acts
// on by name are spelled out; everything else is still addressable as a
// raw uint32 for classification purposes.
type MemoryType uint32

const (
	MemoryReservedMemoryType MemoryType = iota
	MemoryLoaderCode
	MemoryLoaderData
	MemoryBootServicesCode
	MemoryBootServicesData
	MemoryRuntimeServicesCode
	MemoryRuntimeServicesData
	MemoryConventionalMemory
	MemoryUnusableMemory
	MemoryACPIReclaimMemory
	MemoryACPIMemoryNVS
	MemoryMemoryMappedIO
	MemoryMemoryMappedIOPortSpace
	MemoryPalCode
	MemoryPersistentMemory
)

// isUsable reports whether frames of this type are safe to hand to the
// frame allocator once boot services have been exited. Code and data the
// firmware owned only during boot, plus already-free conventional memory
// and ACPI-reclaimable memory, all qualify; everything else (MMIO, NVS,
// runtime-services regions the firmware keeps using, unusable memory)
// does not.
func (t MemoryType) isUsable() bool {
	switch t {
	case MemoryLoaderCode, MemoryLoaderData,
		MemoryBootServicesCode, MemoryBootServicesData,
		MemoryConventionalMemory, MemoryACPIReclaimMemory:
		return true
	default:
		return false
	}
}

// MemoryDescriptor mirrors EFI_MEMORY_DESCRIPTOR exactly. The firmware
// reports these back to back inside a buffer whose per-entry stride
// (DescriptorSize) may be larger than sizeof(MemoryDescriptor) if a future
// firmware revision appends fields, so callers must always stride by
// DescriptorSize rather than unsafe.Sizeof(MemoryDescriptor{}).
type MemoryDescriptor struct {
	Type          MemoryType
	_             uint32 // padding: PhysicalStart is 8-byte aligned
	PhysicalStart uintptr
	VirtualStart  uintptr
	NumberOfPages uint64
	Attribute     uint64
}

// numBytes returns the size in bytes covered by this descriptor.
func (d *MemoryDescriptor) numBytes() uint64 {
	const pageSize = 4096
	return d.NumberOfPages * pageSize
}

// MemoryMap is a view over a raw firmware memory map buffer: a flat byte
// slice, strided by descriptorSize, holding entryCount MemoryDescriptor
// entries. It never copies the buffer.
type MemoryMap struct {
	buf            []byte
	descriptorSize uintptr
	entryCount     int
	bufPages       uint64
}

// newMemoryMap wraps a raw GetMemoryMap buffer. mapSize and descriptorSize
// are the values GetMemoryMap reported alongside the buffer; bufPages is
// the page count GetMemoryMap allocated the buffer itself with, needed
// later to reclaim it.
func newMemoryMap(buf []byte, mapSize, descriptorSize uintptr, bufPages uint64) *MemoryMap {
	count := 0
	if descriptorSize != 0 {
		count = int(mapSize / descriptorSize)
	}
	return &MemoryMap{buf: buf, descriptorSize: descriptorSize, entryCount: count, bufPages: bufPages}
}

// BufferPages returns the physical address and page count of the buffer
// backing this memory map. Since that buffer was itself allocated with
// AllocatePages before ExitBootServices ran, the caller must reclaim it
// through the frame allocator once digestion is done with it — boot
// services are gone by then, so FreePages is no longer an option.
func (m *MemoryMap) BufferPages() (mem.PhysicalAddress, uint64) {
	return mem.NewPhysicalAddress(uint64(uintptr(unsafe.Pointer(&m.buf[0])))), m.bufPages
}

// Len returns the number of descriptors in the map.
func (m *MemoryMap) Len() int { return m.entryCount }

// At returns the i'th descriptor. It panics if i is out of range.
func (m *MemoryMap) At(i int) *MemoryDescriptor {
	if i < 0 || i >= m.entryCount {
		panic("uefi: memory map index out of range")
	}
	off := uintptr(i) * m.descriptorSize
	return (*MemoryDescriptor)(unsafe.Pointer(&m.buf[off]))
}

// MaxPhysicalAddress returns the highest address (exclusive) described by
// any entry in the map, usable or not; this bounds how much of the
// physical address space the page tables need to identity-map.
func (m *MemoryMap) MaxPhysicalAddress() uintptr {
	var max uintptr
	for i := 0; i < m.entryCount; i++ {
		d := m.At(i)
		end := d.PhysicalStart + uintptr(d.numBytes())
		if end > max {
			max = end
		}
	}
	return max
}

// MaxUsablePhysicalAddress is like MaxPhysicalAddress but only considers
// entries the frame allocator will ever hand out.
func (m *MemoryMap) MaxUsablePhysicalAddress() uintptr {
	var max uintptr
	for i := 0; i < m.entryCount; i++ {
		d := m.At(i)
		if !d.Type.isUsable() {
			continue
		}
		end := d.PhysicalStart + uintptr(d.numBytes())
		if end > max {
			max = end
		}
	}
	return max
}

// RegionAt implements pmm.RegionSource directly over the firmware's raw
// descriptor buffer: no []pmm.Region is ever materialized, since this runs
// right after ExitBootServices, before the allocator the conversion itself
// is building exists to back a Go heap allocation with.
func (m *MemoryMap) RegionAt(i int) pmm.Region {
	d := m.At(i)
	kind := pmm.RegionReserved
	if d.Type.isUsable() {
		kind = pmm.RegionConventional
	}
	return pmm.Region{
		Kind:     kind,
		PhysAddr: mem.NewPhysicalAddress(uint64(d.PhysicalStart)),
		NumPages: d.NumberOfPages,
	}
}
