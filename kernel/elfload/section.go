// Package elfload builds the list of loadable ELF segments for a kernel
// image and loads each one into a freshly allocated, page-aligned buffer.
//
// Segments are expanded to whole pages and merged when their page ranges
// overlap in virtual memory with a matching file-to-virtual offset, so the
// bootloader never maps the same virtual page twice. Ranges that only touch
// end-to-start are kept as separate sections.
package elfload

import (
	"reflect"
	"unsafe"

	"boot64/kernel"
	"boot64/kernel/elf"
	"boot64/kernel/mem"
)

// Section is one page-expanded, possibly-merged loadable segment: a run of
// whole pages in the kernel file that must be copied to a run of whole
// pages in memory at a given virtual address.
type Section struct {
	FileAddr    mem.PhysicalAddress
	VirtAddr    mem.VirtualAddress
	NumFilePages uint64
	NumMemPages  uint64
}

// FromProgramHeader expands a single PT_LOAD program header to whole
// pages: the file and virtual addresses are rounded down to the containing
// page, and the sizes are rounded up far enough to still cover the
// original byte range.
func FromProgramHeader(ph *elf.ProgramHeader64) Section {
	pageOffset := ph.Offset & uint64(mem.PageSize-1)

	numFilePages := mem.PagesForBytes(ph.FileSz + pageOffset)
	numMemPages := mem.PagesForBytes(ph.MemSz + pageOffset)

	return Section{
		FileAddr:     mem.NewPhysicalAddress(ph.Offset),
		VirtAddr:     mem.NewVirtualAddress(ph.VAddr &^ uint64(mem.PageSize-1)),
		NumFilePages: numFilePages,
		NumMemPages:  numMemPages,
	}
}

// FileEnd returns the first file address past this section.
func (s Section) FileEnd() mem.PhysicalAddress { return s.FileAddr.IncrementPages(s.NumFilePages) }

// MemEnd returns the first virtual address past this section.
func (s Section) MemEnd() mem.VirtualAddress { return s.VirtAddr.IncrementPages(s.NumMemPages) }

// HasVirtualOverlap reports whether the two sections' virtual address
// ranges intersect.
func (s Section) HasVirtualOverlap(other Section) bool {
	return (s.VirtAddr <= other.VirtAddr && s.MemEnd() > other.VirtAddr) ||
		(other.VirtAddr <= s.VirtAddr && other.MemEnd() > s.VirtAddr)
}

// HasSameFileOffset reports whether the two sections maintain the same
// constant distance between their file and virtual addresses, which is
// required before they can be safely combined into a single mapping.
func (s Section) HasSameFileOffset(other Section) bool {
	if s.FileAddr.Uint64() < s.VirtAddr.Uint64() {
		if other.FileAddr.Uint64() >= other.VirtAddr.Uint64() {
			return false
		}
		return s.VirtAddr.Uint64()-s.FileAddr.Uint64() == other.VirtAddr.Uint64()-other.FileAddr.Uint64()
	}
	if other.FileAddr.Uint64() < other.VirtAddr.Uint64() {
		return false
	}
	return s.FileAddr.Uint64()-s.VirtAddr.Uint64() == other.FileAddr.Uint64()-other.VirtAddr.Uint64()
}

// Combine merges other into s in place if the two overlap in virtual
// memory and share a file offset, and reports whether it did so. Sections
// that overlap but disagree on file offset are left untouched and
// conflict is reported true instead: the caller must treat that as a
// malformed kernel image rather than merge inconsistent data or keep both
// entries side by side.
func (s *Section) Combine(other Section) (merged bool, conflict bool) {
	if !s.HasVirtualOverlap(other) {
		return false, false
	}
	if !s.HasSameFileOffset(other) {
		return false, true
	}

	minFile := s.FileAddr
	if other.FileAddr < minFile {
		minFile = other.FileAddr
	}
	maxFileEnd := s.FileEnd()
	if other.FileEnd() > maxFileEnd {
		maxFileEnd = other.FileEnd()
	}
	minVirt := s.VirtAddr
	if other.VirtAddr < minVirt {
		minVirt = other.VirtAddr
	}
	maxVirtEnd := s.MemEnd()
	if other.MemEnd() > maxVirtEnd {
		maxVirtEnd = other.MemEnd()
	}

	s.FileAddr = minFile
	s.VirtAddr = minVirt
	s.NumFilePages = (maxFileEnd.Uint64() - minFile.Uint64()) / uint64(mem.PageSize)
	s.NumMemPages = (maxVirtEnd.Uint64() - minVirt.Uint64()) / uint64(mem.PageSize)
	return true, false
}

// SectionList is a fixed-capacity, insertion-sorted collection of
// Sections, backed by caller-provided page storage rather than a Go slice
// allocation, since the bootloader builds this before any heap exists.
// Sections are kept sorted by virtual address as they are added, matching
// what the boot orchestration needs to compute the lowest kernel virtual
// address afterward.
type SectionList struct {
	items []Section
	count int
}

// NewSectionList overlays a SectionList of the given item capacity onto
// addr, which must point to at least capacity*sizeof(Section) bytes of
// caller-owned storage.
func NewSectionList(addr uintptr, capacity int) SectionList {
	var items []Section
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&items))
	hdr.Data = addr
	hdr.Len = capacity
	hdr.Cap = capacity
	return SectionList{items: items}
}

// ByteSize returns the number of bytes of backing storage NewSectionList
// needs for the given capacity.
func ByteSize(capacity int) uint64 {
	return uint64(capacity) * uint64(unsafe.Sizeof(Section{}))
}

// Len returns the number of sections currently held.
func (l *SectionList) Len() int { return l.count }

// Capacity returns the maximum number of sections the backing storage can
// hold.
func (l *SectionList) Capacity() int { return len(l.items) }

// Get returns the section at index, which must be less than Len().
func (l *SectionList) Get(index int) Section { return l.items[index] }

// Add inserts section into the list, merging it into an existing entry
// when one overlaps and shares its file offset, otherwise inserting it in
// virtual-address order. The returned error is ErrMisalignedElf when
// section overlaps an existing entry at a different file offset, which
// means the kernel image itself is malformed and the caller must abort
// rather than let two disagreeing mappings sit side by side. Otherwise
// the bool reports whether the section was merged or inserted; it is
// false only when the list is already full and no existing entry could
// absorb the new section.
func (l *SectionList) Add(section Section) (bool, *kernel.Error) {
	for i := 0; i < l.count; i++ {
		existing := l.items[i]
		merged, conflict := existing.Combine(section)
		if merged {
			l.items[i] = existing
			return true, nil
		}
		if conflict {
			return false, ErrMisalignedElf
		}
	}

	if l.count == len(l.items) {
		return false, nil
	}

	insertAt := l.count
	for insertAt > 0 && l.items[insertAt-1].VirtAddr > section.VirtAddr {
		l.items[insertAt] = l.items[insertAt-1]
		insertAt--
	}
	l.items[insertAt] = section
	l.count++
	return true, nil
}
