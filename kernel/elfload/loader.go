package elfload

import (
	"reflect"
	"unsafe"

	"boot64/kernel"
	"boot64/kernel/elf"
	"boot64/kernel/mem"
)

var (
	// ErrReadFailed wraps any failure reading bytes out of the kernel
	// image file.
	ErrReadFailed = &kernel.Error{Module: "elfload", Message: "could not read kernel image"}

	// ErrSectionListFull is returned when a PT_LOAD program header
	// cannot be merged into or appended onto a SectionList, which only
	// happens if the list was undersized for the image's program
	// header count.
	ErrSectionListFull = &kernel.Error{Module: "elfload", Message: "section list has no room for program header"}

	// ErrAssetListFull mirrors ErrSectionListFull for the loaded-asset
	// list.
	ErrAssetListFull = &kernel.Error{Module: "elfload", Message: "asset list has no room for loaded section"}

	// ErrMisalignedElf is returned when two PT_LOAD program headers
	// overlap in virtual memory but disagree on their file-to-virtual
	// offset. Such an image cannot be mapped consistently: the two
	// segments claim the same pages should come from different places in
	// the file, which can only mean the kernel image is malformed.
	ErrMisalignedElf = &kernel.Error{Module: "elfload", Message: "overlapping PT_LOAD segments disagree on file offset"}
)

// KernelFile is the capability the loader needs from an open kernel image:
// positioned reads of raw bytes. firmware/uefi's file protocol wrapper
// satisfies this.
type KernelFile interface {
	ReadAt(offset uint64, buf []byte) *kernel.Error
}

// PageAllocator is the capability the loader needs to obtain backing
// storage for a loaded segment: firmware page allocation, not the kernel's
// own frame allocator (the kernel's allocator does not exist yet at this
// point in the boot sequence).
type PageAllocator interface {
	AllocatePages(numPages uint64) (mem.PhysicalAddress, *kernel.Error)
}

func readStruct(file KernelFile, offset uint64, dst unsafe.Pointer, size uintptr) *kernel.Error {
	var buf []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&buf))
	hdr.Data = uintptr(dst)
	hdr.Len = int(size)
	hdr.Cap = int(size)
	return file.ReadAt(offset, buf)
}

// ReadHeader reads and validates the ELF64 file header at the start of
// file. Validation happens in the order the specification requires: magic,
// class, endianness, type, machine, version.
func ReadHeader(file KernelFile) (*elf.Header64, *kernel.Error) {
	var header elf.Header64
	if err := readStruct(file, 0, unsafe.Pointer(&header), unsafe.Sizeof(header)); err != nil {
		return nil, err
	}
	if verr := header.Common.Validate(); verr != nil {
		return nil, &kernel.Error{Module: "elfload", Message: verr.Error()}
	}
	return &header, nil
}

// CollectSections reads every program header named by header and merges
// the PT_LOAD ones into sections, which must already have capacity for at
// least header.ProgramHeaderCount entries (the worst case where none of
// them merge).
func CollectSections(file KernelFile, header *elf.Header64, sections *SectionList) *kernel.Error {
	for i := uint16(0); i < header.ProgramHeaderCount; i++ {
		offset := header.ProgramHeaderOff + uint64(i)*uint64(header.ProgramHeaderEntSize)

		var ph elf.ProgramHeader64
		if err := readStruct(file, offset, unsafe.Pointer(&ph), unsafe.Sizeof(ph)); err != nil {
			return err
		}
		if !ph.IsLoad() {
			continue
		}

		accepted, err := sections.Add(FromProgramHeader(&ph))
		if err != nil {
			return err
		}
		if !accepted {
			return ErrSectionListFull
		}
	}
	return nil
}

// LoadSections allocates a fresh buffer for each merged section in
// sections, copies its bytes out of file, and records the result in
// assets, which must already have capacity for at least sections.Len()
// entries.
func LoadSections(file KernelFile, allocator PageAllocator, sections *SectionList, assets *AssetList) *kernel.Error {
	for i := 0; i < sections.Len(); i++ {
		section := sections.Get(i)

		buf, err := allocator.AllocatePages(section.NumMemPages)
		if err != nil {
			return err
		}

		mem.ZeroPages(uintptr(buf.Uint64()), section.NumMemPages)

		readSize := section.NumFilePages * uint64(mem.PageSize)
		dst := unsafe.Pointer(uintptr(buf.Uint64()))
		if err := readStruct(file, section.FileAddr.Uint64(), dst, uintptr(readSize)); err != nil {
			return err
		}

		asset := Asset{PhysAddr: buf, NumPages: section.NumMemPages, VirtAddr: section.VirtAddr}
		if !assets.Add(asset) {
			return ErrAssetListFull
		}
	}
	return nil
}
