// Command bootloader is the UEFI application that loads the kernel image,
// builds the kernel's own direct-map-offset page tables, and hands off to
// it via a BootInfo record. It never returns: the final step is parking
// in an idle loop with the kernel's page tables active, exactly as far as
// the system this is grounded on gets before the rest (the actual control
// transfer into the loaded kernel image) is out of scope here.
package main

import (
	"reflect"
	"unsafe"

	"boot64/firmware/uefi"
	"boot64/kernel"
	"boot64/kernel/bootcfg"
	"boot64/kernel/bootinfo"
	"boot64/kernel/elfload"
	"boot64/kernel/logger"
	"boot64/kernel/mem"
	"boot64/kernel/mem/bitmap"
	"boot64/kernel/mem/pmm"
	"boot64/kernel/mem/vmm"
)

// imageHandle and systemTablePtr are assigned by the entry trampoline
// before main runs: the firmware calls efi_main(ImageHandle,
// *SystemTable) under the Microsoft x64 calling convention, and bridging
// that into a call to a Go function is the mirror image of abi.go's
// efiCall trampoline (which bridges the same ABI in the other direction)
// — out of scope here exactly as cmd/kernel's own incoming calling
// convention is.
var (
	imageHandle    uefi.Handle
	systemTablePtr uintptr
)

// main exists only to give the entry trampoline a single, never-inlined
// Go symbol to call; every actual step lives in bootMain, following the
// teacher's split between a trivial main and the real entry point.
func main() {
	bootMain(imageHandle, systemTablePtr)
}

// errFirmware is reused across every firmware-call failure site: kernel
// errors must be preallocated globals since no heap exists yet when most
// of these calls run.
var errFirmware = &kernel.Error{Module: "bootloader"}

func wrapFirmwareErr(err error) *kernel.Error {
	return errFirmware.Restate(err.Error())
}

func bootMain(imageHandle uefi.Handle, systemTablePtr uintptr) {
	logger.InitSerial()
	logger.Print("boot64 bootloader\n")

	st := uefi.NewBootSystemTable(unsafe.Pointer(systemTablePtr))
	bs := st.BootServices

	info, infoAddr, infoPages := allocateBootInfo(bs)

	if err := initFramebuffer(bs, imageHandle, info); err != nil {
		logger.Log(logger.Warn, "graphics output unavailable: %s", err.Error())
	}

	assets, entryPoint, err := loadKernel(bs, imageHandle)
	if err != nil {
		kernel.Panic(err)
	}

	if err := loadFont(bs, imageHandle, info); err != nil {
		logger.Log(logger.Warn, "console font unavailable: %s", err.Error())
	}

	configTable := st.GetConfigurationTable()
	info.ACPIRSDP = mem.NewPhysicalAddress(uint64(configTable.FindACPIRSDP()))

	_, memMap, ebsErr := st.ExitBootServices(imageHandle)
	if ebsErr != nil {
		kernel.Panic(wrapFirmwareErr(ebsErr))
	}
	logger.Print("exited boot services\n")

	alloc, digest := digestMemoryMap(memMap)
	reservedMemory := uint64(alloc.UsedRAM())
	logger.Log(logger.Info, "usable memory: %d bytes, total memory: %d bytes",
		alloc.FreeRAM(), digest.MaxPhysical)

	kernelBase, _ := assets.LowestVirtualAddress()

	firmwareRoot := vmm.NewFromActiveRoot(0)
	pageTable, offset, vmmErr := vmm.BuildIdentityMappedTables(alloc, digest.MaxPhysical, kernelBase)
	if vmmErr != nil {
		kernel.Panic(vmmErr)
	}
	info.PageTableMemoryOffset = offset

	pageTable.Activate()
	pageTable.SetOffset(offset)

	if err := firmwareRoot.ReleaseTables(alloc); err != nil {
		logger.Log(logger.Warn, "could not release firmware page table: %s", err.Error())
	}

	var nextPage mem.VirtualAddress
	for i := 0; i < assets.Len(); i++ {
		asset := assets.Get(i)
		if err := pageTable.MapRange(asset.VirtAddr, asset.PhysAddr, asset.NumPages, alloc); err != nil {
			kernel.Panic(err)
		}
		if end := asset.VirtAddr.IncrementPages(asset.NumPages); end > nextPage {
			nextPage = end
		}
	}
	info.NextAvailableKernelPage = nextPage

	bootInfoVirtAddr := info.NextAvailableKernelPage
	bootInfoPhysAddr := mem.NewPhysicalAddress(uint64(infoAddr))
	if err := pageTable.MapRange(bootInfoVirtAddr, bootInfoPhysAddr, infoPages, alloc); err != nil {
		kernel.Panic(err)
	}
	info.NextAvailableKernelPage = bootInfoVirtAddr.IncrementPages(infoPages)

	info.MemInfo = bootinfo.MemInfo{
		Bitmap:             *alloc.Bitmap(),
		FreeMemory:         uint64(alloc.FreeRAM()),
		ReservedMemory:     reservedMemory,
		UsedMemory:         uint64(alloc.UsedRAM()),
		MaxPhysicalAddress: digest.MaxPhysical,
	}

	pageTable.Activate()

	mappedInfo := (*bootinfo.BootInfo)(unsafe.Pointer(uintptr(bootInfoVirtAddr.Uint64())))
	logger.Log(logger.Info, "handoff magic ok: %t", mappedInfo.HasValidMagic())
	logger.Log(logger.Info, "kernel entry point: 0x%x", entryPoint)
	logger.Print("bootloader finished\n")

	for {
	}
}

// allocateBootInfo reserves and zeroes the pages that will hold the
// BootInfo record, returning the record (viewed through the firmware's
// still-identity-mapped address space), its physical base address, and
// the page count the mapping step later needs.
func allocateBootInfo(bs *uefi.BootServices) (*bootinfo.BootInfo, uintptr, uint64) {
	pages := mem.PagesForBytes(uint64(unsafe.Sizeof(bootinfo.BootInfo{})))
	addr, err := bs.AllocatePages(uefi.MemoryLoaderData, uintptr(pages))
	if err != nil {
		kernel.Panic(wrapFirmwareErr(err))
	}

	mem.ZeroPages(addr, pages)
	info := (*bootinfo.BootInfo)(unsafe.Pointer(addr))
	*info = bootinfo.New()
	return info, addr, pages
}

// initFramebuffer negotiates a graphics mode and records its description
// in info, closing the protocol once the framebuffer's fields have been
// copied out (the physical base address is all that survives into
// BootInfo; the protocol itself is boot-services-only).
func initFramebuffer(bs *uefi.BootServices, imageHandle uefi.Handle, info *bootinfo.BootInfo) error {
	gop, err := bs.GetGraphicsOutputProtocol(imageHandle)
	if err != nil {
		return err
	}
	info.Framebuffer = gop.FrameBuffer()
	return gop.Close(bs)
}

// pageAllocator adapts uefi.BootServices.AllocatePages to
// elfload.PageAllocator.
type pageAllocator struct{ bs *uefi.BootServices }

func (p pageAllocator) AllocatePages(numPages uint64) (mem.PhysicalAddress, *kernel.Error) {
	addr, err := p.bs.AllocatePages(uefi.MemoryLoaderData, uintptr(numPages))
	if err != nil {
		return 0, wrapFirmwareErr(err)
	}
	return mem.NewPhysicalAddress(uint64(addr)), nil
}

// kernelFile adapts uefi.FileProtocol to elfload.KernelFile.
type kernelFile struct{ f *uefi.FileProtocol }

func (k kernelFile) ReadAt(offset uint64, buf []byte) *kernel.Error {
	if err := k.f.ReadAt(offset, buf); err != nil {
		return wrapFirmwareErr(err)
	}
	return nil
}

// loadKernel opens the kernel image off the boot volume, validates its
// ELF64 header, and loads every PT_LOAD segment into freshly allocated
// pages, merging overlapping segments the way elfload.SectionList always
// does.
func loadKernel(bs *uefi.BootServices, imageHandle uefi.Handle) (elfload.AssetList, mem.VirtualAddress, *kernel.Error) {
	root, err := bs.OpenVolume(imageHandle)
	if err != nil {
		return elfload.AssetList{}, 0, wrapFirmwareErr(err)
	}
	defer root.Close()

	file, err := root.OpenPath(bootcfg.KernelImagePath, uefi.FileModeRead, uefi.FileAttributeReadOnly)
	if err != nil {
		return elfload.AssetList{}, 0, wrapFirmwareErr(err)
	}
	defer file.Close()

	kf := kernelFile{f: file}
	header, kerr := elfload.ReadHeader(kf)
	if kerr != nil {
		return elfload.AssetList{}, 0, kerr
	}
	logger.Log(logger.Info, "kernel image has %d program headers", header.ProgramHeaderCount)

	capacity := int(header.ProgramHeaderCount)
	sectionsBuf, err := bs.AllocatePool(uefi.MemoryLoaderData, uintptr(elfload.ByteSize(capacity)))
	if err != nil {
		return elfload.AssetList{}, 0, wrapFirmwareErr(err)
	}
	sections := elfload.NewSectionList(uintptr(sectionsBuf), capacity)

	if kerr := elfload.CollectSections(kf, header, &sections); kerr != nil {
		return elfload.AssetList{}, 0, kerr
	}

	assetsBuf, err := bs.AllocatePool(uefi.MemoryLoaderData, uintptr(elfload.AssetListByteSize(sections.Len())))
	if err != nil {
		return elfload.AssetList{}, 0, wrapFirmwareErr(err)
	}
	assets := elfload.NewAssetList(uintptr(assetsBuf), sections.Len())

	alloc := pageAllocator{bs: bs}
	if kerr := elfload.LoadSections(kf, alloc, &sections, &assets); kerr != nil {
		return elfload.AssetList{}, 0, kerr
	}

	return assets, mem.NewVirtualAddress(header.Entry), nil
}

// fontMaxPages bounds how much of the font file loadFont will read; PSF1
// fonts are a few KiB, so this is generous headroom, not a tight fit.
const fontMaxPages = 16

// loadFont reads the console font file into freshly allocated pages and
// records their identity-mapped load address and the byte count read in
// info. The font has no on-disk length prefix this package can read
// without a GetInfo call this protocol wrapper doesn't expose, so the file
// is read until Read returns zero bytes or the fontMaxPages buffer is full.
func loadFont(bs *uefi.BootServices, imageHandle uefi.Handle, info *bootinfo.BootInfo) error {
	root, err := bs.OpenVolume(imageHandle)
	if err != nil {
		return err
	}
	defer root.Close()

	file, err := root.OpenPath(bootcfg.FontPath, uefi.FileModeRead, uefi.FileAttributeReadOnly)
	if err != nil {
		return err
	}
	defer file.Close()

	addr, err := bs.AllocatePages(uefi.MemoryLoaderData, fontMaxPages)
	if err != nil {
		return err
	}

	var buf []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&buf))
	hdr.Data = addr
	hdr.Len = int(fontMaxPages * uint64(mem.PageSize))
	hdr.Cap = hdr.Len

	var total int
	for total < len(buf) {
		n, err := file.Read(buf[total:])
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		total += n
	}

	info.Font = bootinfo.Font{Addr: mem.NewVirtualAddress(uint64(addr)), Size: uint64(total)}
	return nil
}

// digestMemoryMap converts the firmware's exit-time memory map into a
// physical frame allocator, choosing the largest conventional region to
// host the allocator's own bitmap. Once the allocator exists, the frames
// backing the memory map buffer itself are freed through it: boot
// services are gone by this point, so the firmware's own FreePages is no
// longer callable and the allocator is the only way left to reclaim them.
func digestMemoryMap(memMap *uefi.MemoryMap) (*pmm.Allocator, *pmm.DigestResult) {
	host, ok := pmm.LargestConventionalRegion(memMap)
	if !ok {
		kernel.Panic(&kernel.Error{Module: "bootloader", Message: "no conventional memory region available for the frame allocator bitmap"})
	}

	maxPhysical := memMap.MaxPhysicalAddress()
	numBits := uint64(maxPhysical) >> mem.PageShift
	bitmapBytes := bitmap.ByteSize(numBits)
	bitmapPages := mem.PagesForBytes(bitmapBytes)

	digest := pmm.InitFromMemoryMap(memMap, host.PhysAddr, bitmapPages)

	bufAddr, bufPages := memMap.BufferPages()
	if err := digest.Allocator.FreePages(bufAddr, bufPages); err != nil {
		logger.Log(logger.Warn, "could not reclaim memory map buffer: %s", err.Error())
	}

	return digest.Allocator, digest
}
