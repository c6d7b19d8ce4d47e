// Command kernel is the freestanding kernel entry point, which takes a
// pointer to the BootInfo record the bootloader builds. cmd/bootloader
// loads this image and prepares that record, but it ends in an idle loop
// and does not transfer control here. kmain never returns: once the idle
// loop at its bottom is reached, the only way out is a panic or a reset.
package main

import (
	"unsafe"

	"boot64/kernel"
	"boot64/kernel/bootinfo"
	"boot64/kernel/font"
	"boot64/kernel/graphics"
	"boot64/kernel/logger"
	"boot64/kernel/mem"
	"boot64/kernel/mem/pmm"
)

var errBadHandoff = &kernel.Error{Module: "kmain", Message: "BootInfo magic mismatch"}

// bootInfoPtr holds the BootInfo address kmain receives; nothing in this
// repository assigns it. Passing it to kmain through a package-level variable
// instead of inlining the call keeps the Go compiler from eliding kmain
// as unreachable, since nothing else in this binary ever calls it.
var bootInfoPtr uintptr

// main is the only Go symbol the entry assembly calls directly. It sets
// up nothing itself; every bit of initialization happens in kmain.
func main() {
	kmain(bootInfoPtr)
}

// kmain takes a pointer to the BootInfo record, already re-mapped into
// this address space. It never returns.
//
//go:noinline
func kmain(infoPtr uintptr) {
	info := (*bootinfo.BootInfo)(unsafe.Pointer(infoPtr))

	logger.InitSerial()

	if !info.HasValidMagic() {
		kernel.Panic(errBadHandoff)
	}

	alloc := rebuildAllocator(info)
	initDisplay(info)

	logger.Print("boot64 kernel\n")
	logger.Log(logger.Info, "handoff verified, magic ok")
	logger.Log(logger.Info, "memory: %d bytes free, %d bytes used, %d bytes reserved",
		alloc.FreeRAM(), alloc.UsedRAM(), info.MemInfo.ReservedMemory)

	for {
	}
}

// rebuildAllocator re-derives the physical frame allocator from the
// bitmap BootInfo carried across the handoff. The bitmap's bytes are
// untouched by the transition; only the virtual alias through which this
// address space sees them changes, by the same offset every other mapped
// asset moved by.
func rebuildAllocator(info *bootinfo.BootInfo) *pmm.Allocator {
	bm := info.MemInfo.Bitmap
	bm.Rebind(bm.Addr() + uintptr(info.PageTableMemoryOffset))
	return pmm.New(bm, mem.Size(info.MemInfo.FreeMemory), mem.Size(info.MemInfo.UsedMemory))
}

// initDisplay brings up the screen console, if a graphics mode and font
// actually made it across the handoff. A zero BaseAddress means the
// bootloader never negotiated a usable graphics mode; logging stays
// serial-only in that case, same as before any console exists.
func initDisplay(info *bootinfo.BootInfo) {
	if info.Framebuffer.BaseAddress == 0 || info.Font.Size == 0 {
		return
	}

	fbVirtAddr := uintptr(info.Framebuffer.BaseAddress.Uint64()) + uintptr(info.PageTableMemoryOffset)
	fb, err := graphics.FromBootInfo(&info.Framebuffer, fbVirtAddr)
	if err != nil {
		logger.Log(logger.Warn, "framebuffer unavailable: %s", err.Error())
		return
	}

	f, err := font.Load(uintptr(info.Font.Addr.Uint64()), info.Font.Size)
	if err != nil {
		logger.Log(logger.Warn, "font unavailable: %s", err.Error())
		return
	}

	logger.InitDisplay(fb, f)
}
