package uefi

import (
	"unsafe"

	"boot64/kernel/bootinfo"
	"boot64/kernel/mem"
)

// gopModeInfo mirrors EFI_GRAPHICS_OUTPUT_MODE_INFORMATION's fields this
// package reads.
type gopModeInfo struct {
	version                 uint32
	horizontalResolution    uint32
	verticalResolution      uint32
	pixelFormat             uint32
	pixelBitmask            [4]uint32
	pixelsPerScanLine       uint32
}

// gopMode mirrors EFI_GRAPHICS_OUTPUT_PROTOCOL_MODE.
type gopMode struct {
	maxMode          uint32
	mode             uint32
	info             *gopModeInfo
	sizeOfInfo       uintptr
	frameBufferBase  uint64
	frameBufferSize  uintptr
}

// graphicsOutputProtocol mirrors EFI_GRAPHICS_OUTPUT_PROTOCOL.
type graphicsOutputProtocol struct {
	queryMode uintptr
	setMode   uintptr
	blt       uintptr
	mode      *gopMode
}

// GraphicsOutputProtocol wraps EFI_GRAPHICS_OUTPUT_PROTOCOL, whose only
// use here is reading out the active mode's linear framebuffer.
type GraphicsOutputProtocol struct {
	openedOn    Handle
	agentHandle Handle
	ptr         *graphicsOutputProtocol
}

func newGraphicsOutputProtocol(openedOn, agentHandle Handle, ptr unsafe.Pointer) *GraphicsOutputProtocol {
	return &GraphicsOutputProtocol{
		openedOn:    openedOn,
		agentHandle: agentHandle,
		ptr:         (*graphicsOutputProtocol)(ptr),
	}
}

// FrameBuffer reads the active mode's framebuffer description.
func (p *GraphicsOutputProtocol) FrameBuffer() bootinfo.FrameBuffer {
	mode := p.ptr.mode
	info := mode.info

	return bootinfo.FrameBuffer{
		BaseAddress:       mem.NewPhysicalAddress(mode.frameBufferBase),
		BufferSize:        uint64(mode.frameBufferSize),
		Width:             info.horizontalResolution,
		Height:            info.verticalResolution,
		PixelsPerScanLine: info.pixelsPerScanLine,
		Format:            bootinfo.PixelFormat(info.pixelFormat),
	}
}

// Close releases the protocol.
func (p *GraphicsOutputProtocol) Close(bs *BootServices) error {
	return bs.CloseProtocol(p.openedOn, p.agentHandle, &graphicsOutputProtocolGUID)
}
