package uefi

import "unsafe"

// loadedImageProtocol mirrors EFI_LOADED_IMAGE_PROTOCOL's layout. Only the
// fields the bootloader reads are given real offsets; everything before
// DeviceHandle is padding held as opaque uintptr slots.
type loadedImageProtocol struct {
	revision        uint32
	_               uint32
	parentHandle    uintptr
	systemTable     uintptr
	deviceHandle    uintptr
	filePath        uintptr
	reserved        uintptr
	loadOptionsSize uint32
	_               uint32
	loadOptions     uintptr
	imageBase       uintptr
	imageSize       uint64
	imageCodeType   uint32
	imageDataType   uint32
	unload          uintptr
}

// LoadedImageProtocol wraps EFI_LOADED_IMAGE_PROTOCOL: its only use here is
// recovering the device handle the running image was loaded from, so that
// handle can be used to open that same device's file system. openedOn is
// the handle the protocol was opened against (the image handle itself),
// needed again to close it; it is unrelated to DeviceHandle(), which reads
// a different field inside the protocol structure.
type LoadedImageProtocol struct {
	openedOn Handle
	ptr      *loadedImageProtocol
}

func newLoadedImageProtocol(openedOn Handle, ptr unsafe.Pointer) *LoadedImageProtocol {
	return &LoadedImageProtocol{openedOn: openedOn, ptr: (*loadedImageProtocol)(ptr)}
}

// DeviceHandle returns the handle of the device the image was loaded from.
func (p *LoadedImageProtocol) DeviceHandle() Handle {
	return Handle(p.ptr.deviceHandle)
}

// Close releases the protocol.
func (p *LoadedImageProtocol) Close(bs *BootServices) error {
	return bs.CloseProtocol(p.openedOn, p.openedOn, &loadedImageProtocolGUID)
}
