package uefi

import "unsafe"

// AllocateType selects how AllocatePages picks a starting address; this
// package only ever asks for AllocateAnyPages, so the others exist purely
// to document the firmware enum's layout.
type AllocateType uint32

const (
	AllocateAnyPages AllocateType = iota
	AllocateMaxAddress
	AllocateAddress
)

const openProtocolGetProtocol = 0x00000002
const locateByProtocol = 2

// BootServices wraps EFI_BOOT_SERVICES. It must not be used after
// ExitBootServices succeeds.
type BootServices struct {
	tbl *bootServicesTable
}

func newBootServices(tbl *bootServicesTable) *BootServices {
	return &BootServices{tbl: tbl}
}

// AllocatePages reserves numPages contiguous physical pages of the given
// memory type anywhere the firmware sees fit and returns their physical
// base address.
func (bs *BootServices) AllocatePages(memType MemoryType, numPages uintptr) (uintptr, error) {
	var addr uint64
	status := Status(efiCall(bs.tbl.allocatePages,
		uintptr(AllocateAnyPages), uintptr(memType), numPages,
		uintptr(unsafe.Pointer(&addr)), 0, 0))
	if status != StatusSuccess {
		return 0, status
	}
	return uintptr(addr), nil
}

// FreePages releases numPages pages previously returned by AllocatePages.
func (bs *BootServices) FreePages(addr uintptr, numPages uintptr) error {
	status := Status(efiCall(bs.tbl.freePages, addr, numPages, 0, 0, 0, 0))
	if status != StatusSuccess {
		return status
	}
	return nil
}

// AllocatePool allocates size bytes of pool memory of the given type.
func (bs *BootServices) AllocatePool(memType MemoryType, size uintptr) (unsafe.Pointer, error) {
	var buf unsafe.Pointer
	status := Status(efiCall(bs.tbl.allocatePool,
		uintptr(memType), size, uintptr(unsafe.Pointer(&buf)), 0, 0, 0))
	if status != StatusSuccess {
		return nil, status
	}
	return buf, nil
}

// FreePool releases memory allocated by AllocatePool.
func (bs *BootServices) FreePool(buf unsafe.Pointer) error {
	status := Status(efiCall(bs.tbl.freePool, uintptr(buf), 0, 0, 0, 0, 0))
	if status != StatusSuccess {
		return status
	}
	return nil
}

// GetMemoryMap retrieves the current firmware memory map. It grows and
// retries its own buffer, allocated via AllocatePages, until the firmware
// reports success, since the map's size can change between the sizing call
// and the call that fills the buffer (e.g. by the AllocatePages call
// itself). The caller owns the returned map's backing pages and the map
// key, which it must pass unchanged to ExitBootServices.
func (bs *BootServices) GetMemoryMap() (m *MemoryMap, mapKey uintptr, err error) {
	var mapSize, descriptorSize uintptr
	var descriptorVersion uint32
	var bufAddr uintptr

	status := Status(efiCall(bs.tbl.getMemoryMap,
		uintptr(unsafe.Pointer(&mapSize)), bufAddr,
		uintptr(unsafe.Pointer(&mapKey)),
		uintptr(unsafe.Pointer(&descriptorSize)),
		uintptr(unsafe.Pointer(&descriptorVersion)), 0))

	var numPages uintptr
	for status == StatusBufferTooSmall {
		const pageSize = 4096
		numPages = (mapSize + pageSize - 1) / pageSize
		bufAddr, err = bs.AllocatePages(MemoryLoaderData, numPages)
		if err != nil {
			return nil, 0, err
		}

		status = Status(efiCall(bs.tbl.getMemoryMap,
			uintptr(unsafe.Pointer(&mapSize)), bufAddr,
			uintptr(unsafe.Pointer(&mapKey)),
			uintptr(unsafe.Pointer(&descriptorSize)),
			uintptr(unsafe.Pointer(&descriptorVersion)), 0))

		if status != StatusSuccess {
			_ = bs.FreePages(bufAddr, numPages)
			if status != StatusBufferTooSmall {
				return nil, 0, status
			}
		}
	}
	if status != StatusSuccess {
		return nil, 0, status
	}

	buf := unsafe.Slice((*byte)(unsafe.Pointer(bufAddr)), numPages*4096)
	return newMemoryMap(buf, mapSize, descriptorSize, uint64(numPages)), mapKey, nil
}

// ExitBootServices tells the firmware to stop providing boot services.
// mapKey must be the key from the GetMemoryMap call that immediately
// preceded this one; any intervening allocation invalidates it and the
// call fails with StatusInvalidParameter, requiring the caller to refetch
// the map and retry.
func (bs *BootServices) ExitBootServices(imageHandle Handle, mapKey uintptr) error {
	status := Status(efiCall(bs.tbl.exitBootServices, uintptr(imageHandle), mapKey, 0, 0, 0, 0))
	if status != StatusSuccess {
		return status
	}
	return nil
}

// handleProtocol is the EFI 1.02 way of querying a handle for a protocol
// interface. OpenProtocol falls back to this when the firmware predates
// open/close protocol.
func (bs *BootServices) handleProtocol(h Handle, guid *GUID) (unsafe.Pointer, error) {
	var iface unsafe.Pointer
	status := Status(efiCall(bs.tbl.handleProtocol,
		uintptr(h), uintptr(unsafe.Pointer(guid)), uintptr(unsafe.Pointer(&iface)), 0, 0, 0))
	if status != StatusSuccess {
		return nil, status
	}
	return iface, nil
}

// OpenProtocol queries handle for the protocol identified by guid on
// behalf of agentHandle, falling back to the older HandleProtocol call if
// the firmware doesn't implement OpenProtocol.
func (bs *BootServices) OpenProtocol(handle, agentHandle Handle, guid *GUID) (unsafe.Pointer, error) {
	if bs.tbl.openProtocol == 0 {
		return bs.handleProtocol(handle, guid)
	}

	var iface unsafe.Pointer
	status := Status(efiCall(bs.tbl.openProtocol,
		uintptr(handle), uintptr(unsafe.Pointer(guid)), uintptr(unsafe.Pointer(&iface)),
		uintptr(agentHandle), 0, openProtocolGetProtocol))
	if status != StatusSuccess {
		return nil, status
	}
	return iface, nil
}

// CloseProtocol tells the firmware that agentHandle no longer needs guid
// on handle. It fails with StatusUnsupported on firmware that predates
// CloseProtocol.
func (bs *BootServices) CloseProtocol(handle, agentHandle Handle, guid *GUID) error {
	if bs.tbl.closeProtocol == 0 {
		return StatusUnsupported
	}
	status := Status(efiCall(bs.tbl.closeProtocol,
		uintptr(handle), uintptr(unsafe.Pointer(guid)), uintptr(agentHandle), 0, 0, 0))
	if status != StatusSuccess {
		return status
	}
	return nil
}

// locateHandle is the EFI 1.02 way of listing handles supporting a
// protocol; locateHandleBuffer falls back to it on older firmware.
func (bs *BootServices) locateHandle(guid *GUID) ([]Handle, error) {
	var bufSize uintptr
	status := Status(efiCall(bs.tbl.locateHandle,
		locateByProtocol, uintptr(unsafe.Pointer(guid)), 0,
		uintptr(unsafe.Pointer(&bufSize)), 0, 0))
	if status != StatusBufferTooSmall {
		return nil, status
	}

	buf, err := bs.AllocatePool(MemoryLoaderData, bufSize)
	if err != nil {
		return nil, err
	}

	status = Status(efiCall(bs.tbl.locateHandle,
		locateByProtocol, uintptr(unsafe.Pointer(guid)), 0,
		uintptr(unsafe.Pointer(&bufSize)), uintptr(buf), 0))
	if status.IsError() {
		return nil, status
	}

	count := int(bufSize / unsafe.Sizeof(Handle(0)))
	return unsafe.Slice((*Handle)(buf), count), nil
}

// locateHandleBuffer lists every handle that supports guid, preferring
// LocateHandleBuffer and falling back to locateHandle on firmware that
// predates it.
func (bs *BootServices) locateHandleBuffer(guid *GUID) ([]Handle, error) {
	if bs.tbl.locateHandleBuffer == 0 {
		return bs.locateHandle(guid)
	}

	var numHandles uintptr
	var handleBuf unsafe.Pointer
	status := Status(efiCall(bs.tbl.locateHandleBuffer,
		locateByProtocol, uintptr(unsafe.Pointer(guid)), 0,
		uintptr(unsafe.Pointer(&numHandles)), uintptr(unsafe.Pointer(&handleBuf)), 0))
	if status.IsError() {
		return nil, status
	}

	handles := unsafe.Slice((*Handle)(handleBuf), int(numHandles))
	out := make([]Handle, len(handles))
	copy(out, handles)
	_ = bs.FreePool(handleBuf)
	return out, nil
}

// findAndOpenProtocol locates the first handle supporting guid and opens
// it on agentHandle's behalf.
func (bs *BootServices) findAndOpenProtocol(agentHandle Handle, guid *GUID) (Handle, unsafe.Pointer, error) {
	handles, err := bs.locateHandleBuffer(guid)
	if err != nil {
		return 0, nil, err
	}
	if len(handles) == 0 {
		return 0, nil, StatusNotFound
	}

	iface, err := bs.OpenProtocol(handles[0], agentHandle, guid)
	if err != nil {
		return 0, nil, err
	}
	return handles[0], iface, nil
}

// GetLoadedImageProtocol opens the loaded-image protocol on h.
func (bs *BootServices) GetLoadedImageProtocol(h Handle) (*LoadedImageProtocol, error) {
	iface, err := bs.OpenProtocol(h, h, &loadedImageProtocolGUID)
	if err != nil {
		return nil, err
	}
	return newLoadedImageProtocol(h, iface), nil
}

// GetSimpleFileProtocol opens the simple-file-system protocol on h.
func (bs *BootServices) GetSimpleFileProtocol(h Handle) (*SimpleFileSystemProtocol, error) {
	iface, err := bs.OpenProtocol(h, h, &simpleFileSystemProtocolGUID)
	if err != nil {
		return nil, err
	}
	return newSimpleFileSystemProtocol(iface), nil
}

// GetGraphicsOutputProtocol locates and opens the graphics output
// protocol on behalf of agentHandle.
func (bs *BootServices) GetGraphicsOutputProtocol(agentHandle Handle) (*GraphicsOutputProtocol, error) {
	handle, iface, err := bs.findAndOpenProtocol(agentHandle, &graphicsOutputProtocolGUID)
	if err != nil {
		return nil, err
	}
	return newGraphicsOutputProtocol(handle, agentHandle, iface), nil
}

// OpenVolume opens the root directory of the file system the image handle
// h was loaded from.
func (bs *BootServices) OpenVolume(h Handle) (*FileProtocol, error) {
	loadedImage, err := bs.GetLoadedImageProtocol(h)
	if err != nil {
		return nil, err
	}
	fs, err := bs.GetSimpleFileProtocol(loadedImage.DeviceHandle())
	if err != nil {
		return nil, err
	}
	return fs.OpenVolume()
}
