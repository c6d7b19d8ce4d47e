package uefi

import "unsafe"

// simpleFileSystemProtocol mirrors EFI_SIMPLE_FILE_SYSTEM_PROTOCOL.
type simpleFileSystemProtocol struct {
	revision   uint64
	openVolume uintptr
}

// SimpleFileSystemProtocol wraps EFI_SIMPLE_FILE_SYSTEM_PROTOCOL, whose
// only job here is opening the root directory of a volume.
type SimpleFileSystemProtocol struct {
	ptr *simpleFileSystemProtocol
}

func newSimpleFileSystemProtocol(ptr unsafe.Pointer) *SimpleFileSystemProtocol {
	return &SimpleFileSystemProtocol{ptr: (*simpleFileSystemProtocol)(ptr)}
}

// OpenVolume opens and returns the root directory of the volume.
func (p *SimpleFileSystemProtocol) OpenVolume() (*FileProtocol, error) {
	var root unsafe.Pointer
	status := Status(efiCall(p.ptr.openVolume,
		uintptr(unsafe.Pointer(p.ptr)),
		uintptr(unsafe.Pointer(&root)),
		0, 0, 0, 0))
	if status != StatusSuccess {
		return nil, status
	}
	return newFileProtocol(root), nil
}
