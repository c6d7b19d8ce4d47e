package uefi

import (
	"strings"
	"unsafe"
)

// File open modes and attributes, per the EFI_FILE_PROTOCOL.Open spec. Only
// the combinations the bootloader actually issues are named.
const (
	FileModeRead   uint64 = 0x0000000000000001
	FileModeWrite  uint64 = 0x0000000000000002
	FileModeCreate uint64 = 0x8000000000000000

	FileAttributeReadOnly uint64 = 0x1
)

// fileProtocol mirrors EFI_FILE_PROTOCOL's function-pointer table.
type fileProtocol struct {
	revision   uint64
	open       uintptr
	close      uintptr
	delete     uintptr
	read       uintptr
	write      uintptr
	getPosition uintptr
	setPosition uintptr
	getInfo    uintptr
	setInfo    uintptr
	flush      uintptr
}

// FileProtocol wraps EFI_FILE_PROTOCOL. It tracks whether it has already
// been closed so repeated Close calls are harmless, the same idempotence
// the Rust original gave it via a Drop guard; Go has no destructors, so
// callers must Close explicitly.
type FileProtocol struct {
	ptr    *fileProtocol
	closed bool
}

func newFileProtocol(ptr unsafe.Pointer) *FileProtocol {
	return &FileProtocol{ptr: (*fileProtocol)(ptr)}
}

// OpenPath opens a '/'-separated path relative to this file (normally the
// volume root), opening each intermediate directory component read-only
// and applying mode/attributes only to the final component.
func (f *FileProtocol) OpenPath(path string, mode, attributes uint64) (*FileProtocol, error) {
	parts := strings.Split(path, "/")
	if len(parts) == 0 {
		return nil, StatusInvalidParameter
	}
	if len(parts) == 1 {
		return f.Open(parts[0], mode, attributes)
	}

	cur, err := f.Open(parts[0], FileModeRead, FileAttributeReadOnly)
	if err != nil {
		return nil, err
	}

	for i, part := range parts[1:] {
		last := i == len(parts)-2
		m, a := FileModeRead, FileAttributeReadOnly
		if last {
			m, a = mode, attributes
		}
		next, err := cur.Open(part, m, a)
		_ = cur.Close()
		if err != nil {
			return nil, err
		}
		cur = next
	}

	return cur, nil
}

// Open opens a single path component relative to this file.
func (f *FileProtocol) Open(name string, mode, attributes uint64) (*FileProtocol, error) {
	var pathBuf [1024]uint16
	read, _ := encodeUTF16(name, pathBuf[:])
	if read < len(name) {
		return nil, StatusBufferTooSmall
	}

	var out unsafe.Pointer
	status := Status(efiCall(f.ptr.open,
		uintptr(unsafe.Pointer(f.ptr)),
		uintptr(unsafe.Pointer(&out)),
		uintptr(unsafe.Pointer(&pathBuf[0])),
		uintptr(mode),
		uintptr(attributes),
		0))
	if status != StatusSuccess {
		return nil, status
	}
	return newFileProtocol(out), nil
}

// Read fills buf from the current file position and reports the number of
// bytes actually read.
func (f *FileProtocol) Read(buf []byte) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	size := uintptr(len(buf))
	status := Status(efiCall(f.ptr.read,
		uintptr(unsafe.Pointer(f.ptr)),
		uintptr(unsafe.Pointer(&size)),
		uintptr(unsafe.Pointer(&buf[0])),
		0, 0, 0))
	if status != StatusSuccess {
		return int(size), status
	}
	return int(size), nil
}

// ReadFull reads exactly len(buf) bytes, failing if the protocol returns
// fewer without error (which Read's signature cannot distinguish from a
// short underlying read otherwise).
func (f *FileProtocol) ReadFull(buf []byte) error {
	n, err := f.Read(buf)
	if err != nil {
		return err
	}
	if n != len(buf) {
		return StatusAborted
	}
	return nil
}

// ReadAt seeks to offset and reads exactly len(buf) bytes, satisfying
// elfload.KernelFile so the ELF loader can read program headers and
// segment bytes straight out of an open kernel image.
func (f *FileProtocol) ReadAt(offset uint64, buf []byte) error {
	if err := f.SetPosition(offset); err != nil {
		return err
	}
	return f.ReadFull(buf)
}

// SetPosition moves the file pointer to an absolute byte offset.
func (f *FileProtocol) SetPosition(pos uint64) error {
	status := Status(efiCall(f.ptr.setPosition,
		uintptr(unsafe.Pointer(f.ptr)),
		uintptr(pos),
		0, 0, 0, 0))
	if status != StatusSuccess {
		return status
	}
	return nil
}

// Close releases the file handle. It is safe to call more than once.
func (f *FileProtocol) Close() error {
	if f.closed {
		return nil
	}
	status := Status(efiCall(f.ptr.close, uintptr(unsafe.Pointer(f.ptr)), 0, 0, 0, 0, 0))
	f.closed = true
	if status != StatusSuccess {
		return status
	}
	return nil
}
