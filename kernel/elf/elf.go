// Package elf defines the on-disk layout of the ELF64 structures the
// bootloader reads directly out of the kernel image file: the identifying
// header fields, the full file header, and the 64-bit program header.
// Unlike the host-side tooling in tools/imgbuild (which uses the standard
// library's debug/elf to introspect arbitrary ELF files), this package
// exists because the freestanding bootloader cannot import debug/elf: it
// has no file descriptors, no heap-backed io.ReaderAt, and must read these
// structures directly out of a byte buffer fetched via UEFI file protocol.
package elf

import "boot64/kernel/errors"

// MagicLength is the number of bytes of e_ident that carry the magic
// number.
const MagicLength = 4

// Magic is the four-byte ELF magic number: 0x7F followed by "ELF".
var Magic = [MagicLength]byte{0x7F, 'E', 'L', 'F'}

// Class identifies the file as 32-bit or 64-bit.
type Class uint8

const (
	Class32 Class = 1
	Class64 Class = 2
)

// Endianness identifies the byte order of multi-byte fields.
type Endianness uint8

const (
	LittleEndian Endianness = 1
	BigEndian    Endianness = 2
)

// Type identifies the object file type.
type Type uint16

const (
	TypeRelocatable Type = 1
	TypeExecutable  Type = 2
	TypeShared      Type = 3
	TypeCore        Type = 4
)

// Machine identifies the target instruction set architecture.
type Machine uint16

const (
	MachineX86_64 Machine = 0x3E
)

// Version is the ELF header version field; only version 1 exists.
type Version uint32

const CurrentVersion Version = 1

// HeaderCommon is the prefix of every ELF file, magic through the machine
// and version fields, used to validate a kernel image before the rest of
// the fixed-size header is trusted.
type HeaderCommon struct {
	Magic      [MagicLength]byte
	Class      Class
	Data       Endianness
	Version    uint8
	OSABI      uint8
	ABIVersion uint8
	_          [7]byte
	Type       Type
	Machine    Machine
	HeaderVersion Version
}

// Header64 is the complete 64-byte ELF64 file header.
type Header64 struct {
	Common          HeaderCommon
	Entry           uint64
	ProgramHeaderOff uint64
	SectionHeaderOff uint64
	Flags           uint32
	HeaderSize      uint16
	ProgramHeaderEntSize uint16
	ProgramHeaderCount   uint16
	SectionHeaderEntSize uint16
	SectionHeaderCount   uint16
	SectionHeaderStrNdx  uint16
}

// Validation failures, one sentinel per header field, matching the order
// Validate checks them in. These are plain string constants rather than
// kernel.Error values: nothing here needs a Module tag, only a reason a
// caller can compare against or log.
const (
	ErrInvalidMagic      = errors.KernelError("elf: invalid kernel image: magic")
	ErrInvalidClass      = errors.KernelError("elf: invalid kernel image: class")
	ErrInvalidEndianness = errors.KernelError("elf: invalid kernel image: endianness")
	ErrInvalidType       = errors.KernelError("elf: invalid kernel image: type")
	ErrInvalidMachine    = errors.KernelError("elf: invalid kernel image: machine")
	ErrInvalidVersion    = errors.KernelError("elf: invalid kernel image: version")
)

// Validate checks a kernel image's identifying header fields in the exact
// order the specification requires: magic, then class, then endianness,
// then type, then machine, then version. The first failing check is
// reported; later fields are not inspected once an earlier one fails.
func (h *HeaderCommon) Validate() error {
	if h.Magic != Magic {
		return ErrInvalidMagic
	}
	if h.Class != Class64 {
		return ErrInvalidClass
	}
	if h.Data != LittleEndian {
		return ErrInvalidEndianness
	}
	if h.Type != TypeExecutable {
		return ErrInvalidType
	}
	if h.Machine != MachineX86_64 {
		return ErrInvalidMachine
	}
	if h.HeaderVersion != CurrentVersion {
		return ErrInvalidVersion
	}
	return nil
}

// ProgramHeaderType identifies a program header's segment kind. Only Load
// segments are loaded by the bootloader; every other kind is skipped.
type ProgramHeaderType uint32

const (
	PTNull    ProgramHeaderType = 0
	PTLoad    ProgramHeaderType = 1
	PTDynamic ProgramHeaderType = 2
	PTInterp  ProgramHeaderType = 3
	PTNote    ProgramHeaderType = 4
	PTShlib   ProgramHeaderType = 5
	PTPhdr    ProgramHeaderType = 6
	PTTls     ProgramHeaderType = 7
)

// ProgramHeader64 is one entry of the ELF64 program header table.
type ProgramHeader64 struct {
	Type   ProgramHeaderType
	Flags  uint32
	Offset uint64
	VAddr  uint64
	PAddr  uint64
	FileSz uint64
	MemSz  uint64
	Align  uint64
}

// IsLoad reports whether this header describes a segment the loader must
// map into memory.
func (p *ProgramHeader64) IsLoad() bool { return p.Type == PTLoad }
