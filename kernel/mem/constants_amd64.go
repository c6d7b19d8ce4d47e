// +build amd64

package mem

const (
	// PageShift is equal to log2(PageSize); used to convert a physical
	// address to a page number (shift right by PageShift) and back.
	// UEFI's own AllocatePages and GetMemoryMap both work exclusively in
	// this same 4 KiB unit, so every boot-time page count in this
	// codebase is already in firmware-native units.
	PageShift = 12

	// PageSize defines the system's page size in bytes.
	PageSize = Size(1 << PageShift)
)
