package uefi

// GUID mirrors EFI_GUID's field layout exactly (little-endian, as stored by
// firmware), so it can be compared byte-for-byte against a raw pointer's
// first 16 bytes without any conversion.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

var (
	loadedImageProtocolGUID      = GUID{0x5B1B31A1, 0x9562, 0x11d2, [8]byte{0x8E, 0x3F, 0x00, 0xA0, 0xC9, 0x69, 0x72, 0x3B}}
	simpleFileSystemProtocolGUID = GUID{0x964E5B22, 0x6459, 0x11D2, [8]byte{0x8E, 0x39, 0x00, 0xA0, 0xC9, 0x69, 0x72, 0x3B}}
	graphicsOutputProtocolGUID   = GUID{0x9042A9DE, 0x23DC, 0x4A38, [8]byte{0x96, 0xFB, 0x7A, 0xDE, 0xD0, 0x80, 0x51, 0x6A}}

	// AcpiV1RSDPGUID and AcpiV2RSDPGUID identify the ACPI RSDP entries in
	// the firmware configuration table. Only the pointer is ever
	// surfaced (see ConfigurationTable.FindACPIRSDP) — parsing the RSDP
	// and anything it points to is out of scope here.
	AcpiV1RSDPGUID = GUID{0xEB9D2D30, 0x2D88, 0x11D3, [8]byte{0x9A, 0x16, 0x00, 0x90, 0x27, 0x3F, 0xC1, 0x4D}}
	AcpiV2RSDPGUID = GUID{0x8868E871, 0xE4F1, 0x11D3, [8]byte{0xBC, 0x22, 0x00, 0x80, 0xC7, 0x3C, 0x88, 0x81}}
)
