package uefi

import "unsafe"

// configurationTableEntry mirrors EFI_CONFIGURATION_TABLE.
type configurationTableEntry struct {
	VendorGUID  GUID
	VendorTable unsafe.Pointer
}

// ConfigurationTable is the firmware's list of vendor configuration
// tables. Only ACPI RSDP lookup is implemented; parsing anything an
// entry's pointer leads to is out of scope here.
type ConfigurationTable struct {
	entries []configurationTableEntry
}

func newConfigurationTable(numEntries uintptr, entries unsafe.Pointer) ConfigurationTable {
	return ConfigurationTable{entries: unsafe.Slice((*configurationTableEntry)(entries), int(numEntries))}
}

// FindACPIRSDP returns the physical address of the ACPI RSDP entry,
// preferring the ACPI 2.0 entry over the 1.0 one, or 0 if neither is
// present. Parsing the RSDT/XSDT the pointer leads to is left to whatever
// later consumes bootinfo.BootInfo.ACPIRSDP.
func (c ConfigurationTable) FindACPIRSDP() uintptr {
	var v1 uintptr
	for _, e := range c.entries {
		switch e.VendorGUID {
		case AcpiV2RSDPGUID:
			return uintptr(e.VendorTable)
		case AcpiV1RSDPGUID:
			v1 = uintptr(e.VendorTable)
		}
	}
	return v1
}
