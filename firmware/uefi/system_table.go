package uefi

import "unsafe"

// BootSystemTable wraps EFI_SYSTEM_TABLE while boot services are still
// running. It owns the only BootServices handle; once ExitBootServices
// succeeds it is consumed and replaced by a RuntimeSystemTable.
type BootSystemTable struct {
	ptr          *SystemTable
	BootServices *BootServices
}

// NewBootSystemTable wraps a system table pointer handed to the
// bootloader's entry point. The caller must ensure it is valid and that
// exit_boot_services has not yet run.
func NewBootSystemTable(ptr unsafe.Pointer) *BootSystemTable {
	st := (*SystemTable)(ptr)
	return &BootSystemTable{ptr: st, BootServices: newBootServices(st.BootServices)}
}

// ConOut returns the firmware console output protocol.
func (t *BootSystemTable) ConOut() SimpleTextOutputProtocol {
	return newSimpleTextOutputProtocol(t.ptr.ConOut)
}

// GetConfigurationTable returns the firmware's vendor configuration table
// list (used here only to find the ACPI RSDP).
func (t *BootSystemTable) GetConfigurationTable() ConfigurationTable {
	return newConfigurationTable(t.ptr.NumberOfTableEntries, unsafe.Pointer(t.ptr.ConfigurationTable))
}

// ExitBootServices fetches the current memory map, exits boot services
// using its map key, and returns a RuntimeSystemTable plus the memory map
// that was current at the moment of the switch. BootServices must not be
// used again after this succeeds.
func (t *BootSystemTable) ExitBootServices(imageHandle Handle) (*RuntimeSystemTable, *MemoryMap, error) {
	memMap, mapKey, err := t.BootServices.GetMemoryMap()
	if err != nil {
		return nil, nil, err
	}
	if err := t.BootServices.ExitBootServices(imageHandle, mapKey); err != nil {
		return nil, nil, err
	}
	return &RuntimeSystemTable{ptr: t.ptr}, memMap, nil
}

// RuntimeSystemTable wraps EFI_SYSTEM_TABLE after boot services have
// exited. Only the configuration table remains meaningful; everything
// boot-services-backed is gone.
type RuntimeSystemTable struct {
	ptr *SystemTable
}

// GetConfigurationTable returns the firmware's vendor configuration table
// list.
func (t *RuntimeSystemTable) GetConfigurationTable() ConfigurationTable {
	return newConfigurationTable(t.ptr.NumberOfTableEntries, unsafe.Pointer(t.ptr.ConfigurationTable))
}
