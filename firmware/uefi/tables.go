package uefi

// TableHeader mirrors EFI_TABLE_HEADER, the common prefix of every firmware
// table (system table, boot services, runtime services).
type TableHeader struct {
	Signature    uint64
	Revision     uint32
	HeaderSize   uint32
	CRC32        uint32
	Reserved     uint32
}

// SystemTable mirrors EFI_SYSTEM_TABLE. Only the fields the bootloader
// actually reads are given real types; ConIn/StdErr and their handles are
// carried as opaque pointers since nothing here talks to them.
type SystemTable struct {
	Hdr                 TableHeader
	FirmwareVendor      *uint16
	FirmwareRevision    uint32
	_                    uint32 // padding to the next 8-byte field on amd64
	ConsoleInHandle     uintptr
	ConIn               uintptr
	ConsoleOutHandle    uintptr
	ConOut              *simpleTextOutputProtocol
	StandardErrorHandle uintptr
	StdErr              uintptr
	RuntimeServices     uintptr
	BootServices        *bootServicesTable
	NumberOfTableEntries uintptr
	ConfigurationTable  uintptr
}

// bootServicesTable mirrors EFI_BOOT_SERVICES field-for-field, in spec
// order, so that offsets line up even though only a subset of the calls
// have Go-side wrapper methods. Unwrapped entries are kept as plain
// uintptr function pointers purely to hold their slot in the layout.
type bootServicesTable struct {
	Hdr TableHeader

	// Task priority services.
	raiseTPL   uintptr
	restoreTPL uintptr

	// Memory services.
	allocatePages uintptr
	freePages     uintptr
	getMemoryMap  uintptr
	allocatePool  uintptr
	freePool      uintptr

	// Event & timer services.
	createEvent   uintptr
	setTimer      uintptr
	waitForEvent  uintptr
	signalEvent   uintptr
	closeEvent    uintptr
	checkEvent    uintptr

	// Protocol handler services.
	installProtocolInterface   uintptr
	reinstallProtocolInterface uintptr
	uninstallProtocolInterface uintptr
	handleProtocol             uintptr
	reserved                   uintptr
	registerProtocolNotify     uintptr
	locateHandle               uintptr
	locateDevicePath           uintptr
	installConfigurationTable  uintptr

	// Image services.
	loadImage          uintptr
	startImage         uintptr
	exit               uintptr
	unloadImage        uintptr
	exitBootServices   uintptr

	// Miscellaneous services.
	getNextMonotonicCount uintptr
	stall                 uintptr
	setWatchdogTimer      uintptr

	// Driver support services.
	connectController    uintptr
	disconnectController uintptr

	// Open and close protocol services.
	openProtocol            uintptr
	closeProtocol           uintptr
	openProtocolInformation uintptr

	// Library services.
	protocolsPerHandle                 uintptr
	locateHandleBuffer                 uintptr
	locateProtocol                     uintptr
	installMultipleProtocolInterfaces  uintptr
	uninstallMultipleProtocolInterfaces uintptr

	// 32-bit CRC services.
	calculateCrc32 uintptr

	// Miscellaneous services, continued.
	copyMem        uintptr
	setMem         uintptr
	createEventEx  uintptr
}

// simpleTextOutputProtocol mirrors EFI_SIMPLE_TEXT_OUTPUT_PROTOCOL. The
// bootloader never prints through firmware console services (kfmt/early's
// serial sink covers all of early diagnostics), so only the pointer shape
// is kept and nothing is wrapped.
type simpleTextOutputProtocol struct {
	reset       uintptr
	outputString uintptr
	testString  uintptr
	queryMode   uintptr
	setMode     uintptr
	setAttribute uintptr
	clearScreen uintptr
	setCursorPosition uintptr
	enableCursor uintptr
	mode        uintptr
}
