// Package bootcfg centralizes the compile-time constants the bootloader
// and kernel agree on: file paths inside the boot volume, the memory
// budget ceilings the specification fixes, and the logging thresholds the
// teacher scatters across main.rs and x86_64_hardware as bare const items
// in the original. Collecting them here mirrors how the teacher itself
// centralizes magic numbers in kernel/mem/constants_amd64.go and
// kernel/mem/size.go.
package bootcfg

import "boot64/kernel/mem"

const (
	// KernelImagePath is where the bootloader looks for the kernel ELF
	// image on the boot volume.
	KernelImagePath = "kernel\\kernel.elf"

	// FontPath is where the bootloader looks for the PSF1 console font.
	FontPath = "kernel\\fonts\\ascii.psf"
)

const (
	// MaxPhysicalMemory is the largest physical address space the
	// page-table construction step will identity-map. A reported
	// memory map larger than this fails boot with MemoryTooLarge.
	MaxPhysicalMemory = 512 * mem.Gb

	// OneGigabyte is the unit the direct-map offset calculation rounds
	// the identity-mapped region up to.
	OneGigabyte = mem.Gb
)

// LogLevel orders the severities the kernel and bootloader log at.
type LogLevel uint8

const (
	LogDebug LogLevel = iota
	LogInfo
	LogWarn
	LogError
	LogCritical
)

const (
	// MinSerialLogLevel is the lowest severity written to the COM1
	// diagnostic port. Serial output has no bandwidth concerns worth
	// filtering more aggressively during boot.
	MinSerialLogLevel = LogDebug

	// MinDisplayLogLevel is the lowest severity drawn to the screen
	// console, kept less noisy than serial since the display has
	// limited scrollback.
	MinDisplayLogLevel = LogInfo

	// SerialColorsEnabled controls whether COM1 output is wrapped in
	// ANSI color escapes.
	SerialColorsEnabled = true

	// OutputLogLevels controls whether each log line is prefixed with
	// its severity letter (e.g. "[I] "). Off by default, matching the
	// original boot log's plain, unprefixed lines.
	OutputLogLevels = false
)
