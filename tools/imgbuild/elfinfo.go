package main

import (
	"debug/elf"
	"fmt"
)

// reportKernelELF logs the entry point and program-header layout of the
// built kernel image, the same host-side diagnostic firefly's
// tools/bootimage and u-root's pkg/multiboot both produce by reading an
// ELF file with the standard library rather than a third-party parser
// (kernel/elf, by contrast, parses the same file format freestanding,
// without debug/elf, since the bootloader has no file descriptors to
// hand it).
func reportKernelELF(path string) error {
	f, err := elf.Open(path)
	if err != nil {
		return fmt.Errorf("imgbuild: open kernel image: %w", err)
	}
	defer f.Close()

	logf("kernel image %s: entry=0x%x class=%s machine=%s", path, f.Entry, f.Class, f.Machine)
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		logf("  PT_LOAD vaddr=0x%x memsz=0x%x filesz=0x%x flags=%s", prog.Vaddr, prog.Memsz, prog.Filesz, prog.Flags)
	}
	return nil
}
