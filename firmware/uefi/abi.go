// Package uefi is a thin, allocation-free veneer over the UEFI boot-time
// firmware interface: the system table, boot services, and the handful of
// protocols the bootloader needs (file I/O, loaded-image, graphics output).
// Every struct here mirrors a firmware-defined memory layout exactly and is
// addressed via unsafe.Pointer over a firmware-supplied pointer, the same
// technique the kernel side uses to read multiboot-style structures: no
// field is ever copied out through cgo or a syscall, because there is
// neither available before exit_boot_services.
package uefi

// Handle is an opaque EFI_HANDLE.
type Handle uintptr

// efiCall invokes the firmware function pointer fn with up to six
// uintptr-sized arguments, bridging Go's calling convention to the one
// UEFI firmware expects. Unused trailing arguments must be passed as 0.
func efiCall(fn uintptr, a0, a1, a2, a3, a4, a5 uintptr) uintptr
