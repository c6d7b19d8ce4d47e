package mem

import (
	"reflect"
	"unsafe"
)

// Memset sets size bytes at the given address to the supplied value. The implementation
// is based on bytes.Repeat; instead of using a for loop, this function uses
// log2(size) copy calls which should give us a speed boost as page addresses
// are always aligned.
func Memset(addr uintptr, value byte, size Size) {
	if size == 0 {
		return
	}

	// overlay a slice on top of this address region
	target := *(*[]byte)(unsafe.Pointer(&reflect.SliceHeader{
		Len:  int(size),
		Cap:  int(size),
		Data: addr,
	}))

	// Set first element and make log2(size) optimized copies
	target[0] = value
	for index := Size(1); index < size; index *= 2 {
		copy(target[index:], target[:index])
	}
}

// ZeroPages zeroes a run of whole pages starting at addr. The BootInfo
// record and each loaded ELF segment come from AllocatePages rather than a
// zeroing allocator, so this is how each of those gets a clean starting
// state before anything writes into it. The frame allocator's bitmap is not
// zeroed here; it starts with every bit set.
func ZeroPages(addr uintptr, pageCount uint64) {
	Memset(addr, 0, Size(pageCount)*PageSize)
}
