package elfload

import (
	"reflect"
	"unsafe"

	"boot64/kernel/mem"
)

// Asset records where one merged Section ended up after being loaded: the
// physical address of the freshly allocated buffer holding its bytes, how
// many pages that buffer spans, and the virtual address the boot
// orchestration must eventually map it to.
type Asset struct {
	PhysAddr mem.PhysicalAddress
	NumPages uint64
	VirtAddr mem.VirtualAddress
}

// AssetList is a fixed-capacity append-only collection of Assets, backed
// by caller-provided page storage for the same reason SectionList is.
type AssetList struct {
	items []Asset
	count int
}

// NewAssetList overlays an AssetList of the given item capacity onto addr.
func NewAssetList(addr uintptr, capacity int) AssetList {
	var items []Asset
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&items))
	hdr.Data = addr
	hdr.Len = capacity
	hdr.Cap = capacity
	return AssetList{items: items}
}

// AssetListByteSize returns the backing storage size NewAssetList needs
// for the given capacity.
func AssetListByteSize(capacity int) uint64 {
	return uint64(capacity) * uint64(unsafe.Sizeof(Asset{}))
}

// Len returns the number of assets currently held.
func (l *AssetList) Len() int { return l.count }

// Get returns the asset at index, which must be less than Len().
func (l *AssetList) Get(index int) Asset { return l.items[index] }

// Add appends asset to the list and reports whether there was room.
func (l *AssetList) Add(asset Asset) bool {
	if l.count == len(l.items) {
		return false
	}
	l.items[l.count] = asset
	l.count++
	return true
}

// LowestVirtualAddress returns the smallest VirtAddr across every asset in
// the list, which the boot orchestration uses as the kernel's base virtual
// address when computing the direct-map offset. The second return value
// is false if the list is empty.
func (l *AssetList) LowestVirtualAddress() (mem.VirtualAddress, bool) {
	if l.count == 0 {
		return 0, false
	}
	lowest := l.items[0].VirtAddr
	for i := 1; i < l.count; i++ {
		if l.items[i].VirtAddr < lowest {
			lowest = l.items[i].VirtAddr
		}
	}
	return lowest, true
}
