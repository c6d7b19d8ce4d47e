package elfload

import (
	"testing"
	"unsafe"

	"boot64/kernel/elf"
	"boot64/kernel/mem"
)

func TestFromProgramHeaderRoundsToPages(t *testing.T) {
	ph := elf.ProgramHeader64{
		Type:   elf.PTLoad,
		Offset: 0x1234,
		VAddr:  0xFFFF_8000_0010_1234,
		FileSz: 0x2000,
		MemSz:  0x3000,
	}

	s := FromProgramHeader(&ph)

	if s.VirtAddr.PageOffset() != 0 {
		t.Errorf("expected virtual address to be page-aligned; got offset 0x%x", s.VirtAddr.PageOffset())
	}
	if s.NumFilePages == 0 || s.NumMemPages == 0 {
		t.Errorf("expected non-zero page counts; got file=%d mem=%d", s.NumFilePages, s.NumMemPages)
	}
	if s.NumMemPages < s.NumFilePages {
		t.Errorf("expected mem pages (%d) to cover at least as much as file pages (%d)", s.NumMemPages, s.NumFilePages)
	}
}

func TestSectionCombineOverlapping(t *testing.T) {
	a := Section{FileAddr: 0, VirtAddr: mem.NewVirtualAddress(0x1000), NumFilePages: 2, NumMemPages: 2}
	b := Section{FileAddr: mem.NewPhysicalAddress(uint64(mem.PageSize)), VirtAddr: mem.NewVirtualAddress(0x2000), NumFilePages: 2, NumMemPages: 2}

	merged, conflict := a.Combine(b)
	if !merged {
		t.Fatal("expected overlapping, same-offset sections to combine")
	}
	if conflict {
		t.Error("expected no conflict when sections merge cleanly")
	}
	if a.NumMemPages != 3 {
		t.Errorf("expected combined section to span 3 pages; got %d", a.NumMemPages)
	}
}

func TestSectionCombineRejectsDifferentOffset(t *testing.T) {
	a := Section{FileAddr: 0, VirtAddr: mem.NewVirtualAddress(0x1000), NumFilePages: 2, NumMemPages: 2}
	b := Section{FileAddr: mem.NewPhysicalAddress(5 * uint64(mem.PageSize)), VirtAddr: mem.NewVirtualAddress(0x2000), NumFilePages: 2, NumMemPages: 2}

	merged, conflict := a.Combine(b)
	if merged {
		t.Fatal("expected sections with mismatched file/virtual offsets not to combine")
	}
	if !conflict {
		t.Error("expected overlapping sections with mismatched offsets to be reported as a conflict")
	}
}

func TestSectionListAddMergesAndSorts(t *testing.T) {
	buf := make([]Section, 4)
	list := NewSectionList(uintptr(unsafe.Pointer(&buf[0])), 4)

	list.Add(Section{FileAddr: mem.NewPhysicalAddress(3 * uint64(mem.PageSize)), VirtAddr: mem.NewVirtualAddress(0x3000), NumFilePages: 1, NumMemPages: 1})
	list.Add(Section{FileAddr: 0, VirtAddr: mem.NewVirtualAddress(0x0), NumFilePages: 1, NumMemPages: 1})
	list.Add(Section{FileAddr: mem.NewPhysicalAddress(1 * uint64(mem.PageSize)), VirtAddr: mem.NewVirtualAddress(0x1000), NumFilePages: 1, NumMemPages: 1})

	if list.Len() != 3 {
		t.Fatalf("expected 3 distinct sections; got %d", list.Len())
	}
	for i := 1; i < list.Len(); i++ {
		if list.Get(i-1).VirtAddr >= list.Get(i).VirtAddr {
			t.Errorf("expected sections sorted by virtual address; index %d out of order", i)
		}
	}
}

func TestSectionListAddKeepsAdjacentRunsSeparate(t *testing.T) {
	buf := make([]Section, 4)
	list := NewSectionList(uintptr(unsafe.Pointer(&buf[0])), 4)

	list.Add(Section{FileAddr: 0, VirtAddr: mem.NewVirtualAddress(0), NumFilePages: 1, NumMemPages: 1})
	list.Add(Section{FileAddr: mem.NewPhysicalAddress(uint64(mem.PageSize)), VirtAddr: mem.NewVirtualAddress(uint64(mem.PageSize)), NumFilePages: 1, NumMemPages: 1})

	if list.Len() != 2 {
		t.Fatalf("expected adjacent, non-overlapping sections to stay separate; got %d entries", list.Len())
	}
	if list.Get(0).NumMemPages != 1 {
		t.Errorf("expected first section to still span 1 page; got %d", list.Get(0).NumMemPages)
	}
}

func TestSectionListFullReturnsFalse(t *testing.T) {
	buf := make([]Section, 1)
	list := NewSectionList(uintptr(unsafe.Pointer(&buf[0])), 1)

	list.Add(Section{VirtAddr: mem.NewVirtualAddress(0), NumFilePages: 1, NumMemPages: 1})
	ok, err := list.Add(Section{VirtAddr: mem.NewVirtualAddress(0x10000), NumFilePages: 1, NumMemPages: 1})

	if ok {
		t.Fatal("expected a full, non-mergeable list to reject the new section")
	}
	if err != nil {
		t.Errorf("expected no error for a plain capacity rejection; got %v", err)
	}
}

func TestSectionListAddDetectsMisalignedOverlap(t *testing.T) {
	buf := make([]Section, 4)
	list := NewSectionList(uintptr(unsafe.Pointer(&buf[0])), 4)

	list.Add(Section{FileAddr: 0, VirtAddr: mem.NewVirtualAddress(0x1000), NumFilePages: 2, NumMemPages: 2})
	ok, err := list.Add(Section{FileAddr: mem.NewPhysicalAddress(5 * uint64(mem.PageSize)), VirtAddr: mem.NewVirtualAddress(0x2000), NumFilePages: 2, NumMemPages: 2})

	if ok {
		t.Fatal("expected a misaligned overlap not to be accepted")
	}
	if err != ErrMisalignedElf {
		t.Errorf("expected ErrMisalignedElf; got %v", err)
	}
	if list.Len() != 1 {
		t.Errorf("expected the conflicting section not to be inserted as a second entry; got %d entries", list.Len())
	}
}
