package bitmap

import (
	"testing"
	"unsafe"
)

func newTestBitmap(numBits uint64) (Bitmap, []byte) {
	buf := make([]byte, ByteSize(numBits))
	bm := New(uintptr(unsafe.Pointer(&buf[0])), numBits)
	return bm, buf
}

func TestBitmapGetSet(t *testing.T) {
	bm, _ := newTestBitmap(64)

	for i := uint64(0); i < 8*8; i++ {
		if bm.Get(i) {
			t.Fatalf("expected bit %d to be initially unset", i)
		}
	}

	bm.Set(3, true)
	if !bm.Get(3) {
		t.Error("expected bit 3 to be set")
	}

	// Setting bit 3 must not affect any other bit in the same byte.
	for i := uint64(0); i < 8; i++ {
		if i == 3 {
			continue
		}
		if bm.Get(i) {
			t.Errorf("expected bit %d to remain unset after setting bit 3", i)
		}
	}

	bm.Set(3, false)
	if bm.Get(3) {
		t.Error("expected bit 3 to be cleared")
	}
}

func TestBitmapMSBFirst(t *testing.T) {
	bm, buf := newTestBitmap(8)

	bm.Set(0, true)
	if buf[0] != 0x80 {
		t.Errorf("expected bit 0 to map to the MSB (0x80); got 0x%x", buf[0])
	}

	bm.Set(0, false)
	bm.Set(7, true)
	if buf[0] != 0x01 {
		t.Errorf("expected bit 7 to map to the LSB (0x01); got 0x%x", buf[0])
	}
}

func TestBitmapOutOfRange(t *testing.T) {
	bm, _ := newTestBitmap(8)

	if bm.Get(100) {
		t.Error("expected out-of-range Get to return false")
	}

	// Out-of-range Set must not panic and must not touch the buffer.
	bm.Set(100, true)
}

func TestBitmapFill(t *testing.T) {
	bm, buf := newTestBitmap(16)

	bm.Fill(true)
	for _, b := range buf {
		if b != 0xFF {
			t.Fatalf("expected all bytes to be 0xFF after Fill(true); got 0x%x", b)
		}
	}

	bm.Fill(false)
	for _, b := range buf {
		if b != 0x00 {
			t.Fatalf("expected all bytes to be 0x00 after Fill(false); got 0x%x", b)
		}
	}
}

func TestBitmapByteSize(t *testing.T) {
	specs := []struct {
		numBits uint64
		want    uint64
	}{
		{0, 0},
		{1, 1},
		{8, 1},
		{9, 2},
		{64, 8},
		{65, 9},
	}

	for _, spec := range specs {
		if got := ByteSize(spec.numBits); got != spec.want {
			t.Errorf("ByteSize(%d): expected %d; got %d", spec.numBits, spec.want, got)
		}
	}
}
