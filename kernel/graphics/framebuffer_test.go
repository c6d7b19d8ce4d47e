package graphics

import "testing"

func newTestFrameBuffer(width, height int) *FrameBuffer {
	return &FrameBuffer{
		pixels: make([]pixel, width*height),
		width:  width,
		height: height,
		stride: width,
	}
}

func TestNewColorDecomposesHexCode(t *testing.T) {
	c := NewColor(0x112233)
	if c.R != 0x11 || c.G != 0x22 || c.B != 0x33 {
		t.Errorf("expected (0x11,0x22,0x33); got (%#x,%#x,%#x)", c.R, c.G, c.B)
	}
}

func TestNewPixelPacksBGRLayout(t *testing.T) {
	p := newPixel(Color{R: 0x11, G: 0x22, B: 0x33})
	if byte(p) != 0x33 {
		t.Errorf("expected blue in the low byte; got 0x%x", byte(p))
	}
	if byte(p>>8) != 0x22 {
		t.Errorf("expected green in the second byte; got 0x%x", byte(p>>8))
	}
	if byte(p>>16) != 0x11 {
		t.Errorf("expected red in the third byte; got 0x%x", byte(p>>16))
	}
}

func TestSetPixelClampsYAgainstHeightNotWidth(t *testing.T) {
	fb := newTestFrameBuffer(100, 10)

	// A y coordinate past height but well within width must clamp to the
	// last row, not silently wrap using the width bound.
	fb.SetPixel(ColorWhite, 5, 50)

	if fb.pixels[9*fb.stride+5] != newPixel(ColorWhite) {
		t.Error("expected y to clamp against height")
	}
}

func TestFillSetsEveryPixel(t *testing.T) {
	fb := newTestFrameBuffer(4, 4)
	fb.Fill(ColorRed)

	want := newPixel(ColorRed)
	for i, p := range fb.pixels {
		if p != want {
			t.Fatalf("pixel %d: expected %#x; got %#x", i, want, p)
		}
	}
}
