package graphics

import (
	"reflect"
	"unsafe"

	"boot64/kernel"
	"boot64/kernel/bootinfo"
)

// ErrUnsupportedPixelFormat is returned by FromBootInfo when the
// firmware reported a graphics mode this renderer cannot draw to. Only
// 32-bit BGR (blue in the lowest byte, green, red, then an unused high
// byte) is supported.
var ErrUnsupportedPixelFormat = &kernel.Error{Module: "graphics", Message: "unsupported framebuffer pixel format"}

// pixel is one 32-bit BGR framebuffer pixel: blue in the low byte, then
// green, then red, with the high byte unused. Packing red into the
// highest of the three color bytes and blue into the lowest, as done
// here, is what yields that little-endian in-memory byte order.
type pixel uint32

func newPixel(c Color) pixel {
	return pixel(uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B))
}

// FrameBuffer is a drawable view over a mapped linear framebuffer.
type FrameBuffer struct {
	pixels []pixel
	width  int
	height int
	stride int
}

// FromBootInfo constructs a FrameBuffer over the framebuffer BootInfo
// describes, given the virtual address it has already been mapped to.
// The caller is responsible for ensuring virtAddr actually maps
// info.BaseAddress for info.BufferSize bytes before any pixel is drawn.
func FromBootInfo(info *bootinfo.FrameBuffer, virtAddr uintptr) (*FrameBuffer, *kernel.Error) {
	if info.Format != bootinfo.PixelFormatBGR {
		return nil, ErrUnsupportedPixelFormat
	}

	pixelCount := info.BufferSize / 4

	var pixels []pixel
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&pixels))
	hdr.Data = virtAddr
	hdr.Len = int(pixelCount)
	hdr.Cap = int(pixelCount)

	return &FrameBuffer{
		pixels: pixels,
		width:  int(info.Width),
		height: int(info.Height),
		stride: int(info.PixelsPerScanLine),
	}, nil
}

// Width returns the framebuffer's width in pixels.
func (f *FrameBuffer) Width() int { return f.width }

// Height returns the framebuffer's height in pixels.
func (f *FrameBuffer) Height() int { return f.height }

// SetPixel draws color at (x, y), clamping both coordinates to the
// framebuffer's bounds so an out-of-range caller cannot write outside the
// mapped region.
func (f *FrameBuffer) SetPixel(color Color, x, y int) {
	if x >= f.width {
		x = f.width - 1
	}
	if y >= f.height {
		y = f.height - 1
	}
	f.pixels[y*f.stride+x] = newPixel(color)
}

// Fill sets every pixel in the framebuffer to color.
func (f *FrameBuffer) Fill(color Color) {
	for y := 0; y < f.height; y++ {
		for x := 0; x < f.width; x++ {
			f.SetPixel(color, x, y)
		}
	}
}
