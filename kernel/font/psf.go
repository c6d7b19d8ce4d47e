// Package font parses PC Screen Font v1 (PSF1) glyph tables and rasterizes
// them onto a graphics framebuffer.
package font

import (
	"reflect"
	"unsafe"

	"boot64/kernel"
)

// headerMagic is the two-byte PSF1 magic number.
var headerMagic = [2]byte{0x36, 0x04}

// glyphTableOffset is the number of header bytes preceding the glyph
// table: two magic bytes, one mode byte, one glyph-height byte.
const glyphTableOffset = 4

// glyphCount is the fixed number of glyphs a PSF1 font encodes, one per
// possible byte value.
const glyphCount = 256

// ErrInvalidHeader is returned by Load when the font data does not begin
// with the PSF1 magic number.
var ErrInvalidHeader = &kernel.Error{Module: "font", Message: "invalid PSF font header"}

// Font is a loaded PSF1 glyph table: glyphCount fixed-width, fixed-height
// monochrome bitmaps, one bit per pixel, most-significant bit leftmost.
type Font struct {
	data        []byte
	glyphHeight int
}

// Load validates and wraps raw PSF1 font file bytes addressed at addr,
// spanning size bytes.
func Load(addr uintptr, size uint64) (*Font, *kernel.Error) {
	var data []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&data))
	hdr.Data = addr
	hdr.Len = int(size)
	hdr.Cap = int(size)

	if size < glyphTableOffset || data[0] != headerMagic[0] || data[1] != headerMagic[1] {
		return nil, ErrInvalidHeader
	}

	return &Font{data: data, glyphHeight: int(data[3])}, nil
}

// GlyphHeight returns the height, in pixels, of every glyph.
func (f *Font) GlyphHeight() int { return f.glyphHeight }

// glyphWidth is fixed at 8 pixels for PSF1 fonts: one bit per column.
const glyphWidth = 8

// Glyph returns the raw row bytes for the glyph encoding b. Each byte is
// one row, most-significant bit leftmost.
func (f *Font) Glyph(b byte) []byte {
	start := glyphTableOffset + int(b)*f.glyphHeight
	return f.data[start : start+f.glyphHeight]
}
