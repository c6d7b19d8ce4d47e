package font

import "boot64/kernel/graphics"

// DefaultScale is the pixel-doubling factor applied to every glyph, so an
// 8x16 PSF1 glyph occupies 16x32 screen pixels.
const DefaultScale = 2

// Renderer draws glyphs from a Font onto a graphics.FrameBuffer at a given
// scale and foreground/background color.
type Renderer struct {
	font       *Font
	fb         *graphics.FrameBuffer
	scale      int
	Foreground graphics.Color
	Background graphics.Color
}

// NewRenderer constructs a Renderer drawing f's glyphs onto fb at
// DefaultScale, in the conventional green-on-black boot console palette.
func NewRenderer(f *Font, fb *graphics.FrameBuffer) *Renderer {
	return &Renderer{
		font:       f,
		fb:         fb,
		scale:      DefaultScale,
		Foreground: graphics.ColorGreen,
		Background: graphics.ColorBlack,
	}
}

// GlyphWidth returns the on-screen width, in pixels, of one glyph at the
// renderer's current scale.
func (r *Renderer) GlyphWidth() int { return glyphWidth * r.scale }

// GlyphHeight returns the on-screen height, in pixels, of one glyph at
// the renderer's current scale.
func (r *Renderer) GlyphHeight() int { return r.font.GlyphHeight() * r.scale }

// DrawGlyph draws the glyph for b with its top-left corner at (x, y),
// scaling each source pixel into an rxr block of screen pixels.
func (r *Renderer) DrawGlyph(b byte, x, y int) {
	rows := r.font.Glyph(b)
	for row, rowBits := range rows {
		for col := 0; col < glyphWidth; col++ {
			color := r.Background
			if rowBits&(1<<(7-col)) != 0 {
				color = r.Foreground
			}

			for sy := 0; sy < r.scale; sy++ {
				for sx := 0; sx < r.scale; sx++ {
					r.fb.SetPixel(color, x+col*r.scale+sx, y+row*r.scale+sy)
				}
			}
		}
	}
}
