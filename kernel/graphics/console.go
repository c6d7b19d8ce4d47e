package graphics

// Console is a line-oriented text console drawn onto a FrameBuffer by a
// glyph-drawing callback. It tracks a cursor in glyph cells, wraps at the
// right edge before drawing the glyph that would overflow it, and scrolls
// by resetting to the top once it runs out of rows.
type Console struct {
	fb *FrameBuffer

	glyphWidth  int
	glyphHeight int

	cols, rows int
	col, row   int

	draw func(b byte, x, y int)
}

// NewConsole constructs a Console over fb, laying out glyphWidth x
// glyphHeight cells and invoking draw to render each one.
func NewConsole(fb *FrameBuffer, glyphWidth, glyphHeight int, draw func(b byte, x, y int)) *Console {
	return &Console{
		fb:          fb,
		glyphWidth:  glyphWidth,
		glyphHeight: glyphHeight,
		cols:        fb.Width() / glyphWidth,
		rows:        fb.Height() / glyphHeight,
		draw:        draw,
	}
}

// WriteByte writes a single byte, advancing the cursor. '\n' moves to the
// start of the next row, '\r' returns to the start of the current row,
// and any other byte wraps to the next row first if the cursor has
// reached the right edge, then draws as a glyph at the current cell and
// advances the column. It always succeeds; the error return exists only
// to satisfy io.ByteWriter.
func (c *Console) WriteByte(b byte) error {
	switch b {
	case '\n':
		c.newline()
	case '\r':
		c.col = 0
	default:
		if c.col >= c.cols {
			c.newline()
		}
		c.draw(b, c.col*c.glyphWidth, c.row*c.glyphHeight)
		c.col++
	}
	return nil
}

// Write writes every byte of p in order and returns len(p), nil,
// satisfying io.Writer.
func (c *Console) Write(p []byte) (int, error) {
	for _, b := range p {
		_ = c.WriteByte(b)
	}
	return len(p), nil
}

func (c *Console) newline() {
	c.col = 0
	c.row++
	if c.row >= c.rows {
		c.row = 0
	}
}
