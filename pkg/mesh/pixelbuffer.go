// Package mesh renders a 3D perspective view of a bed probe grid into an
// off-screen pixel buffer, with a worker goroutine double-buffering the
// output for the UI to blit.
package mesh

// Color is a 32-bit ARGB color (0xAARRGGBB).
type Color uint32

// ARGB builds a color from components.
func ARGB(a, r, g, b uint8) Color {
	return Color(uint32(a)<<24 | uint32(r)<<16 | uint32(g)<<8 | uint32(b))
}

// RGB builds an opaque color.
func RGB(r, g, b uint8) Color {
	return ARGB(0xFF, r, g, b)
}

func (c Color) a() uint8 { return uint8(c >> 24) }
func (c Color) r() uint8 { return uint8(c >> 16) }
func (c Color) g() uint8 { return uint8(c >> 8) }
func (c Color) b() uint8 { return uint8(c) }

// PixelBuffer is a width x height ARGB8888 surface. Byte order in memory
// is B,G,R,A (little-endian ARGB), stride 4*width, matching the display
// toolkit's buffer layout so blits are a straight copy.
type PixelBuffer struct {
	w, h int
	pix  []byte
}

// NewPixelBuffer allocates a zeroed buffer.
func NewPixelBuffer(w, h int) *PixelBuffer {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &PixelBuffer{w: w, h: h, pix: make([]byte, w*h*4)}
}

// Width returns the buffer width in pixels.
func (p *PixelBuffer) Width() int { return p.w }

// Height returns the buffer height in pixels.
func (p *PixelBuffer) Height() int { return p.h }

// Bytes returns the raw pixel storage.
func (p *PixelBuffer) Bytes() []byte { return p.pix }

// Clear fills the whole buffer with c.
func (p *PixelBuffer) Clear(c Color) {
	if len(p.pix) == 0 {
		return
	}
	b, g, r, a := c.b(), c.g(), c.r(), c.a()
	p.pix[0], p.pix[1], p.pix[2], p.pix[3] = b, g, r, a
	// Double the initialized prefix until the buffer is full.
	for filled := 4; filled < len(p.pix); filled *= 2 {
		copy(p.pix[filled:], p.pix[:filled])
	}
}

// SetPixel writes c at (x, y) without blending. Out-of-bounds is a no-op.
func (p *PixelBuffer) SetPixel(x, y int, c Color) {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return
	}
	o := (y*p.w + x) * 4
	p.pix[o] = c.b()
	p.pix[o+1] = c.g()
	p.pix[o+2] = c.r()
	p.pix[o+3] = c.a()
}

// Pixel reads the color at (x, y). Out-of-bounds reads return 0.
func (p *PixelBuffer) Pixel(x, y int) Color {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return 0
	}
	o := (y*p.w + x) * 4
	return ARGB(p.pix[o+3], p.pix[o+2], p.pix[o+1], p.pix[o])
}

// blend applies dst = (src*a + dst*(255-a) + 127) / 255 per channel.
func blend(src, dst, alpha uint8) uint8 {
	return uint8((uint32(src)*uint32(alpha) + uint32(dst)*uint32(255-alpha) + 127) / 255)
}

// BlendPixel alpha-blends c over the pixel at (x, y).
func (p *PixelBuffer) BlendPixel(x, y int, c Color) {
	if x < 0 || y < 0 || x >= p.w || y >= p.h {
		return
	}
	a := c.a()
	if a == 0xFF {
		p.SetPixel(x, y, c)
		return
	}
	if a == 0 {
		return
	}
	o := (y*p.w + x) * 4
	p.pix[o] = blend(c.b(), p.pix[o], a)
	p.pix[o+1] = blend(c.g(), p.pix[o+1], a)
	p.pix[o+2] = blend(c.r(), p.pix[o+2], a)
	p.pix[o+3] = 0xFF
}

// FillHLine draws a horizontal span starting at (x, y). A width <= 0 is
// a no-op; a negative x clips from the left; the right edge clips to the
// buffer.
func (p *PixelBuffer) FillHLine(x, y, width int, c Color) {
	if width <= 0 || y < 0 || y >= p.h {
		return
	}
	if x < 0 {
		width += x
		x = 0
	}
	if x+width > p.w {
		width = p.w - x
	}
	if width <= 0 {
		return
	}
	b, g, r, a := c.b(), c.g(), c.r(), c.a()
	o := (y*p.w + x) * 4
	for i := 0; i < width; i++ {
		p.pix[o] = b
		p.pix[o+1] = g
		p.pix[o+2] = r
		p.pix[o+3] = a
		o += 4
	}
}

// DrawLine draws a 1 px line with Bresenham's algorithm.
func (p *PixelBuffer) DrawLine(x0, y0, x1, y1 int, c Color) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy

	for {
		p.SetPixel(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// FillTriangle rasterizes a solid triangle with horizontal scanlines.
func (p *PixelBuffer) FillTriangle(x0, y0, x1, y1, x2, y2 int, c Color) {
	// Sort vertices by y.
	if y0 > y1 {
		x0, y0, x1, y1 = x1, y1, x0, y0
	}
	if y0 > y2 {
		x0, y0, x2, y2 = x2, y2, x0, y0
	}
	if y1 > y2 {
		x1, y1, x2, y2 = x2, y2, x1, y1
	}
	if y2 == y0 {
		// Degenerate: all on one scanline.
		minX, maxX := min3(x0, x1, x2), max3(x0, x1, x2)
		p.FillHLine(minX, y0, maxX-minX+1, c)
		return
	}

	for y := y0; y <= y2; y++ {
		// Long edge x at this scanline.
		xa := x0 + (x2-x0)*(y-y0)/(y2-y0)
		// Short edge x.
		var xb int
		if y < y1 {
			if y1 == y0 {
				xb = x1
			} else {
				xb = x0 + (x1-x0)*(y-y0)/(y1-y0)
			}
		} else {
			if y2 == y1 {
				xb = x1
			} else {
				xb = x1 + (x2-x1)*(y-y1)/(y2-y1)
			}
		}
		if xa > xb {
			xa, xb = xb, xa
		}
		p.FillHLine(xa, y, xb-xa+1, c)
	}
}

// gradientSegments picks the horizontal interpolation granularity for a
// scanline span. Narrow spans get fewer color samples.
func gradientSegments(span int) int {
	switch {
	case span < 3:
		return 1
	case span < 20:
		return 2
	case span < 50:
		return 3
	default:
		return 4
	}
}

// FillTriangleGradient rasterizes a triangle interpolating per-vertex
// colors. Colors interpolate linearly along the edges; each scanline is
// split into adaptive segments, each filled with the color sampled at
// its midpoint.
func (p *PixelBuffer) FillTriangleGradient(x0, y0 int, c0 Color, x1, y1 int, c1 Color, x2, y2 int, c2 Color) {
	if y0 > y1 {
		x0, y0, c0, x1, y1, c1 = x1, y1, c1, x0, y0, c0
	}
	if y0 > y2 {
		x0, y0, c0, x2, y2, c2 = x2, y2, c2, x0, y0, c0
	}
	if y1 > y2 {
		x1, y1, c1, x2, y2, c2 = x2, y2, c2, x1, y1, c1
	}
	if y2 == y0 {
		minX, maxX := min3(x0, x1, x2), max3(x0, x1, x2)
		p.FillHLine(minX, y0, maxX-minX+1, lerpColor(c0, c2, 0.5))
		return
	}

	for y := y0; y <= y2; y++ {
		ta := float64(y-y0) / float64(y2-y0)
		xa := x0 + int(float64(x2-x0)*ta)
		ca := lerpColor(c0, c2, ta)

		var xb int
		var cb Color
		if y < y1 {
			if y1 == y0 {
				xb, cb = x1, c1
			} else {
				tb := float64(y-y0) / float64(y1-y0)
				xb = x0 + int(float64(x1-x0)*tb)
				cb = lerpColor(c0, c1, tb)
			}
		} else {
			if y2 == y1 {
				xb, cb = x1, c1
			} else {
				tb := float64(y-y1) / float64(y2-y1)
				xb = x1 + int(float64(x2-x1)*tb)
				cb = lerpColor(c1, c2, tb)
			}
		}
		if xa > xb {
			xa, xb = xb, xa
			ca, cb = cb, ca
		}

		span := xb - xa + 1
		segs := gradientSegments(span)
		segW := span / segs
		x := xa
		for s := 0; s < segs; s++ {
			w := segW
			if s == segs-1 {
				w = xb - x + 1
			}
			// Sample the segment color at its midpoint.
			mid := (float64(x) + float64(w)/2 - float64(xa)) / float64(span)
			p.FillHLine(x, y, w, lerpColor(ca, cb, mid))
			x += w
		}
	}
}

// lerpColor interpolates per channel; t is clamped to [0,1].
func lerpColor(a, b Color, t float64) Color {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + (float64(y)-float64(x))*t + 0.5)
	}
	return ARGB(lerp(a.a(), b.a()), lerp(a.r(), b.r()), lerp(a.g(), b.g()), lerp(a.b(), b.b()))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func max3(a, b, c int) int {
	if b > a {
		a = b
	}
	if c > a {
		a = c
	}
	return a
}
