package mesh

import (
	"testing"
)

func TestFillHLineBoundary(t *testing.T) {
	p := NewPixelBuffer(10, 4)
	red := RGB(255, 0, 0)

	// width <= 0 is a no-op.
	p.FillHLine(2, 1, 0, red)
	p.FillHLine(2, 1, -5, red)
	for x := 0; x < 10; x++ {
		if p.Pixel(x, 1) != 0 {
			t.Fatalf("no-op fill wrote pixel %d", x)
		}
	}

	// Negative x clips from the left.
	p.FillHLine(-3, 0, 5, red)
	if p.Pixel(0, 0) != red || p.Pixel(1, 0) != red {
		t.Error("left-clipped span missing pixels")
	}
	if p.Pixel(2, 0) == red {
		t.Error("left-clipped span too wide")
	}

	// Right edge clips to the buffer.
	p.FillHLine(8, 2, 5, red)
	if p.Pixel(8, 2) != red || p.Pixel(9, 2) != red {
		t.Error("right-clipped span missing pixels")
	}

	// Fully outside: no-op.
	p.FillHLine(0, -1, 5, red)
	p.FillHLine(0, 4, 5, red)
	p.FillHLine(-10, 3, 5, red)
	for x := 0; x < 10; x++ {
		if p.Pixel(x, 3) != 0 {
			t.Errorf("out-of-bounds fill wrote (%d,3)", x)
		}
	}
}

func TestPixelByteOrderBGRA(t *testing.T) {
	p := NewPixelBuffer(2, 1)
	p.SetPixel(0, 0, ARGB(0x11, 0x22, 0x33, 0x44))

	b := p.Bytes()
	if b[0] != 0x44 || b[1] != 0x33 || b[2] != 0x22 || b[3] != 0x11 {
		t.Errorf("byte order = % x, want 44 33 22 11 (B,G,R,A)", b[:4])
	}
}

func TestBlendFormula(t *testing.T) {
	p := NewPixelBuffer(1, 1)
	p.SetPixel(0, 0, RGB(100, 100, 100))

	// (src*a + dst*(255-a) + 127) / 255 with src=200, dst=100, a=128:
	// (200*128 + 100*127 + 127) / 255 = (25600+12700+127)/255 = 150.
	p.BlendPixel(0, 0, ARGB(128, 200, 200, 200))
	got := p.Pixel(0, 0)
	if got.r() != 150 || got.g() != 150 || got.b() != 150 {
		t.Errorf("blended = (%d,%d,%d), want (150,150,150)", got.r(), got.g(), got.b())
	}

	// Opaque source replaces, transparent source is a no-op.
	p.BlendPixel(0, 0, RGB(10, 20, 30))
	if got := p.Pixel(0, 0); got.r() != 10 || got.g() != 20 || got.b() != 30 {
		t.Error("opaque blend did not replace")
	}
	p.BlendPixel(0, 0, ARGB(0, 255, 255, 255))
	if got := p.Pixel(0, 0); got.r() != 10 {
		t.Error("zero-alpha blend changed the pixel")
	}
}

func TestClearFillsEverything(t *testing.T) {
	p := NewPixelBuffer(7, 5)
	c := ARGB(0xFF, 0x12, 0x34, 0x56)
	p.Clear(c)
	for y := 0; y < 5; y++ {
		for x := 0; x < 7; x++ {
			if p.Pixel(x, y) != c {
				t.Fatalf("pixel (%d,%d) = %08x", x, y, p.Pixel(x, y))
			}
		}
	}
}

func TestGradientSegments(t *testing.T) {
	cases := []struct {
		span int
		want int
	}{
		{1, 1}, {2, 1},
		{3, 2}, {19, 2},
		{20, 3}, {49, 3},
		{50, 4}, {500, 4},
	}
	for _, c := range cases {
		if got := gradientSegments(c.span); got != c.want {
			t.Errorf("segments(%d) = %d, want %d", c.span, got, c.want)
		}
	}
}

func TestFillTriangleCoversInterior(t *testing.T) {
	p := NewPixelBuffer(20, 20)
	c := RGB(0, 255, 0)
	p.FillTriangle(2, 2, 17, 2, 2, 17, c)

	// A point well inside the triangle.
	if p.Pixel(5, 5) != c {
		t.Error("interior pixel not filled")
	}
	// The right-angle corner region outside the hypotenuse stays empty.
	if p.Pixel(16, 16) == c {
		t.Error("pixel outside triangle filled")
	}
}

func TestFillTriangleGradientInterpolates(t *testing.T) {
	p := NewPixelBuffer(60, 60)
	black := RGB(0, 0, 0)
	white := RGB(255, 255, 255)

	p.FillTriangleGradient(0, 0, black, 59, 0, white, 0, 59, black)

	left := p.Pixel(2, 1)
	right := p.Pixel(57, 1)
	if left.r() > 80 {
		t.Errorf("left edge too bright: %d", left.r())
	}
	if right.r() < 175 {
		t.Errorf("right edge too dark: %d", right.r())
	}
}

func TestDrawLineEndpoints(t *testing.T) {
	p := NewPixelBuffer(10, 10)
	c := RGB(255, 255, 0)
	p.DrawLine(1, 1, 8, 6, c)

	if p.Pixel(1, 1) != c || p.Pixel(8, 6) != c {
		t.Error("line endpoints not drawn")
	}
	// Out-of-bounds lines must not panic.
	p.DrawLine(-5, -5, 15, 15, c)
}

func TestLerpColor(t *testing.T) {
	a := RGB(0, 0, 0)
	b := RGB(200, 100, 50)

	if lerpColor(a, b, 0) != a {
		t.Error("t=0 not endpoint a")
	}
	if lerpColor(a, b, 1) != b {
		t.Error("t=1 not endpoint b")
	}
	mid := lerpColor(a, b, 0.5)
	if mid.r() != 100 || mid.g() != 50 || mid.b() != 25 {
		t.Errorf("midpoint = (%d,%d,%d)", mid.r(), mid.g(), mid.b())
	}
}
