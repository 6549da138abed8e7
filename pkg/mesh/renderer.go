package mesh

import (
	"helixscreen/pkg/errors"
)

// RenderMode selects quad shading.
type RenderMode int

const (
	// ModeGradient interpolates per-vertex colors across each quad.
	ModeGradient RenderMode = iota
	// ModeSolid fills each quad with its average color. Used while
	// dragging when gradient rendering falls behind.
	ModeSolid
)

var (
	backgroundColor = ARGB(0xFF, 0x10, 0x12, 0x16)
	floorGridColor  = ARGB(0xFF, 0x2A, 0x2E, 0x36)
	wallGridColor   = ARGB(0xFF, 0x22, 0x26, 0x2E)
	wireframeColor  = ARGB(0xFF, 0x00, 0x00, 0x00)
)

// Renderer rasterizes one frame of the mesh view. It is not safe for
// concurrent use; the render worker owns one instance.
type Renderer struct {
	Mode      RenderMode
	Wireframe bool

	grad  *Gradient
	quads []Quad // scratch, reused across frames
}

// NewRenderer creates a renderer with the given gradient.
func NewRenderer(grad *Gradient) *Renderer {
	if grad == nil {
		grad = NewGradient()
	}
	return &Renderer{grad: grad, Wireframe: true}
}

// Render draws the grid into buf with the camera view.
func (r *Renderer) Render(buf *PixelBuffer, grid *Grid, cam *Camera) error {
	if buf.Width() == 0 || buf.Height() == 0 {
		return errors.RenderError("zero-sized buffer")
	}
	if grid == nil || grid.Rows() < 2 || grid.Cols() < 2 {
		return errors.RenderError("mesh grid needs at least 2x2 probe points")
	}

	buf.Clear(backgroundColor)

	// Reference grids first so the surface occludes them.
	r.drawFloorGrid(buf, grid, cam)
	r.drawWallGrid(buf, grid, cam)

	r.quads = BuildQuads(grid, cam, r.grad, r.quads)
	for i := range r.quads {
		q := &r.quads[i]
		if r.Mode == ModeSolid {
			c := averageColor(q.C)
			buf.FillTriangle(q.X[0], q.Y[0], q.X[1], q.Y[1], q.X[2], q.Y[2], c)
			buf.FillTriangle(q.X[0], q.Y[0], q.X[2], q.Y[2], q.X[3], q.Y[3], c)
		} else {
			buf.FillTriangleGradient(
				q.X[0], q.Y[0], q.C[0],
				q.X[1], q.Y[1], q.C[1],
				q.X[2], q.Y[2], q.C[2])
			buf.FillTriangleGradient(
				q.X[0], q.Y[0], q.C[0],
				q.X[2], q.Y[2], q.C[2],
				q.X[3], q.Y[3], q.C[3])
		}
	}

	if r.Wireframe {
		for i := range r.quads {
			q := &r.quads[i]
			for v := 0; v < 4; v++ {
				n := (v + 1) % 4
				buf.DrawLine(q.X[v], q.Y[v], q.X[n], q.Y[n], wireframeColor)
			}
		}
	}
	return nil
}

// drawFloorGrid projects a flat reference grid at the lowest probed
// height.
func (r *Renderer) drawFloorGrid(buf *PixelBuffer, grid *Grid, cam *Camera) {
	zLo, zHi := grid.ZRange()
	center := Vec3{
		X: (grid.MinX + grid.MaxX) / 2,
		Y: (grid.MinY + grid.MaxY) / 2,
		Z: (zLo + zHi) / 2,
	}
	const lines = 8
	floorZ := zLo - (zHi-zLo)*0.5

	for i := 0; i <= lines; i++ {
		fx := grid.MinX + float64(i)/lines*(grid.MaxX-grid.MinX)
		x0, y0, _ := cam.project(Vec3{fx, grid.MinY, floorZ}, center)
		x1, y1, _ := cam.project(Vec3{fx, grid.MaxY, floorZ}, center)
		buf.DrawLine(x0, y0, x1, y1, floorGridColor)

		fy := grid.MinY + float64(i)/lines*(grid.MaxY-grid.MinY)
		x0, y0, _ = cam.project(Vec3{grid.MinX, fy, floorZ}, center)
		x1, y1, _ = cam.project(Vec3{grid.MaxX, fy, floorZ}, center)
		buf.DrawLine(x0, y0, x1, y1, floorGridColor)
	}
}

// drawWallGrid draws vertical reference lines on the far walls.
func (r *Renderer) drawWallGrid(buf *PixelBuffer, grid *Grid, cam *Camera) {
	zLo, zHi := grid.ZRange()
	center := Vec3{
		X: (grid.MinX + grid.MaxX) / 2,
		Y: (grid.MinY + grid.MaxY) / 2,
		Z: (zLo + zHi) / 2,
	}
	floorZ := zLo - (zHi-zLo)*0.5
	topZ := zHi + (zHi-zLo)*0.5
	const lines = 4

	for i := 0; i <= lines; i++ {
		z := floorZ + float64(i)/lines*(topZ-floorZ)
		x0, y0, _ := cam.project(Vec3{grid.MinX, grid.MaxY, z}, center)
		x1, y1, _ := cam.project(Vec3{grid.MaxX, grid.MaxY, z}, center)
		buf.DrawLine(x0, y0, x1, y1, wallGridColor)

		x0, y0, _ = cam.project(Vec3{grid.MinX, grid.MinY, z}, center)
		x1, y1, _ = cam.project(Vec3{grid.MinX, grid.MaxY, z}, center)
		buf.DrawLine(x0, y0, x1, y1, wallGridColor)
	}
}

func averageColor(c [4]Color) Color {
	var a, r, g, b uint32
	for _, x := range c {
		a += uint32(x.a())
		r += uint32(x.r())
		g += uint32(x.g())
		b += uint32(x.b())
	}
	return ARGB(uint8(a/4), uint8(r/4), uint8(g/4), uint8(b/4))
}
