package mesh

import (
	"math"
	"sort"
)

// Vec3 is a point in printer coordinates (mm).
type Vec3 struct {
	X, Y, Z float64
}

// Gradient maps a height to a color by linear interpolation between
// evenly-spaced stops.
type Gradient struct {
	stops []Color
}

// NewGradient creates a gradient over the given stops. At least two are
// required; fewer fall back to a blue-green-red default.
func NewGradient(stops ...Color) *Gradient {
	if len(stops) < 2 {
		stops = []Color{RGB(0x20, 0x50, 0xE0), RGB(0x30, 0xD0, 0x60), RGB(0xE0, 0x40, 0x30)}
	}
	return &Gradient{stops: stops}
}

// Sample returns the color at t in [0,1].
func (g *Gradient) Sample(t float64) Color {
	if t <= 0 {
		return g.stops[0]
	}
	if t >= 1 {
		return g.stops[len(g.stops)-1]
	}
	scaled := t * float64(len(g.stops)-1)
	i := int(scaled)
	return lerpColor(g.stops[i], g.stops[i+1], scaled-float64(i))
}

// Grid is the probe-point input: Z values in mm plus bed extents.
type Grid struct {
	Z                      [][]float64
	MinX, MaxX, MinY, MaxY float64
}

// Rows returns the number of probe rows.
func (g *Grid) Rows() int { return len(g.Z) }

// Cols returns the number of probe columns.
func (g *Grid) Cols() int {
	if len(g.Z) == 0 {
		return 0
	}
	return len(g.Z[0])
}

// ZRange returns the min and max probed heights.
func (g *Grid) ZRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range g.Z {
		for _, z := range row {
			if z < lo {
				lo = z
			}
			if z > hi {
				hi = z
			}
		}
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// Quad is one mesh cell after projection: four screen-space vertices,
// four vertex colors, and the average rotated depth for painter's-
// algorithm sorting.
type Quad struct {
	X        [4]int
	Y        [4]int
	C        [4]Color
	AvgDepth float64
}

// Camera holds the view transform: tilt around X, spin around Z, and a
// weak-perspective projection onto the canvas.
type Camera struct {
	TiltX float64 // radians
	SpinZ float64 // radians

	// Canvas size and world scale.
	Width, Height int
	Scale         float64
	ZExaggeration float64
}

// project rotates a world point and maps it to screen coordinates,
// returning the rotated depth.
func (c *Camera) project(v Vec3, center Vec3) (sx, sy int, depth float64) {
	// Center the bed on the origin.
	x := v.X - center.X
	y := v.Y - center.Y
	z := (v.Z - center.Z) * c.ZExaggeration

	// Spin around Z.
	sinS, cosS := math.Sin(c.SpinZ), math.Cos(c.SpinZ)
	x, y = x*cosS-y*sinS, x*sinS+y*cosS

	// Tilt around X.
	sinT, cosT := math.Sin(c.TiltX), math.Cos(c.TiltX)
	y, z = y*cosT-z*sinT, y*sinT+z*cosT

	// Weak perspective: scale shrinks slightly with depth.
	persp := 1.0 / (1.0 + z*0.0008)
	sx = c.Width/2 + int(x*c.Scale*persp)
	sy = c.Height/2 - int(y*c.Scale*persp)
	return sx, sy, z
}

// BuildQuads produces projected, depth-sorted quads for the grid. Quads
// are ordered far-to-near so rasterization can paint back-to-front.
func BuildQuads(grid *Grid, cam *Camera, grad *Gradient, out []Quad) []Quad {
	rows, cols := grid.Rows(), grid.Cols()
	if rows < 2 || cols < 2 {
		return out[:0]
	}

	zLo, zHi := grid.ZRange()
	zSpan := zHi - zLo
	if zSpan <= 0 {
		zSpan = 1
	}

	center := Vec3{
		X: (grid.MinX + grid.MaxX) / 2,
		Y: (grid.MinY + grid.MaxY) / 2,
		Z: (zLo + zHi) / 2,
	}

	// coord = min + (i / max_i) * (max - min)
	worldX := func(col int) float64 {
		return grid.MinX + float64(col)/float64(cols-1)*(grid.MaxX-grid.MinX)
	}
	worldY := func(row int) float64 {
		return grid.MinY + float64(row)/float64(rows-1)*(grid.MaxY-grid.MinY)
	}

	out = out[:0]
	for r := 0; r < rows-1; r++ {
		for cidx := 0; cidx < cols-1; cidx++ {
			corners := [4]Vec3{
				{worldX(cidx), worldY(r), grid.Z[r][cidx]},
				{worldX(cidx + 1), worldY(r), grid.Z[r][cidx+1]},
				{worldX(cidx + 1), worldY(r + 1), grid.Z[r+1][cidx+1]},
				{worldX(cidx), worldY(r + 1), grid.Z[r+1][cidx]},
			}

			var q Quad
			var depthSum float64
			for i, v := range corners {
				sx, sy, d := cam.project(v, center)
				q.X[i], q.Y[i] = sx, sy
				q.C[i] = grad.Sample((v.Z - zLo) / zSpan)
				depthSum += d
			}
			q.AvgDepth = depthSum / 4
			out = append(out, q)
		}
	}

	// Painter's algorithm: most distant first. Depth grows toward the
	// viewer after the tilt, so ascending depth is far-to-near.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AvgDepth < out[j].AvgDepth
	})
	return out
}
