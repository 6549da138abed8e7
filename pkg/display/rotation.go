package display

// Rotation is the requested display rotation in degrees.
type Rotation int

const (
	Rotate0 Rotation = iota
	Rotate90
	Rotate180
	Rotate270
)

func (r Rotation) String() string {
	switch r {
	case Rotate0:
		return "0"
	case Rotate90:
		return "90"
	case Rotate180:
		return "180"
	case Rotate270:
		return "270"
	default:
		return "unknown"
	}
}

// Degrees returns the rotation angle.
func (r Rotation) Degrees() int {
	return int(r) * 90
}

// maskBit returns the plane rotation property bit for r.
func (r Rotation) maskBit() uint32 {
	switch r {
	case Rotate90:
		return RotationMask90
	case Rotate180:
		return RotationMask180
	case Rotate270:
		return RotationMask270
	default:
		return RotationMask0
	}
}

// Strategy is the chosen rotation pipeline.
type Strategy int

const (
	// StrategyNone: rotation is 0, scan out directly.
	StrategyNone Strategy = iota
	// StrategyHardware: the plane rotates during scanout.
	StrategyHardware
	// StrategySoftwareShadow: the toolkit renders into shadow buffers
	// and a flush callback rotates into the DRM buffer.
	StrategySoftwareShadow
)

func (s Strategy) String() string {
	switch s {
	case StrategyNone:
		return "none"
	case StrategyHardware:
		return "hardware"
	case StrategySoftwareShadow:
		return "software-shadow"
	default:
		return "unknown"
	}
}

// ChooseStrategy picks the cheapest pipeline the plane supports.
// planeMask is the plane's supported-rotation property bitmask; zero
// means the property is absent (EGL builds expose no rotation API).
func ChooseStrategy(r Rotation, planeMask uint32) Strategy {
	if r == Rotate0 {
		return StrategyNone
	}
	if planeMask&r.maskBit() != 0 {
		return StrategyHardware
	}
	return StrategySoftwareShadow
}

// Rotate90CW copies src (w x h, 32 bpp) into dst rotated 90 degrees
// clockwise. dst must be h x w with dstStride bytes per row. Strides are
// in bytes.
func Rotate90CW(src []byte, w, h, srcStride int, dst []byte, dstStride int) {
	for y := 0; y < h; y++ {
		srcRow := y * srcStride
		// Source row y becomes destination column h-1-y.
		dstCol := (h - 1 - y) * 4
		for x := 0; x < w; x++ {
			s := srcRow + x*4
			d := x*dstStride + dstCol
			copy(dst[d:d+4], src[s:s+4])
		}
	}
}

// Rotate180CW copies src into dst rotated 180 degrees. dst has the same
// dimensions as src.
func Rotate180CW(src []byte, w, h, srcStride int, dst []byte, dstStride int) {
	for y := 0; y < h; y++ {
		srcRow := y * srcStride
		dstRow := (h - 1 - y) * dstStride
		for x := 0; x < w; x++ {
			s := srcRow + x*4
			d := dstRow + (w-1-x)*4
			copy(dst[d:d+4], src[s:s+4])
		}
	}
}

// Rotate270CW copies src into dst rotated 270 degrees clockwise (90
// counter-clockwise). dst must be h x w.
func Rotate270CW(src []byte, w, h, srcStride int, dst []byte, dstStride int) {
	for y := 0; y < h; y++ {
		srcRow := y * srcStride
		dstCol := y * 4
		for x := 0; x < w; x++ {
			s := srcRow + x*4
			d := (w-1-x)*dstStride + dstCol
			copy(dst[d:d+4], src[s:s+4])
		}
	}
}

// RotateInto dispatches to the kernel for r. src is w x h; dst
// dimensions follow the rotation.
func RotateInto(r Rotation, src []byte, w, h, srcStride int, dst []byte, dstStride int) {
	switch r {
	case Rotate90:
		Rotate90CW(src, w, h, srcStride, dst, dstStride)
	case Rotate180:
		Rotate180CW(src, w, h, srcStride, dst, dstStride)
	case Rotate270:
		Rotate270CW(src, w, h, srcStride, dst, dstStride)
	default:
		// Straight copy honoring strides.
		for y := 0; y < h; y++ {
			copy(dst[y*dstStride:y*dstStride+w*4], src[y*srcStride:y*srcStride+w*4])
		}
	}
}
