package display

import (
	"unsafe"
)

// Plane property plumbing for the rotation capability query.

const (
	drmIoctlSetClientCap        = 0x4010640D
	drmIoctlModeGetPlaneRes     = 0xC00864B5
	drmIoctlModeGetPlane        = 0xC02064B6
	drmIoctlModeObjGetProps     = 0xC02064B9
	drmIoctlModeGetProperty     = 0xC04064AA
	drmClientCapUniversalPlanes = 2
	drmModeObjectPlane          = 0xeeeeeeee
)

type drmSetClientCap struct {
	capability uint64
	value      uint64
}

type drmModeGetPlaneRes struct {
	planeIDPtr  uint64
	countPlanes uint32
	pad         uint32
}

type drmModeObjGetProperties struct {
	propsPtr      uint64
	propValuesPtr uint64
	countProps    uint32
	objID         uint32
	objType       uint32
	pad           uint32
}

type drmModeGetProperty struct {
	valuesPtr      uint64
	enumBlobPtr    uint64
	propID         uint32
	flags          uint32
	name           [32]byte
	countValues    uint32
	countEnumBlobs uint32
}

type drmModePropertyEnum struct {
	value uint64
	name  [32]byte
}

// PlaneRotationMask queries the supported rotation bits of the device's
// planes. Returns RotationMask0 when no plane exposes a rotation
// property (EGL builds, simple pipelines): only the identity rotation is
// guaranteed.
func (d *Device) PlaneRotationMask() uint32 {
	cap := drmSetClientCap{capability: drmClientCapUniversalPlanes, value: 1}
	if err := ioctl(d.fd, drmIoctlSetClientCap, unsafe.Pointer(&cap)); err != nil {
		return RotationMask0
	}

	var res drmModeGetPlaneRes
	if err := ioctl(d.fd, drmIoctlModeGetPlaneRes, unsafe.Pointer(&res)); err != nil || res.countPlanes == 0 {
		return RotationMask0
	}
	planeIDs := make([]uint32, res.countPlanes)
	res.planeIDPtr = uint64(uintptr(unsafe.Pointer(&planeIDs[0])))
	if err := ioctl(d.fd, drmIoctlModeGetPlaneRes, unsafe.Pointer(&res)); err != nil {
		return RotationMask0
	}

	mask := uint32(0)
	for _, id := range planeIDs {
		mask |= d.planeRotation(id)
	}
	if mask == 0 {
		return RotationMask0
	}
	return mask
}

// planeRotation returns the rotation bitmask of one plane, or 0.
func (d *Device) planeRotation(planeID uint32) uint32 {
	props := drmModeObjGetProperties{objID: planeID, objType: drmModeObjectPlane}
	if err := ioctl(d.fd, drmIoctlModeObjGetProps, unsafe.Pointer(&props)); err != nil || props.countProps == 0 {
		return 0
	}
	ids := make([]uint32, props.countProps)
	vals := make([]uint64, props.countProps)
	props.propsPtr = uint64(uintptr(unsafe.Pointer(&ids[0])))
	props.propValuesPtr = uint64(uintptr(unsafe.Pointer(&vals[0])))
	if err := ioctl(d.fd, drmIoctlModeObjGetProps, unsafe.Pointer(&props)); err != nil {
		return 0
	}

	for _, propID := range ids {
		prop := drmModeGetProperty{propID: propID}
		if err := ioctl(d.fd, drmIoctlModeGetProperty, unsafe.Pointer(&prop)); err != nil {
			continue
		}
		if cString(prop.name[:]) != "rotation" || prop.countEnumBlobs == 0 {
			continue
		}

		// Bitmask property: supported mask is the OR of 1<<value over
		// the advertised enum entries.
		enums := make([]drmModePropertyEnum, prop.countEnumBlobs)
		prop.enumBlobPtr = uint64(uintptr(unsafe.Pointer(&enums[0])))
		if prop.countValues > 0 {
			values := make([]uint64, prop.countValues)
			prop.valuesPtr = uint64(uintptr(unsafe.Pointer(&values[0])))
		}
		if err := ioctl(d.fd, drmIoctlModeGetProperty, unsafe.Pointer(&prop)); err != nil {
			continue
		}
		mask := uint32(0)
		for _, e := range enums {
			mask |= 1 << e.value
		}
		return mask
	}
	return 0
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
