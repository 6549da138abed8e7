// Package display drives the panel through DRM/KMS dumb buffers, with a
// framebuffer fallback, and implements the rotation pipeline: hardware
// plane rotation where the scanout engine supports it, a software shadow
// path where it does not.
package display

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"unsafe"

	"golang.org/x/sys/unix"

	"helixscreen/pkg/config"
	"helixscreen/pkg/errors"
	"helixscreen/pkg/log"
)

var drmLog = log.New("DRM")

// DRM ioctl numbers and capability ids (drm.h, drm_mode.h).
const (
	drmIoctlGetCap          = 0xC010640C
	drmIoctlModeCreateDumb  = 0xC02064B2
	drmIoctlModeMapDumb     = 0xC01064B3
	drmIoctlModeDestroyDumb = 0xC00464B4
	drmIoctlModeGetRes      = 0xC04064A0

	drmCapDumbBuffer = 0x1
)

// Plane rotation property bits (drm_mode.h).
const (
	RotationMask0   = 1 << 0
	RotationMask90  = 1 << 1
	RotationMask180 = 1 << 2
	RotationMask270 = 1 << 3
)

type drmGetCap struct {
	capability uint64
	value      uint64
}

type drmModeCreateDumb struct {
	height uint32
	width  uint32
	bpp    uint32
	flags  uint32
	handle uint32
	pitch  uint32
	size   uint64
}

type drmModeMapDumb struct {
	handle uint32
	pad    uint32
	offset uint64
}

type drmModeDestroyDumb struct {
	handle uint32
}

type drmModeCardRes struct {
	fbIDPtr            uint64
	crtcIDPtr          uint64
	connectorIDPtr     uint64
	encoderIDPtr       uint64
	countFBs           uint32
	countCRTCs         uint32
	countConnectors    uint32
	countEncoders      uint32
	minWidth, maxWidth uint32
	minHeight          uint32
	maxHeight          uint32
}

func ioctl(fd int, req uint, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// DumbBuffer is one CPU-mapped DRM scanout buffer.
type DumbBuffer struct {
	Handle uint32
	Stride uint32
	Size   uint64
	Map    []byte
}

// Device is an opened DRM card.
type Device struct {
	Path string
	fd   int
}

// EnvDRMDevice overrides device detection.
const EnvDRMDevice = "HELIX_DRM_DEVICE"

// DetectDevicePath picks the DRM device: environment override first,
// then the /display/drm_device config key, then a scan of /dev/dri for
// the first card with dumb-buffer support and a connected output.
func DetectDevicePath(cfg *config.Config) (string, error) {
	if path := os.Getenv(EnvDRMDevice); path != "" {
		drmLog.Info("using DRM device from environment: %s", path)
		return path, nil
	}
	if cfg != nil {
		if path := cfg.GetString("/display/drm_device", ""); path != "" {
			drmLog.Info("using DRM device from config: %s", path)
			return path, nil
		}
	}

	cards, _ := filepath.Glob("/dev/dri/card*")
	sort.Strings(cards)
	for _, card := range cards {
		if usable, err := probeCard(card); err == nil && usable {
			drmLog.Info("auto-detected DRM device %s", card)
			return card, nil
		}
	}
	return "", errors.DisplayError("no usable DRM device found")
}

// probeCard opens a card briefly and checks dumb-buffer support plus at
// least one connector.
func probeCard(path string) (bool, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return false, err
	}
	defer unix.Close(fd)

	cap := drmGetCap{capability: drmCapDumbBuffer}
	if err := ioctl(fd, drmIoctlGetCap, unsafe.Pointer(&cap)); err != nil || cap.value == 0 {
		return false, nil
	}

	var res drmModeCardRes
	if err := ioctl(fd, drmIoctlModeGetRes, unsafe.Pointer(&res)); err != nil {
		return false, nil
	}
	return res.countConnectors > 0, nil
}

// Open opens the DRM device read-write.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, errors.DisplayError(fmt.Sprintf("open %s: %v", path, err))
	}
	return &Device{Path: path, fd: fd}, nil
}

// Close releases the device fd.
func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// CreateDumbBuffer allocates and maps a 32 bpp dumb buffer.
func (d *Device) CreateDumbBuffer(width, height uint32) (*DumbBuffer, error) {
	create := drmModeCreateDumb{width: width, height: height, bpp: 32}
	if err := ioctl(d.fd, drmIoctlModeCreateDumb, unsafe.Pointer(&create)); err != nil {
		return nil, errors.DisplayError(fmt.Sprintf("create dumb buffer: %v", err))
	}

	mapReq := drmModeMapDumb{handle: create.handle}
	if err := ioctl(d.fd, drmIoctlModeMapDumb, unsafe.Pointer(&mapReq)); err != nil {
		d.destroyHandle(create.handle)
		return nil, errors.DisplayError(fmt.Sprintf("map dumb buffer: %v", err))
	}

	mem, err := unix.Mmap(d.fd, int64(mapReq.offset), int(create.size),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		d.destroyHandle(create.handle)
		return nil, errors.DisplayError(fmt.Sprintf("mmap dumb buffer: %v", err))
	}

	return &DumbBuffer{
		Handle: create.handle,
		Stride: create.pitch,
		Size:   create.size,
		Map:    mem,
	}, nil
}

// DestroyDumbBuffer unmaps and frees the buffer.
func (d *Device) DestroyDumbBuffer(b *DumbBuffer) {
	if b == nil {
		return
	}
	if b.Map != nil {
		unix.Munmap(b.Map)
		b.Map = nil
	}
	d.destroyHandle(b.Handle)
}

func (d *Device) destroyHandle(handle uint32) {
	destroy := drmModeDestroyDumb{handle: handle}
	if err := ioctl(d.fd, drmIoctlModeDestroyDumb, unsafe.Pointer(&destroy)); err != nil {
		drmLog.Warn("destroy dumb buffer %d: %v", handle, err)
	}
}
