package display

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/unix"

	"helixscreen/pkg/config"
	"helixscreen/pkg/errors"
	"helixscreen/pkg/log"
)

// EnvTouchDevice overrides touch input detection.
const EnvTouchDevice = "HELIX_TOUCH_DEVICE"

// Backend owns the display pipeline: a DRM device with two dumb buffers
// and the chosen rotation strategy, or a /dev/fb0 fallback.
type Backend struct {
	logger *log.Logger

	Device   *Device
	Buffers  [2]*DumbBuffer
	Strategy Strategy
	Rotation Rotation

	shadow *ShadowRotator

	fbFallback bool
	fbFile     *os.File
	fbMap      []byte
}

// NewBackend opens the display with the requested rotation. DRM is
// preferred; if no card is usable the framebuffer fallback is tried.
func NewBackend(cfg *config.Config, width, height uint32, rotation Rotation, flip FlipFunc) (*Backend, error) {
	b := &Backend{
		logger:   log.New("Display"),
		Rotation: rotation,
	}

	path, err := DetectDevicePath(cfg)
	if err != nil {
		return b.openFramebuffer()
	}

	dev, err := Open(path)
	if err != nil {
		b.logger.Warn("DRM open failed, trying framebuffer: %v", err)
		return b.openFramebuffer()
	}
	b.Device = dev

	for i := range b.Buffers {
		buf, err := dev.CreateDumbBuffer(width, height)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Buffers[i] = buf
	}

	mask := dev.PlaneRotationMask()
	b.Strategy = ChooseStrategy(rotation, mask)
	b.logger.Info("rotation %s via %s (plane mask %#x)", rotation, b.Strategy, mask)

	if b.Strategy == StrategySoftwareShadow {
		drmBufs := [2][]byte{b.Buffers[0].Map, b.Buffers[1].Map}
		stride := int(b.Buffers[0].Stride)
		sr, err := NewShadowRotator(rotation,
			int(width), int(height), stride, int(b.Buffers[0].Size),
			drmBufs, stride, flip)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.shadow = sr
	}
	return b, nil
}

// Shadow returns the software rotator, or nil for other strategies.
func (b *Backend) Shadow() *ShadowRotator {
	return b.shadow
}

// RenderTarget returns the buffer the toolkit should draw into for the
// active strategy, plus its stride.
func (b *Backend) RenderTarget() ([]byte, int) {
	if b.fbFallback {
		return b.fbMap, len(b.fbMap)
	}
	if b.shadow != nil {
		return b.shadow.ActiveShadow(), b.shadow.stride
	}
	return b.Buffers[0].Map, int(b.Buffers[0].Stride)
}

// DisableRotation switches from the software-shadow strategy back to
// direct scanout. The DRM buffers are re-pointed before the shadows are
// freed so the toolkit never reads dangling memory.
func (b *Backend) DisableRotation(repoint func(target []byte, stride int)) {
	if b.shadow == nil {
		b.Rotation = Rotate0
		b.Strategy = StrategyNone
		return
	}
	shadow := b.shadow
	b.shadow = nil
	b.Rotation = Rotate0
	b.Strategy = StrategyNone

	if repoint != nil {
		repoint(b.Buffers[0].Map, int(b.Buffers[0].Stride))
	}
	shadow.Release()
}

// Close releases all display resources.
func (b *Backend) Close() {
	if b.shadow != nil {
		b.shadow.Release()
		b.shadow = nil
	}
	for i, buf := range b.Buffers {
		if buf != nil && b.Device != nil {
			b.Device.DestroyDumbBuffer(buf)
			b.Buffers[i] = nil
		}
	}
	if b.Device != nil {
		b.Device.Close()
		b.Device = nil
	}
	if b.fbMap != nil {
		unix.Munmap(b.fbMap)
		b.fbMap = nil
	}
	if b.fbFile != nil {
		b.fbFile.Close()
		b.fbFile = nil
	}
}

// fbFixScreeninfo is the subset of fb_fix_screeninfo we need.
type fbFixScreeninfo struct {
	ID         [16]byte
	SmemStart  uint
	SmemLen    uint32
	Type       uint32
	TypeAux    uint32
	Visual     uint32
	XPanstep   uint16
	YPanstep   uint16
	YWrapstep  uint16
	LineLength uint32
	MmioStart  uint
	MmioLen    uint32
	Accel      uint32
	Caps       uint16
	Reserved   [2]uint16
}

const fbioGetFScreeninfo = 0x4602

// openFramebuffer maps /dev/fb0 as a last resort.
func (b *Backend) openFramebuffer() (*Backend, error) {
	f, err := os.OpenFile("/dev/fb0", os.O_RDWR, 0)
	if err != nil {
		return nil, errors.DisplayError(fmt.Sprintf("no DRM device and no framebuffer: %v", err))
	}

	var fix fbFixScreeninfo
	if err := ioctl(int(f.Fd()), fbioGetFScreeninfo, unsafe.Pointer(&fix)); err != nil {
		f.Close()
		return nil, errors.DisplayError(fmt.Sprintf("framebuffer info: %v", err))
	}

	mem, err := unix.Mmap(int(f.Fd()), 0, int(fix.SmemLen),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, errors.DisplayError(fmt.Sprintf("framebuffer mmap: %v", err))
	}

	b.fbFallback = true
	b.fbFile = f
	b.fbMap = mem
	b.Strategy = StrategyNone
	b.logger.Info("using framebuffer fallback /dev/fb0 (%d bytes)", fix.SmemLen)
	return b, nil
}

// eviocgname builds the EVIOCGNAME ioctl number for a buffer length.
func eviocgname(length int) uint {
	// _IOC(_IOC_READ, 'E', 0x06, len)
	return uint(2)<<30 | uint(length)<<16 | uint('E')<<8 | 0x06
}

// DetectTouchDevice picks the touch input device: environment override,
// then /input/touch_device from config, then the first event device
// whose reported name suggests a touch panel.
func DetectTouchDevice(cfg *config.Config) (string, error) {
	if path := os.Getenv(EnvTouchDevice); path != "" {
		return path, nil
	}
	if cfg != nil {
		if path := cfg.GetString("/input/touch_device", ""); path != "" {
			return path, nil
		}
	}

	events, _ := filepath.Glob("/dev/input/event*")
	sort.Strings(events)
	for _, path := range events {
		name, err := inputDeviceName(path)
		if err != nil {
			continue
		}
		lower := strings.ToLower(name)
		if strings.Contains(lower, "touch") || strings.Contains(lower, "ts") {
			return path, nil
		}
	}
	return "", errors.DisplayError("no touch input device found")
}

func inputDeviceName(path string) (string, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return "", err
	}
	defer unix.Close(fd)

	var name [256]byte
	if err := ioctl(fd, eviocgname(len(name)), unsafe.Pointer(&name[0])); err != nil {
		return "", err
	}
	return cString(name[:]), nil
}
