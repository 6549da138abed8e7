package display

import (
	"time"

	"golang.org/x/sys/unix"

	"helixscreen/pkg/errors"
	"helixscreen/pkg/log"
)

// perfSampleFrames is how often the software path logs its running
// average rotation cost.
const perfSampleFrames = 120

// FlipFunc requests a page flip to the DRM buffer with the given index.
type FlipFunc func(backIndex int) error

// ShadowRotator implements the software-shadow strategy: the toolkit
// renders dirty regions into a page-aligned shadow buffer, and on the
// last partial flush of each frame the full shadow is rotated into the
// current DRM back buffer in one uncached write pass, followed by a page
// flip.
//
// All methods run on the UI goroutine (the toolkit's flush callback).
type ShadowRotator struct {
	logger *log.Logger

	rotation Rotation
	w, h     int // logical (shadow) dimensions
	stride   int // shadow stride, bytes

	shadows   [2][]byte // page-aligned, exactly the DRM buffer size
	shadowIdx int

	drm       [2][]byte // DRM dumb-buffer mappings
	drmStride int
	backIdx   int

	flip FlipFunc

	frames    int
	rotateSum time.Duration
}

// NewShadowRotator allocates two page-aligned shadow buffers of exactly
// size bytes (the DRM dumb-buffer size). w and h are the logical
// resolution the toolkit renders at; stride its row pitch.
func NewShadowRotator(rotation Rotation, w, h, stride int, size int,
	drmBufs [2][]byte, drmStride int, flip FlipFunc) (*ShadowRotator, error) {

	if len(drmBufs[0]) != size || len(drmBufs[1]) != size {
		return nil, errors.DisplayError("shadow size does not match DRM buffer size")
	}

	sr := &ShadowRotator{
		logger:    log.New("ShadowRotate"),
		rotation:  rotation,
		w:         w,
		h:         h,
		stride:    stride,
		drm:       drmBufs,
		drmStride: drmStride,
		flip:      flip,
	}
	for i := range sr.shadows {
		// Anonymous mmap gives page alignment and cached memory; the
		// uncached DRM mapping is only touched in the rotate pass.
		mem, err := unix.Mmap(-1, 0, size,
			unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
		if err != nil {
			sr.Release()
			return nil, errors.DisplayError("shadow buffer mmap failed: " + err.Error())
		}
		sr.shadows[i] = mem
	}
	return sr, nil
}

// ActiveShadow returns the buffer the toolkit should render into.
func (sr *ShadowRotator) ActiveShadow() []byte {
	return sr.shadows[sr.shadowIdx]
}

// BackIndex returns the DRM buffer index the next flush will write.
func (sr *ShadowRotator) BackIndex() int {
	return sr.backIdx
}

// Flush handles one toolkit flush callback. Partial flushes accumulate
// in the shadow; the last flush of a frame rotates the full shadow into
// the current DRM back buffer and requests a page flip. The back index
// alternates 0/1 per frame to match the flip queue depth.
func (sr *ShadowRotator) Flush(lastOfFrame bool) error {
	if !lastOfFrame {
		return nil
	}

	start := time.Now()
	RotateInto(sr.rotation, sr.shadows[sr.shadowIdx], sr.w, sr.h, sr.stride,
		sr.drm[sr.backIdx], sr.drmStride)
	sr.recordRotateTime(time.Since(start))

	flipped := sr.backIdx
	sr.backIdx ^= 1
	sr.shadowIdx ^= 1

	// The next frame starts from the previous frame's content.
	copy(sr.shadows[sr.shadowIdx], sr.shadows[sr.shadowIdx^1])

	if sr.flip != nil {
		if err := sr.flip(flipped); err != nil {
			return errors.DisplayError("page flip failed: " + err.Error())
		}
	}
	return nil
}

func (sr *ShadowRotator) recordRotateTime(d time.Duration) {
	sr.rotateSum += d
	sr.frames++
	if sr.frames%perfSampleFrames == 0 {
		avg := sr.rotateSum / time.Duration(sr.frames)
		sr.logger.Debug("software rotation avg %s over %d frames", avg, sr.frames)
	}
}

// Release frees the shadow buffers. The caller must re-point the toolkit
// at the DRM buffers first; the shadows die here.
func (sr *ShadowRotator) Release() {
	for i, mem := range sr.shadows {
		if mem != nil {
			unix.Munmap(mem)
			sr.shadows[i] = nil
		}
	}
}
