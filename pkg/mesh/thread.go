package mesh

import (
	"sync"
	"time"

	"helixscreen/pkg/log"
)

const (
	// Frame-time thresholds for adaptive quality.
	degradeThreshold = 250 * time.Millisecond
	restoreThreshold = 150 * time.Millisecond
	frameTimeWindow  = 5
)

// RenderThread renders mesh frames on a worker goroutine into a back
// buffer and swaps it with the front buffer under a mutex. The UI blits
// the front buffer through LockFront, so a blit can never race a swap.
//
// Render requests coalesce: while a frame is in flight only the latest
// requested view matters.
type RenderThread struct {
	logger *log.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	running bool
	pending bool
	grid    *Grid
	cam     Camera

	swapMu sync.Mutex
	front  *PixelBuffer
	back   *PixelBuffer

	renderer *Renderer

	// Frame-time ring for adaptive quality. Worker-owned except for
	// ResetQuality, which the UI calls when rotation stops.
	ftMu       sync.Mutex
	frameTimes [frameTimeWindow]time.Duration
	ftIdx      int
	ftCount    int
	degraded   bool
	dragging   bool

	// OnFrameReady runs on the worker after each swap; it should queue
	// a widget invalidate, never touch the UI directly.
	OnFrameReady func()

	done chan struct{}
}

// NewRenderThread creates a stopped render thread with w x h buffers.
func NewRenderThread(w, h int, renderer *Renderer) *RenderThread {
	rt := &RenderThread{
		logger:   log.New("MeshRender"),
		front:    NewPixelBuffer(w, h),
		back:     NewPixelBuffer(w, h),
		renderer: renderer,
	}
	rt.cond = sync.NewCond(&rt.mu)
	return rt
}

// Start launches the worker goroutine. Idempotent.
func (rt *RenderThread) Start() {
	rt.mu.Lock()
	if rt.running {
		rt.mu.Unlock()
		return
	}
	rt.running = true
	rt.done = make(chan struct{})
	rt.mu.Unlock()

	go rt.loop()
}

// Stop signals the worker and waits for it to exit.
func (rt *RenderThread) Stop() {
	rt.mu.Lock()
	if !rt.running {
		rt.mu.Unlock()
		return
	}
	rt.running = false
	rt.cond.Signal()
	done := rt.done
	rt.mu.Unlock()

	<-done
}

// RequestRender schedules a frame for the given view. Safe from any
// goroutine; the grid must not be mutated after the call.
func (rt *RenderThread) RequestRender(grid *Grid, cam Camera) {
	rt.mu.Lock()
	rt.grid = grid
	rt.cam = cam
	rt.pending = true
	rt.cond.Signal()
	rt.mu.Unlock()
}

// LockFront returns the front buffer and a release function. The swap
// mutex is held until release, so the worker cannot swap mid-blit.
func (rt *RenderThread) LockFront() (*PixelBuffer, func()) {
	rt.swapMu.Lock()
	return rt.front, func() { rt.swapMu.Unlock() }
}

// Degraded reports whether the renderer is in solid-color fallback.
func (rt *RenderThread) Degraded() bool {
	rt.ftMu.Lock()
	defer rt.ftMu.Unlock()
	return rt.degraded
}

// SetDragging forces solid shading while a rotation gesture is active
// so the view keeps up with the finger.
func (rt *RenderThread) SetDragging(on bool) {
	rt.ftMu.Lock()
	rt.dragging = on
	rt.ftMu.Unlock()
}

// ResetQuality clears the frame-time window and restores gradient
// rendering. The UI calls this when a rotation gesture ends so quality
// always recovers at rest.
func (rt *RenderThread) ResetQuality() {
	rt.ftMu.Lock()
	rt.ftIdx = 0
	rt.ftCount = 0
	rt.degraded = false
	rt.ftMu.Unlock()
}

func (rt *RenderThread) loop() {
	defer close(rt.done)

	for {
		rt.mu.Lock()
		for rt.running && !rt.pending {
			rt.cond.Wait()
		}
		if !rt.running {
			rt.mu.Unlock()
			return
		}
		rt.pending = false
		grid := rt.grid
		cam := rt.cam
		rt.mu.Unlock()

		rt.renderFrame(grid, cam)
	}
}

func (rt *RenderThread) renderFrame(grid *Grid, cam Camera) {
	rt.ftMu.Lock()
	if rt.degraded || rt.dragging {
		rt.renderer.Mode = ModeSolid
	} else {
		rt.renderer.Mode = ModeGradient
	}
	rt.ftMu.Unlock()

	start := time.Now()
	if err := rt.renderer.Render(rt.back, grid, &cam); err != nil {
		// Keep the previous front buffer on screen.
		rt.logger.Warn("frame dropped: %v", err)
		return
	}
	rt.recordFrameTime(time.Since(start))

	rt.swapMu.Lock()
	rt.front, rt.back = rt.back, rt.front
	rt.swapMu.Unlock()

	if rt.OnFrameReady != nil {
		rt.OnFrameReady()
	}
}

// recordFrameTime updates the ring and flips the quality mode when the
// rolling average crosses a threshold.
func (rt *RenderThread) recordFrameTime(d time.Duration) {
	rt.ftMu.Lock()
	defer rt.ftMu.Unlock()

	rt.frameTimes[rt.ftIdx] = d
	rt.ftIdx = (rt.ftIdx + 1) % frameTimeWindow
	if rt.ftCount < frameTimeWindow {
		rt.ftCount++
	}

	var sum time.Duration
	for i := 0; i < rt.ftCount; i++ {
		sum += rt.frameTimes[i]
	}
	avg := sum / time.Duration(rt.ftCount)

	switch {
	case !rt.degraded && avg > degradeThreshold:
		rt.degraded = true
		rt.logger.Info("render degraded to solid (avg %s)", avg)
	case rt.degraded && avg < restoreThreshold:
		rt.degraded = false
		rt.logger.Info("render restored to gradient (avg %s)", avg)
	}
}
