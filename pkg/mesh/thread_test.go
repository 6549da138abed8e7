package mesh

import (
	"sync"
	"testing"
	"time"
)

func testGrid() *Grid {
	return &Grid{
		Z: [][]float64{
			{0.1, 0.2, 0.15},
			{0.0, -0.1, 0.05},
			{0.2, 0.1, 0.0},
		},
		MinX: 0, MaxX: 200, MinY: 0, MaxY: 200,
	}
}

func testCamera() Camera {
	return Camera{TiltX: 0.9, SpinZ: 0.5, Width: 64, Height: 64, Scale: 0.25, ZExaggeration: 40}
}

func TestGridZRange(t *testing.T) {
	g := testGrid()
	lo, hi := g.ZRange()
	if lo != -0.1 || hi != 0.2 {
		t.Errorf("z range = [%v, %v], want [-0.1, 0.2]", lo, hi)
	}

	empty := &Grid{}
	lo, hi = empty.ZRange()
	if lo != 0 || hi != 0 {
		t.Errorf("empty range = [%v, %v]", lo, hi)
	}
}

func TestBuildQuadsCountAndOrder(t *testing.T) {
	g := testGrid()
	cam := testCamera()
	quads := BuildQuads(g, &cam, NewGradient(), nil)

	// (rows-1) x (cols-1) cells.
	if len(quads) != 4 {
		t.Fatalf("quad count = %d, want 4", len(quads))
	}
	for i := 1; i < len(quads); i++ {
		if quads[i].AvgDepth < quads[i-1].AvgDepth {
			t.Fatal("quads not sorted far-to-near")
		}
	}
}

func TestBuildQuadsDegenerateGrid(t *testing.T) {
	cam := testCamera()
	if got := BuildQuads(&Grid{Z: [][]float64{{1.0}}}, &cam, NewGradient(), nil); len(got) != 0 {
		t.Error("1x1 grid produced quads")
	}
}

func TestGradientSampleEndpoints(t *testing.T) {
	g := NewGradient(RGB(0, 0, 255), RGB(255, 0, 0))
	if g.Sample(-1) != RGB(0, 0, 255) {
		t.Error("below-range sample not first stop")
	}
	if g.Sample(2) != RGB(255, 0, 0) {
		t.Error("above-range sample not last stop")
	}
	mid := g.Sample(0.5)
	if mid.r() < 120 || mid.r() > 135 || mid.b() < 120 || mid.b() > 135 {
		t.Errorf("midpoint = (%d,%d,%d)", mid.r(), mid.g(), mid.b())
	}
}

func TestRenderThreadProducesFrames(t *testing.T) {
	rt := NewRenderThread(64, 64, NewRenderer(nil))

	var mu sync.Mutex
	frames := 0
	ready := make(chan struct{}, 16)
	rt.OnFrameReady = func() {
		mu.Lock()
		frames++
		mu.Unlock()
		ready <- struct{}{}
	}

	rt.Start()
	rt.Start() // idempotent
	defer rt.Stop()

	rt.RequestRender(testGrid(), testCamera())
	select {
	case <-ready:
	case <-time.After(3 * time.Second):
		t.Fatal("no frame produced")
	}

	buf, release := rt.LockFront()
	nonZero := false
	for _, b := range buf.Bytes() {
		if b != 0 {
			nonZero = true
			break
		}
	}
	release()
	if !nonZero {
		t.Error("front buffer is empty after a frame")
	}
}

func TestRenderThreadSwapNeverRacesBlit(t *testing.T) {
	rt := NewRenderThread(32, 32, NewRenderer(nil))
	rt.Start()
	defer rt.Stop()

	grid := testGrid()
	cam := testCamera()

	// Hammer renders while repeatedly holding the front lock; the race
	// detector flags any swap into a locked front buffer.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			rt.RequestRender(grid, cam)
			time.Sleep(time.Millisecond)
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		buf, release := rt.LockFront()
		_ = buf.Bytes()[0]
		release()
	}
}

func TestAdaptiveQualityDegradeAndRestore(t *testing.T) {
	rt := NewRenderThread(8, 8, NewRenderer(nil))

	// Average over the 5-frame window above 250ms degrades.
	for i := 0; i < frameTimeWindow; i++ {
		rt.recordFrameTime(300 * time.Millisecond)
	}
	if !rt.Degraded() {
		t.Fatal("slow frames did not degrade quality")
	}

	// Fast frames pull the average under 150ms and restore.
	for i := 0; i < frameTimeWindow; i++ {
		rt.recordFrameTime(50 * time.Millisecond)
	}
	if rt.Degraded() {
		t.Fatal("fast frames did not restore quality")
	}
}

func TestResetQualityRestoresGradient(t *testing.T) {
	rt := NewRenderThread(8, 8, NewRenderer(nil))
	for i := 0; i < frameTimeWindow; i++ {
		rt.recordFrameTime(400 * time.Millisecond)
	}
	if !rt.Degraded() {
		t.Fatal("precondition: not degraded")
	}
	rt.ResetQuality()
	if rt.Degraded() {
		t.Error("ResetQuality left renderer degraded")
	}
}

func TestRenderErrorKeepsFrontBuffer(t *testing.T) {
	rt := NewRenderThread(16, 16, NewRenderer(nil))

	rt.renderFrame(testGrid(), testCamera())
	buf, release := rt.LockFront()
	before := make([]byte, len(buf.Bytes()))
	copy(before, buf.Bytes())
	release()

	// A degenerate grid fails the render; the front buffer must be
	// untouched.
	rt.renderFrame(&Grid{Z: [][]float64{{0}}}, testCamera())
	buf, release = rt.LockFront()
	defer release()
	for i, b := range buf.Bytes() {
		if b != before[i] {
			t.Fatal("failed render modified the front buffer")
		}
	}
}
