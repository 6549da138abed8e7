package display

import (
	"testing"

	"helixscreen/pkg/errors"
)

func newTestShadow(t *testing.T, flip FlipFunc) *ShadowRotator {
	t.Helper()
	const w, h = 4, 3
	size := w * h * 4
	drmBufs := [2][]byte{make([]byte, size), make([]byte, size)}

	// Rotated 90: DRM buffer is h x w, stride h*4.
	sr, err := NewShadowRotator(Rotate90, w, h, w*4, size, drmBufs, h*4, flip)
	if err != nil {
		t.Fatalf("NewShadowRotator: %v", err)
	}
	t.Cleanup(sr.Release)
	return sr
}

func TestShadowSizeMustMatchDRM(t *testing.T) {
	drmBufs := [2][]byte{make([]byte, 100), make([]byte, 100)}
	_, err := NewShadowRotator(Rotate90, 4, 3, 16, 48, drmBufs, 12, nil)
	if !errors.Is(err, errors.ErrDisplay) {
		t.Fatalf("mismatched size accepted: %v", err)
	}
}

func TestFlushAlternatesBackIndices(t *testing.T) {
	var flips []int
	sr := newTestShadow(t, func(idx int) error {
		flips = append(flips, idx)
		return nil
	})

	for i := 0; i < 4; i++ {
		if err := sr.Flush(true); err != nil {
			t.Fatalf("flush %d: %v", i, err)
		}
	}

	want := []int{0, 1, 0, 1}
	if len(flips) != len(want) {
		t.Fatalf("flips = %v", flips)
	}
	for i := range want {
		if flips[i] != want[i] {
			t.Fatalf("flips = %v, want %v", flips, want)
		}
	}
}

func TestPartialFlushDoesNotFlip(t *testing.T) {
	flips := 0
	sr := newTestShadow(t, func(int) error { flips++; return nil })

	sr.Flush(false)
	sr.Flush(false)
	if flips != 0 {
		t.Fatalf("partial flushes flipped %d times", flips)
	}
	sr.Flush(true)
	if flips != 1 {
		t.Fatalf("last flush flipped %d times, want 1", flips)
	}
}

func TestFlushRotatesShadowIntoDRM(t *testing.T) {
	const w, h = 4, 3
	size := w * h * 4
	drmBufs := [2][]byte{make([]byte, size), make([]byte, size)}
	sr, err := NewShadowRotator(Rotate90, w, h, w*4, size, drmBufs, h*4, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer sr.Release()

	src := makeImage(w, h, w*4)
	copy(sr.ActiveShadow(), src)

	if err := sr.Flush(true); err != nil {
		t.Fatal(err)
	}

	want := make([]byte, size)
	Rotate90CW(src, w, h, w*4, want, h*4)
	for i := range want {
		if drmBufs[0][i] != want[i] {
			t.Fatal("DRM buffer 0 does not hold the rotated shadow")
		}
	}
}

func TestFlushCarriesFrameContentForward(t *testing.T) {
	sr := newTestShadow(t, nil)

	shadow := sr.ActiveShadow()
	for i := range shadow {
		shadow[i] = 0xAB
	}
	sr.Flush(true)

	// The next frame's shadow starts from the previous content, so
	// partial dirty-region rendering composes correctly.
	next := sr.ActiveShadow()
	for i, b := range next {
		if b != 0xAB {
			t.Fatalf("byte %d = %#x, want carried-forward 0xAB", i, b)
		}
	}
}
