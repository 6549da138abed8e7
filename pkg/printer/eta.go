// Remaining-time estimation for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package printer

import (
	"sync"
)

const (
	// etaSmoothing is the exponential moving average factor applied to
	// successive estimates so the countdown does not jitter with the
	// per-layer speed swings.
	etaSmoothing = 0.25

	// etaMinProgress is the file fraction below which extrapolation is
	// too noisy to trust and the slicer estimate wins outright.
	etaMinProgress = 0.02
)

// Estimator blends two remaining-time sources: the slicer's estimate
// from file metadata and extrapolation of elapsed time over file
// progress. Early in a print the slicer knows best; as progress
// accumulates the measured rate takes over.
type Estimator struct {
	mu sync.Mutex

	slicerEstimate float64 // total print seconds per the slicer, 0 if unknown
	smoothed       float64
	lastElapsed    float64
}

// SetSlicerEstimate records the slicer's total-time estimate.
func (e *Estimator) SetSlicerEstimate(seconds float64) {
	e.mu.Lock()
	if seconds > 0 {
		e.slicerEstimate = seconds
	}
	e.mu.Unlock()
}

// Reset clears all state for a new job.
func (e *Estimator) Reset() {
	e.mu.Lock()
	e.slicerEstimate = 0
	e.smoothed = 0
	e.lastElapsed = 0
	e.mu.Unlock()
}

// Remaining estimates the seconds left given elapsed print seconds and
// file progress in [0,1]. Returns -1 when no estimate is possible yet.
func (e *Estimator) Remaining(elapsed, progress float64) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Elapsed moving backwards means a new job started under us.
	if elapsed < e.lastElapsed {
		e.smoothed = 0
	}
	e.lastElapsed = elapsed

	slicer := -1.0
	if e.slicerEstimate > 0 {
		slicer = e.slicerEstimate - elapsed
		if slicer < 0 {
			slicer = 0
		}
	}

	if progress < etaMinProgress {
		if slicer < 0 {
			return -1
		}
		return int64(slicer + 0.5)
	}
	if progress > 1 {
		progress = 1
	}

	measured := elapsed * (1 - progress) / progress

	// Weight shifts linearly from the slicer to the measured rate as
	// the print advances.
	estimate := measured
	if slicer >= 0 {
		estimate = progress*measured + (1-progress)*slicer
	}

	if e.smoothed <= 0 {
		e.smoothed = estimate
	} else {
		e.smoothed += etaSmoothing * (estimate - e.smoothed)
	}
	if e.smoothed < 0 {
		e.smoothed = 0
	}
	return int64(e.smoothed + 0.5)
}
