// Filament path segmentation for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ams

// FilamentSegment names a logical stretch of the filament path, used to
// highlight the most likely fault location on the path diagram.
type FilamentSegment int

const (
	SegmentNone FilamentSegment = iota
	SegmentSelector
	SegmentBowden
	SegmentHub
	SegmentExtruder
)

func (s FilamentSegment) String() string {
	switch s {
	case SegmentSelector:
		return "selector"
	case SegmentBowden:
		return "bowden"
	case SegmentHub:
		return "hub"
	case SegmentExtruder:
		return "extruder"
	default:
		return "none"
	}
}

// lastOp records the most recent slow operation, for segment inference.
type lastOp int

const (
	opNone lastOp = iota
	opLoad
	opUnload
	opToolChange
)

// sensorState holds the filament sensor readings relevant to inference.
// A sensor that the hardware lacks stays false, which biases inference
// toward the entry side of the path.
type sensorState struct {
	gate     bool // filament present at the gate / pre-gate sensor
	hub      bool // filament present at the hub or selector exit
	toolhead bool // filament present at the toolhead sensor
}

// inferSegment picks the path segment that most likely contains the
// fault, from the deepest sensor still seeing filament and the direction
// of the operation that failed.
func inferSegment(topo Topology, op lastOp, s sensorState) FilamentSegment {
	switch {
	case s.toolhead:
		// Filament reached the toolhead; the fault is at the extruder.
		return SegmentExtruder
	case s.hub:
		// Stuck between the hub/selector exit and the toolhead.
		if topo == TopologyHub {
			return SegmentHub
		}
		return SegmentBowden
	case s.gate:
		// Filament never cleared the gate.
		if topo == TopologyHub {
			return SegmentBowden
		}
		return SegmentSelector
	}

	// No sensor sees filament. On a failed unload the filament is most
	// likely still gripped by the extruder; on a failed load it never
	// entered the unit.
	switch op {
	case opUnload, opToolChange:
		return SegmentExtruder
	case opLoad:
		return SegmentSelector
	default:
		return SegmentNone
	}
}
