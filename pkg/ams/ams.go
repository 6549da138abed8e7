// AMS backend abstraction for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package ams drives multi-material units through a single asynchronous
// interface. Two real implementations talk to Klipper add-ons over
// Moonraker (Happy Hare and AFC); a mock simulator backs development and
// tests.
package ams

import (
	"encoding/json"
	"strings"

	"helixscreen/pkg/errors"
	"helixscreen/pkg/moonraker"
	"helixscreen/pkg/subject"
)

// Type identifies an AMS backend implementation.
type Type int

const (
	TypeNone Type = iota
	TypeHappyHare
	TypeAFC
	TypeMock
)

func (t Type) String() string {
	switch t {
	case TypeHappyHare:
		return "happy_hare"
	case TypeAFC:
		return "afc"
	case TypeMock:
		return "mock"
	default:
		return "none"
	}
}

// ParseType maps a config string to a backend type.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "happy_hare", "happyhare", "mmu":
		return TypeHappyHare
	case "afc":
		return TypeAFC
	case "mock":
		return TypeMock
	default:
		return TypeNone
	}
}

// Topology describes how gates feed the extruder.
type Topology int

const (
	// TopologyLinear is a moving selector over a row of gates (ERCF style).
	TopologyLinear Topology = iota
	// TopologyHub merges per-gate bowden tubes into a hub (Box Turtle style).
	TopologyHub
)

func (t Topology) String() string {
	if t == TopologyHub {
		return "hub"
	}
	return "linear"
}

// Special current-gate values.
const (
	GateBypass  = -2
	GateUnknown = -1
)

// GateStatus describes what is known about the filament in a gate.
type GateStatus int

const (
	GateStatusUnknown GateStatus = iota
	GateStatusEmpty
	GateStatusAvailable
	GateStatusLoaded
)

// GateInfo describes one filament slot.
type GateInfo struct {
	Index    int        `json:"index"`
	Material string     `json:"material"`
	Color    string     `json:"color"`
	SpoolID  int        `json:"spool_id"`
	Status   GateStatus `json:"status"`
}

// Unit is one physical module; multi-unit systems concatenate gate ranges.
type Unit struct {
	Name      string `json:"name"`
	FirstGate int    `json:"first_gate"`
	GateCount int    `json:"gate_count"`
}

// SystemInfo is a snapshot of the whole multi-material system.
type SystemInfo struct {
	Units        []Unit   `json:"units"`
	TotalGates   int      `json:"total_gates"`
	CurrentGate  int      `json:"current_gate"`
	CurrentTool  int      `json:"current_tool"`
	ToolCount    int      `json:"tool_count"`
	ToolToGate   []int    `json:"tool_to_gate"`
	Topology     Topology `json:"topology"`
	Action       string   `json:"action"`
	Enabled      bool     `json:"enabled"`
	BypassActive bool     `json:"bypass_active"`
}

// Validate checks the structural invariants of a snapshot.
func (si *SystemInfo) Validate() error {
	if si.CurrentGate != GateBypass && si.CurrentGate != GateUnknown &&
		(si.CurrentGate < 0 || si.CurrentGate >= si.TotalGates) {
		return errors.AmsInvalidGateError(si.CurrentGate, si.TotalGates)
	}
	if len(si.ToolToGate) != si.ToolCount {
		return errors.New(errors.ErrAmsOperation,
			"tool map size does not match tool count")
	}
	return nil
}

// EventName enumerates the asynchronous completion events.
type EventName string

const (
	EventStateChanged EventName = "STATE_CHANGED"
	EventGateChanged  EventName = "GATE_CHANGED"
	EventLoadComplete EventName = "LOAD_COMPLETE"
	EventUnloadDone   EventName = "UNLOAD_COMPLETE"
	EventToolChanged  EventName = "TOOL_CHANGED"
	EventError        EventName = "ERROR"
	EventAttention    EventName = "ATTENTION"
)

// Event is delivered to the registered handler on the UI queue.
type Event struct {
	Name EventName
	Data json.RawMessage
}

// EventHandler receives backend events.
type EventHandler func(Event)

// Backend is the common multi-material driver contract. Slow operations
// (loads, unloads, tool changes) return as soon as the command is
// dispatched; completion or failure arrives through the event handler.
type Backend interface {
	Start() error
	Stop()
	IsRunning() bool

	Type() Type
	SystemInfo() SystemInfo
	GateInfo(gate int) (GateInfo, error)
	Topology() Topology

	LoadFilament(gate int) error
	UnloadFilament() error
	SelectGate(gate int) error
	ChangeTool(tool int) error
	Recover() error
	Reset() error
	Cancel() error

	SetGateInfo(gate int, info GateInfo) error
	SetToolMapping(tool, gate int) error

	EnableBypass() error
	DisableBypass() error
	IsBypassActive() bool

	InferErrorSegment() FilamentSegment
	SetEventHandler(fn EventHandler)
}

// Create builds the backend for the configured type. When mock is set the
// simulator is returned regardless of the requested type.
func Create(t Type, client *moonraker.Client, queue *subject.UpdateQueue, mock bool) (Backend, error) {
	if mock {
		return NewMock(queue, 4), nil
	}
	switch t {
	case TypeHappyHare:
		return NewHappyHare(client, queue), nil
	case TypeAFC:
		return NewAFC(client, queue), nil
	case TypeMock:
		return NewMock(queue, 4), nil
	default:
		return nil, errors.AmsNotSupportedError("backend type " + t.String())
	}
}
