// Mock AMS backend for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ams

import (
	"fmt"
	"sync"
	"time"

	"helixscreen/pkg/errors"
	"helixscreen/pkg/subject"
)

// Mock simulates a linear-selector unit with timed completions. It backs
// development without hardware and the AMS panel tests.
type Mock struct {
	backendBase

	delayMu  sync.Mutex
	delay    time.Duration
	timer    *time.Timer
	failNext string
}

// NewMock builds a simulator with the given gate count.
func NewMock(queue *subject.UpdateQueue, gateCount int) *Mock {
	m := &Mock{
		backendBase: newBackendBase("MockAMS", queue),
		delay:       250 * time.Millisecond,
	}
	m.info = SystemInfo{
		Units:       []Unit{{Name: "Mock Unit", FirstGate: 0, GateCount: gateCount}},
		TotalGates:  gateCount,
		CurrentGate: GateUnknown,
		CurrentTool: GateUnknown,
		ToolCount:   gateCount,
		ToolToGate:  make([]int, gateCount),
		Topology:    TopologyLinear,
		Enabled:     true,
		Action:      "Idle",
	}
	m.gates = make([]GateInfo, gateCount)
	materials := []string{"PLA", "PETG", "ABS", "TPU"}
	for i := range m.gates {
		m.info.ToolToGate[i] = i
		m.gates[i] = GateInfo{
			Index:    i,
			Material: materials[i%len(materials)],
			Color:    fmt.Sprintf("#%02x%02x%02x", 40*i%256, 80*i%256, 160*i%256),
			SpoolID:  i + 1,
			Status:   GateStatusAvailable,
		}
	}
	return m
}

func (m *Mock) Type() Type { return TypeMock }

// SetDelay overrides the simulated operation duration.
func (m *Mock) SetDelay(d time.Duration) {
	m.delayMu.Lock()
	m.delay = d
	m.delayMu.Unlock()
}

// FailNextOperation makes the next slow operation end in an ERROR event.
func (m *Mock) FailNextOperation(message string) {
	m.mu.Lock()
	m.failNext = message
	m.mu.Unlock()
}

func (m *Mock) Start() error {
	m.mu.Lock()
	was := m.running
	m.running = true
	m.mu.Unlock()
	if !was {
		m.emit(EventStateChanged, map[string]string{"action": "Idle"})
	}
	return nil
}

func (m *Mock) Stop() {
	m.mu.Lock()
	m.running = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.mu.Unlock()
}

// mockEvent is a deferred event; done callbacks build these under mu and
// begin emits them after the lock drops.
type mockEvent struct {
	name EventName
	data any
}

// begin starts a simulated slow operation. done runs with mu held once
// the delay elapses and returns the completion events to emit.
func (m *Mock) begin(op lastOp, action string, done func() []mockEvent) error {
	m.delayMu.Lock()
	delay := m.delay
	m.delayMu.Unlock()

	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return errors.RuntimeError("mock backend not started")
	}
	if m.info.Action != "Idle" {
		m.mu.Unlock()
		return errors.AmsBusyError(action)
	}
	m.op = op
	m.info.Action = action
	fail := m.failNext
	m.failNext = ""

	m.timer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if !m.running {
			m.mu.Unlock()
			return
		}
		var events []mockEvent
		if fail != "" {
			segment := inferSegment(m.info.Topology, m.op, m.sensors)
			events = append(events, mockEvent{EventError, map[string]string{
				"operation": action,
				"message":   fail,
				"segment":   segment.String(),
			}})
		} else {
			events = done()
		}
		m.info.Action = "Idle"
		m.op = opNone
		m.mu.Unlock()

		for _, ev := range events {
			m.emit(ev.name, ev.data)
		}
		m.emit(EventStateChanged, map[string]string{"action": "Idle"})
	})
	m.mu.Unlock()

	m.emit(EventStateChanged, map[string]string{"action": action})
	return nil
}

func (m *Mock) LoadFilament(gate int) error {
	if err := m.checkGate(gate); err != nil {
		return err
	}
	return m.begin(opLoad, "Loading", func() []mockEvent {
		m.info.CurrentGate = gate
		m.info.BypassActive = false
		m.gates[gate].Status = GateStatusLoaded
		m.sensors = sensorState{gate: true, hub: true, toolhead: true}
		return []mockEvent{
			{EventGateChanged, map[string]int{"gate": gate}},
			{EventLoadComplete, map[string]int{"gate": gate}},
		}
	})
}

func (m *Mock) UnloadFilament() error {
	return m.begin(opUnload, "Unloading", func() []mockEvent {
		if g := m.info.CurrentGate; g >= 0 && g < len(m.gates) {
			m.gates[g].Status = GateStatusAvailable
		}
		m.sensors = sensorState{}
		return []mockEvent{{EventUnloadDone, nil}}
	})
}

func (m *Mock) SelectGate(gate int) error {
	if err := m.checkGate(gate); err != nil {
		return err
	}
	return m.begin(opNone, "Selecting", func() []mockEvent {
		m.info.CurrentGate = gate
		m.info.BypassActive = false
		return []mockEvent{{EventGateChanged, map[string]int{"gate": gate}}}
	})
}

func (m *Mock) ChangeTool(tool int) error {
	m.mu.Lock()
	valid := tool >= 0 && tool < len(m.info.ToolToGate)
	var gate int
	if valid {
		gate = m.info.ToolToGate[tool]
	}
	count := m.info.ToolCount
	m.mu.Unlock()
	if !valid {
		return errors.AmsInvalidGateError(tool, count)
	}
	return m.begin(opToolChange, "Tool Change", func() []mockEvent {
		m.info.CurrentTool = tool
		m.info.CurrentGate = gate
		m.gates[gate].Status = GateStatusLoaded
		m.sensors = sensorState{gate: true, hub: true, toolhead: true}
		return []mockEvent{
			{EventGateChanged, map[string]int{"gate": gate}},
			{EventToolChanged, map[string]int{"tool": tool}},
		}
	})
}

func (m *Mock) Recover() error {
	m.mu.Lock()
	m.info.Action = "Idle"
	m.op = opNone
	m.mu.Unlock()
	m.emit(EventStateChanged, map[string]string{"action": "Idle"})
	return nil
}

func (m *Mock) Reset() error {
	m.mu.Lock()
	m.info.CurrentGate = GateUnknown
	m.info.CurrentTool = GateUnknown
	m.info.Action = "Idle"
	m.info.BypassActive = false
	m.op = opNone
	m.sensors = sensorState{}
	for i := range m.gates {
		if m.gates[i].Status == GateStatusLoaded {
			m.gates[i].Status = GateStatusAvailable
		}
	}
	m.mu.Unlock()
	m.emit(EventStateChanged, map[string]string{"action": "Idle"})
	return nil
}

// Cancel aborts the pending operation without completing it.
func (m *Mock) Cancel() error {
	m.mu.Lock()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.info.Action = "Idle"
	m.op = opNone
	m.mu.Unlock()
	m.emit(EventStateChanged, map[string]string{"action": "Idle"})
	return nil
}

func (m *Mock) SetGateInfo(gate int, info GateInfo) error {
	if err := m.checkGate(gate); err != nil {
		return err
	}
	m.mu.Lock()
	info.Index = gate
	if info.Status == GateStatusUnknown {
		info.Status = m.gates[gate].Status
	}
	m.gates[gate] = info
	m.mu.Unlock()
	m.emit(EventGateChanged, map[string]int{"gate": gate})
	return nil
}

func (m *Mock) SetToolMapping(tool, gate int) error {
	if err := m.checkGate(gate); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if tool < 0 || tool >= len(m.info.ToolToGate) {
		return errors.AmsInvalidGateError(tool, m.info.ToolCount)
	}
	m.info.ToolToGate[tool] = gate
	return nil
}

func (m *Mock) EnableBypass() error {
	m.mu.Lock()
	m.info.CurrentGate = GateBypass
	m.info.BypassActive = true
	m.mu.Unlock()
	m.emit(EventGateChanged, map[string]int{"gate": GateBypass})
	return nil
}

func (m *Mock) DisableBypass() error {
	m.mu.Lock()
	m.info.CurrentGate = GateUnknown
	m.info.BypassActive = false
	m.mu.Unlock()
	m.emit(EventGateChanged, map[string]int{"gate": GateUnknown})
	return nil
}
