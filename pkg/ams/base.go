// Shared AMS backend plumbing for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ams

import (
	"encoding/json"
	"sync"

	"helixscreen/pkg/errors"
	"helixscreen/pkg/log"
	"helixscreen/pkg/subject"
)

// backendBase carries the state and event plumbing common to all
// backends. The embedding backend takes mu when reading or writing the
// snapshot; events are marshalled here and posted to the UI queue so the
// handler always runs on the UI goroutine.
type backendBase struct {
	logger *log.Logger
	queue  *subject.UpdateQueue

	mu      sync.Mutex
	running bool
	info    SystemInfo
	gates   []GateInfo
	sensors sensorState
	op      lastOp
	handler EventHandler
}

func newBackendBase(component string, queue *subject.UpdateQueue) backendBase {
	return backendBase{
		logger: log.New(component),
		queue:  queue,
	}
}

// SetEventHandler registers the single event consumer.
func (b *backendBase) SetEventHandler(fn EventHandler) {
	b.mu.Lock()
	b.handler = fn
	b.mu.Unlock()
}

// emit marshals data and delivers the event on the UI queue. Safe to
// call with mu held; the handler runs later.
func (b *backendBase) emit(name EventName, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		b.logger.Error("marshal %s event: %v", name, err)
		payload = []byte("{}")
	}
	ev := Event{Name: name, Data: payload}

	handler := b.handler
	if handler == nil {
		return
	}
	if b.queue != nil {
		b.queue.Post(func() { handler(ev) })
	} else {
		handler(ev)
	}
}

// IsRunning reports whether Start succeeded and Stop has not been called.
func (b *backendBase) IsRunning() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// SystemInfo returns a copy of the current snapshot.
func (b *backendBase) SystemInfo() SystemInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	si := b.info
	si.Units = append([]Unit(nil), b.info.Units...)
	si.ToolToGate = append([]int(nil), b.info.ToolToGate...)
	return si
}

// GateInfo returns the descriptor for one gate.
func (b *backendBase) GateInfo(gate int) (GateInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gate < 0 || gate >= len(b.gates) {
		return GateInfo{}, errors.AmsInvalidGateError(gate, len(b.gates))
	}
	return b.gates[gate], nil
}

// Topology returns the configured path topology.
func (b *backendBase) Topology() Topology {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info.Topology
}

// IsBypassActive reports whether the bypass gate is selected.
func (b *backendBase) IsBypassActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.info.CurrentGate == GateBypass
}

// InferErrorSegment maps current sensor state and the last operation to
// the most likely fault segment.
func (b *backendBase) InferErrorSegment() FilamentSegment {
	b.mu.Lock()
	defer b.mu.Unlock()
	return inferSegment(b.info.Topology, b.op, b.sensors)
}

// checkGate validates a gate index against the discovered gate count.
func (b *backendBase) checkGate(gate int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gate < 0 || gate >= b.info.TotalGates {
		return errors.AmsInvalidGateError(gate, b.info.TotalGates)
	}
	return nil
}
