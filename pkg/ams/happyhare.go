// Happy Hare MMU backend for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ams

import (
	"encoding/json"
	"fmt"

	"helixscreen/pkg/errors"
	"helixscreen/pkg/moonraker"
	"helixscreen/pkg/subject"
)

// HappyHare drives a Happy Hare MMU (ERCF and friends) through the
// `mmu` printer object and MMU_* gcode commands.
type HappyHare struct {
	backendBase
	client *moonraker.Client

	statusSub moonraker.SubscriptionToken
}

// NewHappyHare creates the backend; Start performs discovery.
func NewHappyHare(client *moonraker.Client, queue *subject.UpdateQueue) *HappyHare {
	hh := &HappyHare{
		backendBase: newBackendBase("HappyHare", queue),
		client:      client,
	}
	hh.info.Topology = TopologyLinear
	hh.info.CurrentGate = GateUnknown
	hh.info.CurrentTool = GateUnknown
	return hh
}

func (hh *HappyHare) Type() Type { return TypeHappyHare }

// Start subscribes to mmu status updates and kicks off discovery.
func (hh *HappyHare) Start() error {
	if hh.client == nil {
		return errors.RuntimeErrorInit("ams", "no moonraker client")
	}
	hh.mu.Lock()
	if hh.running {
		hh.mu.Unlock()
		return nil
	}
	hh.running = true
	hh.mu.Unlock()

	hh.statusSub = hh.client.SubscribeMethod("notify_status_update", hh.onStatusUpdate)

	go func() {
		status, err := hh.client.SubscribeObjects(map[string][]string{"mmu": nil})
		if err != nil {
			hh.logger.Warn("mmu subscription failed: %v", err)
			return
		}
		if mmu, ok := status["mmu"]; ok {
			hh.applyStatus(mmu)
		}
	}()
	return nil
}

// Stop drops the status subscription.
func (hh *HappyHare) Stop() {
	hh.mu.Lock()
	running := hh.running
	hh.running = false
	hh.mu.Unlock()
	if running && hh.client != nil {
		hh.client.Unsubscribe(hh.statusSub)
	}
}

// onStatusUpdate handles notify_status_update params: [statusMap, eventtime].
func (hh *HappyHare) onStatusUpdate(params json.RawMessage) {
	var frame []json.RawMessage
	if err := json.Unmarshal(params, &frame); err != nil || len(frame) == 0 {
		return
	}
	var status map[string]map[string]any
	if err := json.Unmarshal(frame[0], &status); err != nil {
		return
	}
	if mmu, ok := status["mmu"]; ok {
		hh.applyStatus(mmu)
	}
}

// applyStatus folds one mmu status fragment into the snapshot and emits
// the transition events it implies.
func (hh *HappyHare) applyStatus(fields map[string]any) {
	hh.mu.Lock()

	prevGate := hh.info.CurrentGate
	prevTool := hh.info.CurrentTool
	prevAction := hh.info.Action

	if v, ok := fields["enabled"]; ok {
		hh.info.Enabled = truthy(v)
	}
	if v, ok := fields["gate"]; ok {
		hh.info.CurrentGate = intField(v)
		hh.info.BypassActive = hh.info.CurrentGate == GateBypass
	}
	if v, ok := fields["tool"]; ok {
		hh.info.CurrentTool = intField(v)
	}
	if v, ok := fields["action"]; ok {
		hh.info.Action, _ = v.(string)
	}
	if v, ok := fields["ttg_map"]; ok {
		hh.info.ToolToGate = intSlice(v)
		hh.info.ToolCount = len(hh.info.ToolToGate)
	}
	if v, ok := fields["gate_status"]; ok {
		hh.applyGateLists(fields, intSlice(v))
	}
	if v, ok := fields["filament_pos"]; ok {
		hh.applyFilamentPos(intField(v))
	}

	gate := hh.info.CurrentGate
	tool := hh.info.CurrentTool
	action := hh.info.Action

	op := hh.op
	completed := (action == "Idle" || action == "") &&
		prevAction != "" && prevAction != "Idle"
	if completed {
		hh.op = opNone
	}

	hh.mu.Unlock()

	if gate != prevGate {
		hh.emit(EventGateChanged, map[string]int{"gate": gate})
	}
	if tool != prevTool {
		hh.emit(EventToolChanged, map[string]int{"tool": tool})
	}
	if completed {
		switch op {
		case opLoad:
			hh.emit(EventLoadComplete, map[string]int{"gate": gate})
		case opUnload:
			hh.emit(EventUnloadDone, nil)
		}
	}
	if action != prevAction {
		hh.emit(EventStateChanged, map[string]string{"action": action})
	}
}

// applyGateLists zips the parallel per-gate lists Happy Hare publishes.
func (hh *HappyHare) applyGateLists(fields map[string]any, status []int) {
	total := len(status)
	hh.info.TotalGates = total
	if len(hh.info.Units) == 0 {
		hh.info.Units = []Unit{{Name: "MMU", FirstGate: 0, GateCount: total}}
	}

	materials := stringSlice(fields["gate_material"])
	colors := stringSlice(fields["gate_color"])
	spoolIDs := intSlice(fields["gate_spool_id"])

	gates := make([]GateInfo, total)
	for i := 0; i < total; i++ {
		g := GateInfo{Index: i}
		switch status[i] {
		case 0:
			g.Status = GateStatusEmpty
		case 1, 2:
			g.Status = GateStatusAvailable
		default:
			g.Status = GateStatusUnknown
		}
		if i < len(materials) {
			g.Material = materials[i]
		}
		if i < len(colors) {
			g.Color = colors[i]
		}
		if i < len(spoolIDs) {
			g.SpoolID = spoolIDs[i]
		}
		gates[i] = g
	}
	if hh.info.CurrentGate >= 0 && hh.info.CurrentGate < total {
		gates[hh.info.CurrentGate].Status = GateStatusLoaded
	}
	hh.gates = gates
}

// applyFilamentPos derives coarse sensor state from Happy Hare's
// filament position code (0 unloaded through 10 fully loaded).
func (hh *HappyHare) applyFilamentPos(pos int) {
	hh.sensors = sensorState{
		gate:     pos >= 2,
		hub:      pos >= 5,
		toolhead: pos >= 8,
	}
}

// runOp dispatches a gcode command for a slow operation and records it
// for segment inference. The busy guard rejects overlapping operations.
func (hh *HappyHare) runOp(op lastOp, name, script string) error {
	hh.mu.Lock()
	if hh.info.Action != "" && hh.info.Action != "Idle" {
		hh.mu.Unlock()
		return errors.AmsBusyError(name)
	}
	hh.op = op
	hh.mu.Unlock()

	hh.client.RunGCodeAsync(script, func(err error) {
		if err != nil {
			hh.logger.Error("%s failed: %v", name, err)
			hh.emit(EventError, map[string]string{
				"operation": name,
				"message":   err.Error(),
				"segment":   hh.InferErrorSegment().String(),
			})
		}
	})
	return nil
}

func (hh *HappyHare) LoadFilament(gate int) error {
	if err := hh.checkGate(gate); err != nil {
		return err
	}
	return hh.runOp(opLoad, "load filament",
		fmt.Sprintf("MMU_SELECT GATE=%d\nMMU_LOAD", gate))
}

func (hh *HappyHare) UnloadFilament() error {
	return hh.runOp(opUnload, "unload filament", "MMU_UNLOAD")
}

func (hh *HappyHare) SelectGate(gate int) error {
	if err := hh.checkGate(gate); err != nil {
		return err
	}
	return hh.runOp(opNone, "select gate", fmt.Sprintf("MMU_SELECT GATE=%d", gate))
}

func (hh *HappyHare) ChangeTool(tool int) error {
	hh.mu.Lock()
	toolCount := hh.info.ToolCount
	hh.mu.Unlock()
	if tool < 0 || tool >= toolCount {
		return errors.AmsInvalidGateError(tool, toolCount)
	}
	return hh.runOp(opToolChange, "change tool",
		fmt.Sprintf("MMU_CHANGE_TOOL TOOL=%d", tool))
}

func (hh *HappyHare) Recover() error {
	return hh.runOp(opNone, "recover", "MMU_RECOVER")
}

func (hh *HappyHare) Reset() error {
	return hh.runOp(opNone, "reset", "MMU_RESET")
}

// Cancel unlocks a paused MMU without waiting for the busy guard: it is
// the escape hatch for a stuck operation.
func (hh *HappyHare) Cancel() error {
	hh.mu.Lock()
	hh.op = opNone
	hh.mu.Unlock()
	hh.client.RunGCodeAsync("MMU_UNLOCK", func(err error) {
		if err != nil {
			hh.logger.Error("cancel failed: %v", err)
		}
	})
	return nil
}

func (hh *HappyHare) SetGateInfo(gate int, info GateInfo) error {
	if err := hh.checkGate(gate); err != nil {
		return err
	}
	script := fmt.Sprintf("MMU_GATE_MAP GATE=%d MATERIAL=%s COLOR=%s SPOOLID=%d",
		gate, info.Material, info.Color, info.SpoolID)
	hh.client.RunGCodeAsync(script, func(err error) {
		if err != nil {
			hh.logger.Error("gate map update failed: %v", err)
		}
	})
	return nil
}

func (hh *HappyHare) SetToolMapping(tool, gate int) error {
	if err := hh.checkGate(gate); err != nil {
		return err
	}
	hh.client.RunGCodeAsync(
		fmt.Sprintf("MMU_TTG_MAP TOOL=%d GATE=%d", tool, gate),
		func(err error) {
			if err != nil {
				hh.logger.Error("ttg map update failed: %v", err)
			}
		})
	return nil
}

func (hh *HappyHare) EnableBypass() error {
	return hh.runOp(opNone, "enable bypass", "MMU_SELECT_BYPASS")
}

func (hh *HappyHare) DisableBypass() error {
	return hh.runOp(opNone, "disable bypass", "MMU_HOME")
}

// Loose numeric parsing: Moonraker reports ints as float64 through
// encoding/json, and some Klipper add-ons report booleans as 0/1.

func intField(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case int:
		return x
	case json.Number:
		n, _ := x.Int64()
		return int(n)
	default:
		return 0
	}
}

func truthy(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case float64:
		return x != 0
	default:
		return false
	}
}

func intSlice(v any) []int {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, len(list))
	for i, e := range list {
		out[i] = intField(e)
	}
	return out
}

func stringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, len(list))
	for i, e := range list {
		out[i], _ = e.(string)
	}
	return out
}
