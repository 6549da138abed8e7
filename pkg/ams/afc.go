// AFC (Automated Filament Changer) backend for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package ams

import (
	"encoding/json"
	"fmt"
	"sort"

	"helixscreen/pkg/errors"
	"helixscreen/pkg/moonraker"
	"helixscreen/pkg/subject"
)

// AFC drives an Armored-Turtle-style box changer through the `AFC`
// printer object. The path is hub topology: every lane feeds a hub, so
// there is no selector to move and no standalone gate selection.
type AFC struct {
	backendBase
	client *moonraker.Client

	statusSub moonraker.SubscriptionToken
	lanes     []laneRef
}

// laneRef addresses one lane by its unit and lane names.
type laneRef struct {
	unit string
	lane string
}

// NewAFC creates the backend; Start performs discovery.
func NewAFC(client *moonraker.Client, queue *subject.UpdateQueue) *AFC {
	a := &AFC{
		backendBase: newBackendBase("AFC", queue),
		client:      client,
	}
	a.info.Topology = TopologyHub
	a.info.CurrentGate = GateUnknown
	a.info.CurrentTool = GateUnknown
	return a
}

func (a *AFC) Type() Type { return TypeAFC }

// Start subscribes to AFC status updates and kicks off discovery.
func (a *AFC) Start() error {
	if a.client == nil {
		return errors.RuntimeErrorInit("ams", "no moonraker client")
	}
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return nil
	}
	a.running = true
	a.mu.Unlock()

	a.statusSub = a.client.SubscribeMethod("notify_status_update", a.onStatusUpdate)

	go func() {
		status, err := a.client.SubscribeObjects(map[string][]string{"AFC": nil})
		if err != nil {
			a.logger.Warn("AFC subscription failed: %v", err)
			return
		}
		if afc, ok := status["AFC"]; ok {
			a.applyStatus(afc)
		}
	}()
	return nil
}

// Stop drops the status subscription.
func (a *AFC) Stop() {
	a.mu.Lock()
	running := a.running
	a.running = false
	a.mu.Unlock()
	if running && a.client != nil {
		a.client.Unsubscribe(a.statusSub)
	}
}

func (a *AFC) onStatusUpdate(params json.RawMessage) {
	var frame []json.RawMessage
	if err := json.Unmarshal(params, &frame); err != nil || len(frame) == 0 {
		return
	}
	var status map[string]map[string]any
	if err := json.Unmarshal(frame[0], &status); err != nil {
		return
	}
	if afc, ok := status["AFC"]; ok {
		a.applyStatus(afc)
	}
}

// applyStatus rebuilds the snapshot from an AFC status fragment. AFC
// publishes a `system` map plus one map per unit, keyed by unit name,
// each holding its lanes. Lane order is stable: units sorted by name,
// lanes sorted by name within a unit.
func (a *AFC) applyStatus(fields map[string]any) {
	a.mu.Lock()

	prevGate := a.info.CurrentGate
	prevAction := a.info.Action
	prevLoaded := a.sensors.toolhead

	sys, _ := fields["system"].(map[string]any)
	if sys != nil {
		if v, ok := sys["enabled"]; ok {
			a.info.Enabled = truthy(v)
		}
		if v, ok := sys["action"]; ok {
			a.info.Action, _ = v.(string)
		}
		a.info.BypassActive = truthy(sys["bypass_active"])
	}

	unitNames := make([]string, 0, len(fields))
	for name := range fields {
		if name == "system" {
			continue
		}
		if _, ok := fields[name].(map[string]any); ok {
			unitNames = append(unitNames, name)
		}
	}
	sort.Strings(unitNames)

	if len(unitNames) > 0 {
		a.rebuildLanes(fields, unitNames)
	}

	if a.info.BypassActive {
		a.info.CurrentGate = GateBypass
	}

	gate := a.info.CurrentGate
	action := a.info.Action
	loaded := a.sensors.toolhead
	a.mu.Unlock()

	if gate != prevGate {
		a.emit(EventGateChanged, map[string]int{"gate": gate})
	}
	if loaded && !prevLoaded {
		a.emit(EventLoadComplete, map[string]int{"gate": gate})
	}
	if !loaded && prevLoaded {
		a.emit(EventUnloadDone, nil)
	}
	if action != prevAction {
		a.emit(EventStateChanged, map[string]string{"action": action})
	}
}

// rebuildLanes walks the unit maps into gate-indexed state.
func (a *AFC) rebuildLanes(fields map[string]any, unitNames []string) {
	var units []Unit
	var lanes []laneRef
	var gates []GateInfo
	current := GateUnknown
	sensors := sensorState{}

	for _, unitName := range unitNames {
		unit := fields[unitName].(map[string]any)

		laneNames := make([]string, 0, len(unit))
		for lane := range unit {
			if _, ok := unit[lane].(map[string]any); ok {
				laneNames = append(laneNames, lane)
			}
		}
		sort.Strings(laneNames)

		units = append(units, Unit{
			Name:      unitName,
			FirstGate: len(lanes),
			GateCount: len(laneNames),
		})

		for _, laneName := range laneNames {
			lane := unit[laneName].(map[string]any)
			idx := len(lanes)
			lanes = append(lanes, laneRef{unit: unitName, lane: laneName})

			g := GateInfo{Index: idx, Status: GateStatusEmpty}
			g.Material, _ = lane["material"].(string)
			g.Color, _ = lane["color"].(string)
			g.SpoolID = intField(lane["spool_id"])
			if truthy(lane["load"]) {
				g.Status = GateStatusAvailable
			}
			if truthy(lane["tool_loaded"]) {
				g.Status = GateStatusLoaded
				current = idx
				sensors.toolhead = true
			}
			if truthy(lane["loaded_to_hub"]) {
				sensors.hub = true
			}
			if truthy(lane["load"]) {
				sensors.gate = true
			}
			gates = append(gates, g)
		}
	}

	a.lanes = lanes
	a.gates = gates
	a.info.Units = units
	a.info.TotalGates = len(lanes)
	a.info.CurrentGate = current
	a.sensors = sensors

	// AFC maps tools onto lanes one to one unless remapped.
	if len(a.info.ToolToGate) != len(lanes) {
		ttg := make([]int, len(lanes))
		for i := range ttg {
			ttg[i] = i
		}
		a.info.ToolToGate = ttg
		a.info.ToolCount = len(ttg)
	}
	a.info.CurrentTool = current
}

// laneName resolves a gate index to the AFC lane name.
func (a *AFC) laneName(gate int) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if gate < 0 || gate >= len(a.lanes) {
		return "", errors.AmsInvalidGateError(gate, len(a.lanes))
	}
	return a.lanes[gate].lane, nil
}

func (a *AFC) runOp(op lastOp, name, script string) error {
	a.mu.Lock()
	if a.info.Action != "" && a.info.Action != "Idle" {
		a.mu.Unlock()
		return errors.AmsBusyError(name)
	}
	a.op = op
	a.mu.Unlock()

	a.client.RunGCodeAsync(script, func(err error) {
		if err != nil {
			a.logger.Error("%s failed: %v", name, err)
			a.emit(EventError, map[string]string{
				"operation": name,
				"message":   err.Error(),
				"segment":   a.InferErrorSegment().String(),
			})
		}
	})
	return nil
}

func (a *AFC) LoadFilament(gate int) error {
	lane, err := a.laneName(gate)
	if err != nil {
		return err
	}
	return a.runOp(opLoad, "load filament", fmt.Sprintf("TOOL_LOAD LANE=%s", lane))
}

func (a *AFC) UnloadFilament() error {
	return a.runOp(opUnload, "unload filament", "TOOL_UNLOAD")
}

// SelectGate is meaningless on a hub: there is no selector to move.
func (a *AFC) SelectGate(gate int) error {
	return errors.AmsNotSupportedError("gate selection")
}

func (a *AFC) ChangeTool(tool int) error {
	a.mu.Lock()
	var gate = GateUnknown
	if tool >= 0 && tool < len(a.info.ToolToGate) {
		gate = a.info.ToolToGate[tool]
	}
	a.mu.Unlock()
	if gate == GateUnknown {
		return errors.AmsInvalidGateError(tool, a.SystemInfo().ToolCount)
	}
	lane, err := a.laneName(gate)
	if err != nil {
		return err
	}
	return a.runOp(opToolChange, "change tool", fmt.Sprintf("CHANGE_TOOL LANE=%s", lane))
}

func (a *AFC) Recover() error {
	return a.runOp(opNone, "recover", "AFC_RESUME")
}

func (a *AFC) Reset() error {
	return a.runOp(opNone, "reset", "AFC_RESET")
}

func (a *AFC) Cancel() error {
	a.mu.Lock()
	a.op = opNone
	a.mu.Unlock()
	a.client.RunGCodeAsync("AFC_CANCEL", func(err error) {
		if err != nil {
			a.logger.Error("cancel failed: %v", err)
		}
	})
	return nil
}

func (a *AFC) SetGateInfo(gate int, info GateInfo) error {
	lane, err := a.laneName(gate)
	if err != nil {
		return err
	}
	script := fmt.Sprintf(
		"SET_MATERIAL LANE=%s MATERIAL=%s\nSET_COLOR LANE=%s COLOR=%s\nSET_SPOOL_ID LANE=%s SPOOL_ID=%d",
		lane, info.Material, lane, info.Color, lane, info.SpoolID)
	a.client.RunGCodeAsync(script, func(err error) {
		if err != nil {
			a.logger.Error("lane info update failed: %v", err)
		}
	})
	return nil
}

func (a *AFC) SetToolMapping(tool, gate int) error {
	lane, err := a.laneName(gate)
	if err != nil {
		return err
	}
	a.mu.Lock()
	if tool >= 0 && tool < len(a.info.ToolToGate) {
		a.info.ToolToGate[tool] = gate
	}
	a.mu.Unlock()
	a.client.RunGCodeAsync(
		fmt.Sprintf("SET_MAP LANE=%s MAP=T%d", lane, tool),
		func(err error) {
			if err != nil {
				a.logger.Error("tool map update failed: %v", err)
			}
		})
	return nil
}

// Bypass on AFC is a passive sensor on the hub, not a commandable gate.
func (a *AFC) EnableBypass() error {
	return errors.AmsNotSupportedError("bypass control")
}

func (a *AFC) DisableBypass() error {
	return errors.AmsNotSupportedError("bypass control")
}
