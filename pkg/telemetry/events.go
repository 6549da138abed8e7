// Telemetry event builders for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package telemetry

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

const schemaVersion = 2

// Event names. Each Record* helper fills the matching payload.
const (
	eventSession       = "session"
	eventPrintOutcome  = "print_outcome"
	eventUpdateFailed  = "update_failed"
	eventUpdateSuccess = "update_success"
	eventMemory        = "memory_snapshot"
	eventHardware      = "hardware_profile"
	eventSettings      = "settings_snapshot"
	eventPanelUsage    = "panel_usage"
	eventConnStability = "connection_stability"
	eventPrintStart    = "print_start_context"
	eventError         = "error"
	eventCrash         = "crash"
)

// RecordSession captures one app session at shutdown.
func (m *Manager) RecordSession(duration time.Duration, panelsVisited int) {
	m.Record(eventSession, Event{
		"duration_s":     int(duration.Seconds()),
		"panels_visited": panelsVisited,
	})
}

// RecordPrintOutcome captures how a print ended.
func (m *Manager) RecordPrintOutcome(state string, durationS, progressPct int) {
	m.Record(eventPrintOutcome, Event{
		"state":      state,
		"duration_s": durationS,
		"progress":   progressPct,
	})
}

// RecordUpdateResult captures a software update attempt.
func (m *Manager) RecordUpdateResult(fromVersion, toVersion string, ok bool, detail string) {
	name := eventUpdateSuccess
	if !ok {
		name = eventUpdateFailed
	}
	m.Record(name, Event{
		"from_version": fromVersion,
		"to_version":   toVersion,
		"detail":       detail,
	})
}

// RecordMemorySnapshot samples process and system memory.
func (m *Manager) RecordMemorySnapshot() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	ev := Event{
		"heap_alloc_kb": ms.HeapAlloc / 1024,
		"heap_sys_kb":   ms.HeapSys / 1024,
		"goroutines":    runtime.NumGoroutine(),
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		ev["sys_total_mb"] = vm.Total / 1024 / 1024
		ev["sys_used_pct"] = int(vm.UsedPercent)
	}
	if avg, err := load.Avg(); err == nil {
		ev["load1"] = avg.Load1
	}
	m.Record(eventMemory, ev)
}

// RecordHardwareProfile captures the host platform once per boot.
func (m *Manager) RecordHardwareProfile() {
	ev := Event{
		"arch": runtime.GOARCH,
		"ncpu": runtime.NumCPU(),
		"goos": runtime.GOOS,
	}
	if info, err := host.Info(); err == nil {
		ev["platform"] = info.Platform
		ev["platform_version"] = info.PlatformVersion
		ev["kernel_version"] = info.KernelVersion
	}
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		ev["cpu_model"] = infos[0].ModelName
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		ev["mem_total_mb"] = vm.Total / 1024 / 1024
	}
	m.Record(eventHardware, ev)
}

// RecordSettingsSnapshot captures anonymized settings toggles.
func (m *Manager) RecordSettingsSnapshot(settings map[string]any) {
	m.Record(eventSettings, Event{"settings": settings})
}

// RecordPanelUsage captures aggregate time per panel.
func (m *Manager) RecordPanelUsage(panel string, seconds int) {
	m.Record(eventPanelUsage, Event{
		"panel":      panel,
		"duration_s": seconds,
	})
}

// RecordConnectionStability captures the reconnect churn of a session.
func (m *Manager) RecordConnectionStability(reconnects int, longestUp time.Duration) {
	m.Record(eventConnStability, Event{
		"reconnects":   reconnects,
		"longest_up_s": int(longestUp.Seconds()),
	})
}

// RecordPrintStartContext captures what a print started from.
func (m *Manager) RecordPrintStartContext(source string, queued bool, meshPoints int) {
	m.Record(eventPrintStart, Event{
		"source":      source,
		"queued":      queued,
		"mesh_points": meshPoints,
	})
}
