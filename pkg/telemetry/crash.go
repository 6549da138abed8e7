// Crash flag handling for HelixScreen telemetry
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

const crashFile = "crash.json"

// WriteCrashFlag records a fatal signal for the next boot to report.
// Called from the signal handler, so it does the minimum: one small file
// write, no locks.
func WriteCrashFlag(dataDir, version, signal string, uptime time.Duration) {
	buf := make([]byte, 16*1024)
	n := runtime.Stack(buf, true)

	flag := Event{
		"signal":    signal,
		"backtrace": string(buf[:n]),
		"uptime_s":  int(uptime.Seconds()),
		"version":   version,
	}
	data, err := json.Marshal(flag)
	if err != nil {
		return
	}
	_ = os.WriteFile(filepath.Join(dataDir, crashFile), data, 0o644)
}

// readCrashFlag consumes a crash flag left by the previous run.
func readCrashFlag(dataDir string) Event {
	path := filepath.Join(dataDir, crashFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	os.Remove(path)

	var flag Event
	if err := json.Unmarshal(data, &flag); err != nil {
		return nil
	}
	return flag
}
