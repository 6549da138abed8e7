// Bounded telemetry event queue for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package telemetry

import (
	"encoding/json"
	"os"
	"path/filepath"

	"helixscreen/pkg/errors"
)

const (
	queueFile = "queue.json"
	queueCap  = 100
)

// Event is one telemetry record. The manager stamps the envelope fields
// (schema_version, event, device_id, timestamp) on enqueue.
type Event map[string]any

// eventQueue is a bounded FIFO. Overflow drops the oldest events; flash
// wear is kept down by persisting only at shutdown, after a successful
// send, and on an hourly timer, never per record.
type eventQueue struct {
	events []Event
}

// push appends an event, dropping from the front at capacity.
func (q *eventQueue) push(ev Event) {
	q.events = append(q.events, ev)
	if len(q.events) > queueCap {
		q.events = q.events[len(q.events)-queueCap:]
	}
}

// batch returns up to n events from the front without removing them.
func (q *eventQueue) batch(n int) []Event {
	if n > len(q.events) {
		n = len(q.events)
	}
	return q.events[:n]
}

// removePrefix drops the first n events after a successful send.
func (q *eventQueue) removePrefix(n int) {
	if n > len(q.events) {
		n = len(q.events)
	}
	q.events = q.events[n:]
}

func (q *eventQueue) len() int {
	return len(q.events)
}

// save writes the queue as one JSON array, atomically via rename.
func (q *eventQueue) save(dataDir string) error {
	data, err := json.Marshal(q.events)
	if err != nil {
		return errors.IOError("queue marshal", err)
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return errors.IOError("telemetry dir", err)
	}
	path := filepath.Join(dataDir, queueFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.IOError("queue write", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.IOError("queue rename", err)
	}
	return nil
}

// load restores a previously saved queue; a missing file is an empty
// queue, a corrupt file is discarded.
func (q *eventQueue) load(dataDir string) {
	data, err := os.ReadFile(filepath.Join(dataDir, queueFile))
	if err != nil {
		return
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return
	}
	if len(events) > queueCap {
		events = events[len(events)-queueCap:]
	}
	q.events = events
}
