// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		Enabled: true,
		DataDir: t.TempDir(),
		Version: "1.0.0-test",
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDeviceIDDerivation(t *testing.T) {
	id := &identity{UUID: "5f8b3a1e-0000-4000-8000-000000000000", Salt: "abcdef"}

	inner := sha256.Sum256([]byte(id.UUID))
	outer := sha256.Sum256(append(inner[:], []byte(id.Salt)...))
	want := hex.EncodeToString(outer[:])

	if got := id.DeviceID(); got != want {
		t.Errorf("device id = %s, want %s", got, want)
	}
	if id.DeviceID() == id.UUID {
		t.Error("raw uuid leaked as device id")
	}
}

func TestIdentityPersistsAcrossRuns(t *testing.T) {
	dir := t.TempDir()
	first, err := loadOrCreateIdentity(dir)
	if err != nil {
		t.Fatal(err)
	}
	second, err := loadOrCreateIdentity(dir)
	if err != nil {
		t.Fatal(err)
	}
	if first.UUID != second.UUID || first.Salt != second.Salt {
		t.Error("identity not stable across runs")
	}
}

func TestQueueDropsOldestAtCapacity(t *testing.T) {
	var q eventQueue
	for i := 0; i < queueCap+10; i++ {
		q.push(Event{"n": i})
	}
	if q.len() != queueCap {
		t.Fatalf("len = %d, want %d", q.len(), queueCap)
	}
	if q.events[0]["n"] != 10 {
		t.Errorf("oldest = %v, want 10", q.events[0]["n"])
	}
	if q.events[queueCap-1]["n"] != queueCap+9 {
		t.Errorf("newest = %v", q.events[queueCap-1]["n"])
	}
}

func TestQueueJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	var q eventQueue
	q.push(Event{"event": "session", "duration_s": float64(12)})
	q.push(Event{"event": "error", "code": "timeout"})
	if err := q.save(dir); err != nil {
		t.Fatal(err)
	}

	// The persisted form is a single JSON array.
	data, err := os.ReadFile(filepath.Join(dir, queueFile))
	if err != nil {
		t.Fatal(err)
	}
	var arr []map[string]any
	if err := json.Unmarshal(data, &arr); err != nil {
		t.Fatalf("not a JSON array: %v", err)
	}

	var loaded eventQueue
	loaded.load(dir)
	if loaded.len() != 2 {
		t.Fatalf("loaded %d events", loaded.len())
	}
	if loaded.events[0]["event"] != "session" || loaded.events[1]["code"] != "timeout" {
		t.Errorf("loaded = %v", loaded.events)
	}
}

func TestBatchDoesNotRemove(t *testing.T) {
	var q eventQueue
	for i := 0; i < 5; i++ {
		q.push(Event{"n": i})
	}
	b := q.batch(3)
	if len(b) != 3 || q.len() != 5 {
		t.Fatalf("batch = %d, queue = %d", len(b), q.len())
	}
	q.removePrefix(3)
	if q.len() != 2 || q.events[0]["n"] != 3 {
		t.Errorf("after remove: len = %d, head = %v", q.len(), q.events[0]["n"])
	}
}

func TestRecordStampsEnvelope(t *testing.T) {
	m := newTestManager(t)
	m.now = func() time.Time {
		return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	}
	m.RecordPanelUsage("home", 42)

	if m.QueueLen() != 1 {
		t.Fatalf("queue len = %d", m.QueueLen())
	}
	ev := m.queue.events[0]
	if ev["schema_version"] != schemaVersion || ev["event"] != eventPanelUsage {
		t.Errorf("envelope = %v", ev)
	}
	if ev["device_id"] != m.DeviceID() || ev["device_id"] == "" {
		t.Error("device id missing")
	}
	if ev["timestamp"] != "2026-05-01T08:00:00Z" {
		t.Errorf("timestamp = %v", ev["timestamp"])
	}
	if ev["panel"] != "home" || ev["duration_s"] != 42 {
		t.Errorf("payload = %v", ev)
	}
}

func TestDisabledManagerRecordsNothing(t *testing.T) {
	m, err := NewManager(Config{Enabled: false, DataDir: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	m.RecordPanelUsage("home", 1)
	m.RecordError("a", "b", "c")
	if m.QueueLen() != 0 {
		t.Errorf("disabled manager queued %d events", m.QueueLen())
	}
}

func TestErrorRateLimit(t *testing.T) {
	m := newTestManager(t)
	base := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	now := base
	m.now = func() time.Time { return now }

	m.RecordError("moonraker", "timeout", "first")
	m.RecordError("moonraker", "timeout", "suppressed")
	m.RecordError("moonraker", "refused", "different code")
	if m.QueueLen() != 2 {
		t.Fatalf("queue len = %d, want 2", m.QueueLen())
	}

	now = base.Add(errorRateWindow + time.Second)
	m.RecordError("moonraker", "timeout", "after window")
	if m.QueueLen() != 3 {
		t.Errorf("queue len = %d, want 3", m.QueueLen())
	}
}

func TestSendBatchRemovesPrefixOnSuccess(t *testing.T) {
	var mu sync.Mutex
	var received [][]map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var batch []map[string]any
		json.NewDecoder(r.Body).Decode(&batch)
		mu.Lock()
		received = append(received, batch)
		auth = r.Header.Get("Authorization")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m, err := NewManager(Config{
		Enabled:   true,
		DataDir:   t.TempDir(),
		Endpoint:  srv.URL,
		AuthToken: "token-123",
		BatchSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		m.Record("test", Event{"n": i})
	}

	m.trySend()
	mu.Lock()
	got := len(received)
	gotAuth := auth
	mu.Unlock()
	if got != 1 || len(received[0]) != 2 {
		t.Fatalf("received = %v", received)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("auth header = %q", gotAuth)
	}
	if m.QueueLen() != 1 {
		t.Errorf("queue len after send = %d, want 1", m.QueueLen())
	}
}

func TestSendFailureBacksOffAndKeepsEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	m, err := NewManager(Config{
		Enabled:  true,
		DataDir:  t.TempDir(),
		Endpoint: srv.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	m.Record("test", Event{"n": 1})

	m.trySend()
	if m.QueueLen() != 1 {
		t.Errorf("failed send removed events: len = %d", m.QueueLen())
	}
	if m.backoff != 2 {
		t.Errorf("backoff = %d, want 2", m.backoff)
	}
	m.trySend()
	if m.backoff != 4 {
		t.Errorf("backoff = %d, want 4", m.backoff)
	}
}

func TestCrashFlagRoundTrip(t *testing.T) {
	dir := t.TempDir()
	WriteCrashFlag(dir, "1.0.0", "SIGSEGV", 90*time.Second)

	flag := readCrashFlag(dir)
	if flag == nil {
		t.Fatal("crash flag not read back")
	}
	if flag["signal"] != "SIGSEGV" || flag["uptime_s"] != float64(90) {
		t.Errorf("flag = %v", flag)
	}
	if flag["backtrace"] == "" {
		t.Error("no backtrace captured")
	}

	// Consumed on read.
	if readCrashFlag(dir) != nil {
		t.Error("crash flag not consumed")
	}
}

func TestCrashFlagReportedOnBoot(t *testing.T) {
	dir := t.TempDir()
	WriteCrashFlag(dir, "1.0.0", "SIGABRT", time.Minute)

	m, err := NewManager(Config{Enabled: true, DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if m.QueueLen() != 1 {
		t.Fatalf("queue len = %d, want 1 crash event", m.QueueLen())
	}
	if m.queue.events[0]["event"] != eventCrash {
		t.Errorf("event = %v", m.queue.events[0]["event"])
	}

	// Persist across "restarts" happens via the queue, not the flag.
	m2, err := NewManager(Config{Enabled: true, DataDir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if m2.QueueLen() != 0 {
		t.Errorf("crash double-reported: len = %d", m2.QueueLen())
	}
}

func TestManagerQueueOverflow(t *testing.T) {
	m := newTestManager(t)
	for i := 0; i < queueCap+5; i++ {
		m.Record("test", Event{"n": i})
	}
	if m.QueueLen() != queueCap {
		t.Errorf("queue len = %d, want %d", m.QueueLen(), queueCap)
	}
	if err := m.Persist(); err != nil {
		t.Fatal(err)
	}
	var q eventQueue
	q.load(m.cfg.DataDir)
	if q.len() != queueCap {
		t.Errorf("persisted %d events", q.len())
	}
}
