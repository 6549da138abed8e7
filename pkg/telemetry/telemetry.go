// Telemetry manager for HelixScreen
//
// Copyright (C) 2026 HelixScreen Contributors
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package telemetry implements optional, anonymized, batched delivery of
// aggregate usage events. Everything is off unless Config.Enabled is
// set; the queue is bounded and the device id is a salted double hash
// that cannot be reversed to the local UUID.
package telemetry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"helixscreen/pkg/log"
)

const (
	defaultStartupDelay = 2 * time.Minute
	defaultSendInterval = 15 * time.Minute
	defaultBatchSize    = 25
	persistInterval     = time.Hour
	errorRateWindow     = 5 * time.Minute
	maxBackoffFactor    = 32
)

// Config wires the manager. Endpoint and AuthToken come from the
// application config; DataDir holds identity, queue, and crash files.
type Config struct {
	Enabled      bool
	DataDir      string
	Endpoint     string
	AuthToken    string
	Version      string
	StartupDelay time.Duration
	SendInterval time.Duration
	BatchSize    int
}

// Manager owns the event queue and the background send loop.
type Manager struct {
	cfg    Config
	logger *log.Logger

	mu       sync.Mutex
	queue    eventQueue
	deviceID string
	lastErr  map[string]time.Time
	backoff  int

	startTime time.Time
	now       func() time.Time
	client    *http.Client

	stop chan struct{}
	wg   sync.WaitGroup
}

// NewManager loads identity and any persisted queue, and reports a crash
// flag left by the previous boot. Disabled telemetry still returns a
// working manager whose Record calls are no-ops.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.StartupDelay <= 0 {
		cfg.StartupDelay = defaultStartupDelay
	}
	if cfg.SendInterval <= 0 {
		cfg.SendInterval = defaultSendInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}

	m := &Manager{
		cfg:       cfg,
		logger:    log.New("Telemetry"),
		lastErr:   make(map[string]time.Time),
		backoff:   1,
		startTime: time.Now(),
		now:       time.Now,
		client:    &http.Client{Timeout: 30 * time.Second},
		stop:      make(chan struct{}),
	}
	if !cfg.Enabled {
		return m, nil
	}

	id, err := loadOrCreateIdentity(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	m.deviceID = id.DeviceID()
	m.queue.load(cfg.DataDir)

	if crash := readCrashFlag(cfg.DataDir); crash != nil {
		m.Record(eventCrash, crash)
	}
	return m, nil
}

// DeviceID returns the anonymized transmitted id, empty when disabled.
func (m *Manager) DeviceID() string {
	return m.deviceID
}

// Record stamps the envelope onto fields and enqueues the event.
func (m *Manager) Record(event string, fields Event) {
	if !m.cfg.Enabled {
		return
	}
	ev := Event{
		"schema_version": schemaVersion,
		"event":          event,
		"device_id":      m.deviceID,
		"timestamp":      m.now().UTC().Format(time.RFC3339),
		"version":        m.cfg.Version,
	}
	for k, v := range fields {
		ev[k] = v
	}

	m.mu.Lock()
	m.queue.push(ev)
	m.mu.Unlock()
}

// RecordError enqueues an error event, rate-limited per (category, code)
// so a flapping subsystem cannot fill the queue with one failure mode.
func (m *Manager) RecordError(category, code, message string) {
	if !m.cfg.Enabled {
		return
	}
	key := category + "/" + code
	now := m.now()

	m.mu.Lock()
	if last, ok := m.lastErr[key]; ok && now.Sub(last) < errorRateWindow {
		m.mu.Unlock()
		return
	}
	m.lastErr[key] = now
	m.mu.Unlock()

	m.Record(eventError, Event{
		"category": category,
		"code":     code,
		"message":  message,
	})
}

// QueueLen returns the number of pending events.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// Persist writes the queue to disk.
func (m *Manager) Persist() error {
	if !m.cfg.Enabled {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.save(m.cfg.DataDir)
}

// Start launches the send loop: a startup delay, then periodic batched
// sends with exponential backoff on failure, plus an hourly persist.
func (m *Manager) Start() {
	if !m.cfg.Enabled || m.cfg.Endpoint == "" {
		return
	}
	m.wg.Add(1)
	go m.sendLoop()
}

// Stop halts the send loop and persists the queue.
func (m *Manager) Stop() {
	if m.cfg.Enabled {
		close(m.stop)
		m.wg.Wait()
		if err := m.Persist(); err != nil {
			m.logger.Warn("final persist failed: %v", err)
		}
	}
}

func (m *Manager) sendLoop() {
	defer m.wg.Done()

	select {
	case <-time.After(m.cfg.StartupDelay):
	case <-m.stop:
		return
	}

	persist := time.NewTicker(persistInterval)
	defer persist.Stop()

	for {
		m.trySend()

		m.mu.Lock()
		wait := m.cfg.SendInterval * time.Duration(m.backoff)
		m.mu.Unlock()

		select {
		case <-time.After(wait):
		case <-persist.C:
			if err := m.Persist(); err != nil {
				m.logger.Warn("hourly persist failed: %v", err)
			}
		case <-m.stop:
			return
		}
	}
}

// trySend posts one batch. The batch stays on the queue until the server
// accepts it; success removes the prefix and persists.
func (m *Manager) trySend() {
	m.mu.Lock()
	batch := append([]Event(nil), m.queue.batch(m.cfg.BatchSize)...)
	m.mu.Unlock()
	if len(batch) == 0 {
		return
	}

	if err := m.post(batch); err != nil {
		m.mu.Lock()
		if m.backoff < maxBackoffFactor {
			m.backoff *= 2
		}
		m.mu.Unlock()
		m.logger.Debug("send failed (backoff x%d): %v", m.backoff, err)
		return
	}

	m.mu.Lock()
	m.queue.removePrefix(len(batch))
	m.backoff = 1
	m.mu.Unlock()
	if err := m.Persist(); err != nil {
		m.logger.Warn("post-send persist failed: %v", err)
	}
	m.logger.Debug("sent %d events", len(batch))
}

func (m *Manager) post(batch []Event) error {
	body, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, m.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+m.cfg.AuthToken)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry endpoint returned %s", resp.Status)
	}
	return nil
}
