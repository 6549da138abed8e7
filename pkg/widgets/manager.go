package widgets

import (
	"encoding/json"
	"time"

	"helixscreen/pkg/config"
	"helixscreen/pkg/log"
	"helixscreen/pkg/subject"
)

// rebuildWindow batches gate-driven rebuilds; several gates changing in
// the same tick produce one rebuild.
const rebuildWindow = 300 * time.Millisecond

// Manager owns the configured widget entries for one panel and keeps
// their grid placements valid as hardware gates change.
//
// Single-threaded (UI goroutine); re-entrancy during a rebuild is
// guarded with the populating flag.
type Manager struct {
	logger *log.Logger

	defs     *Registry
	cfg      *config.Config
	subjects *subject.Registry
	panelID  string

	breakpoint Breakpoint
	entries    []*Entry
	layout     *GridLayout

	populating   bool
	rebuildTimer *subject.CoalescedTimer
	gateGuards   subject.GuardSet

	// Notify surfaces placement failures to the user. Optional.
	Notify func(message string)

	// OnRebuilt runs after each completed rebuild so the panel can
	// re-create its widget views. Optional.
	OnRebuilt func()
}

// NewManager creates a manager for one panel.
func NewManager(defs *Registry, cfg *config.Config, subjects *subject.Registry,
	queue *subject.UpdateQueue, panelID string, bp Breakpoint) *Manager {
	return &Manager{
		logger:       log.New("WidgetManager"),
		defs:         defs,
		cfg:          cfg,
		subjects:     subjects,
		panelID:      panelID,
		breakpoint:   bp,
		layout:       NewGridLayout(bp),
		rebuildTimer: subject.NewCoalescedTimer(queue, rebuildWindow),
	}
}

func (m *Manager) configPath() string {
	return "/panel_widgets/" + m.panelID
}

// Load reads the panel's entries from config and seeds defaults for
// catalog widgets not yet configured. Malformed entries are skipped so
// startup continues.
func (m *Manager) Load() {
	m.entries = nil

	raw, ok := m.cfg.GetRaw(m.configPath())
	if ok {
		data, err := json.Marshal(raw)
		if err == nil {
			var entries []*Entry
			if err := json.Unmarshal(data, &entries); err != nil {
				m.logger.Warn("invalid widget config for %s: %v", m.panelID, err)
			} else {
				for _, e := range entries {
					if _, known := m.defs.Get(e.ID); !known {
						m.logger.Warn("dropping unknown widget %q", e.ID)
						continue
					}
					m.entries = append(m.entries, e)
				}
			}
		}
	}

	// Seed catalog widgets missing from the config.
	for _, id := range m.defs.IDs() {
		if m.entry(id) != nil {
			continue
		}
		d, _ := m.defs.Get(id)
		m.entries = append(m.entries, &Entry{
			ID:      id,
			Enabled: d.DefaultEnabled,
			Col:     -1,
			Row:     -1,
			Colspan: d.DefaultColspan,
			Rowspan: d.DefaultRowspan,
		})
	}
}

// Save persists the entries and writes the config file.
func (m *Manager) Save() error {
	data, err := json.Marshal(m.entries)
	if err != nil {
		return err
	}
	var plain []interface{}
	if err := json.Unmarshal(data, &plain); err != nil {
		return err
	}
	if err := m.cfg.Set(m.configPath(), plain); err != nil {
		return err
	}
	return m.cfg.Save()
}

// Entries returns the configured entries.
func (m *Manager) Entries() []*Entry {
	return m.entries
}

// Layout returns the current placement layout.
func (m *Manager) Layout() *GridLayout {
	return m.layout
}

func (m *Manager) entry(id string) *Entry {
	for _, e := range m.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// Entry returns the configured entry for a widget id.
func (m *Manager) Entry(id string) *Entry {
	return m.entry(id)
}

// Visible reports whether the entry should currently be rendered:
// enabled and, if gated, the gate subject is non-zero.
func (m *Manager) Visible(e *Entry) bool {
	if !e.Enabled {
		return false
	}
	d, ok := m.defs.Get(e.ID)
	if !ok {
		return false
	}
	if d.HardwareGate == "" {
		return true
	}
	gate := m.subjects.Lookup(subject.GlobalScope, d.HardwareGate)
	if gate == nil {
		return false
	}
	return gate.GetInt() != 0
}

// WatchGates observes every gate subject referenced by the catalog and
// schedules a coalesced rebuild when any of them changes.
func (m *Manager) WatchGates() {
	for _, id := range m.defs.IDs() {
		d, _ := m.defs.Get(id)
		if d.HardwareGate == "" {
			continue
		}
		gate := m.subjects.Lookup(subject.GlobalScope, d.HardwareGate)
		if gate == nil {
			m.logger.Warn("widget %q references unknown gate %q", id, d.HardwareGate)
			continue
		}
		m.gateGuards.Observe(gate, func(*subject.Subject) {
			m.ScheduleRebuild()
		})
	}

	// klippy_state drives the injected firmware restart entry.
	if _, ok := m.defs.Get(firmwareRestartWidget); ok {
		if st := m.subjects.Lookup(subject.GlobalScope, "klippy_state"); st != nil {
			m.gateGuards.Observe(st, func(*subject.Subject) {
				m.ScheduleRebuild()
			})
		}
	}
}

// UnwatchGates releases all gate observers.
func (m *Manager) UnwatchGates() {
	m.gateGuards.ReleaseAll()
}

// ScheduleRebuild requests a rebuild through the coalescing timer.
func (m *Manager) ScheduleRebuild() {
	m.rebuildTimer.Schedule(func() {
		m.Rebuild()
		if err := m.Save(); err != nil {
			m.logger.Warn("persist after rebuild failed: %v", err)
		}
	})
}

// Rebuild recomputes the layout: pinned entries keep their cells,
// auto-placed entries are packed, and anything that no longer fits is
// disabled with a notification. Re-entrant calls are ignored.
func (m *Manager) Rebuild() {
	if m.populating {
		return
	}
	m.populating = true
	defer func() { m.populating = false }()

	m.syncFirmwareRestart()
	m.layout = NewGridLayout(m.breakpoint)

	// Pass 1: pinned entries at their stored cells.
	for _, e := range m.entries {
		if !m.Visible(e) || !e.Pinned() {
			continue
		}
		d, _ := m.defs.Get(e.ID)
		cs, rs := d.ClampSpan(e.Colspan, e.Rowspan)
		if !m.layout.CanPlace(e.Col, e.Row, cs, rs) {
			m.disableWithNotice(e, "no longer fits at its saved position")
			continue
		}
		e.Colspan, e.Rowspan = cs, rs
		m.layout.Place(Placement{WidgetID: e.ID, Col: e.Col, Row: e.Row, Colspan: cs, Rowspan: rs})
	}

	// Pass 2: auto-place multi-cell entries bottom-row-first so the top
	// of the grid stays visually stable.
	for _, e := range m.entries {
		if !m.Visible(e) || e.Pinned() {
			continue
		}
		d, _ := m.defs.Get(e.ID)
		cs, rs := d.ClampSpan(e.Colspan, e.Rowspan)
		if cs == 1 && rs == 1 {
			continue
		}
		col, row, ok := m.layout.FindAvailableBottomFirst(cs, rs)
		if !ok {
			m.disableWithNotice(e, "does not fit on the grid")
			continue
		}
		e.Colspan, e.Rowspan = cs, rs
		m.layout.Place(Placement{WidgetID: e.ID, Col: col, Row: row, Colspan: cs, Rowspan: rs})
	}

	// Pass 3: 1x1 entries fill from the bottom-right corner.
	for _, e := range m.entries {
		if !m.Visible(e) || e.Pinned() {
			continue
		}
		d, _ := m.defs.Get(e.ID)
		cs, rs := d.ClampSpan(e.Colspan, e.Rowspan)
		if cs != 1 || rs != 1 {
			continue
		}
		col, row, ok := m.layout.FindAvailableBottomRightFirst(1, 1)
		if !ok {
			m.disableWithNotice(e, "does not fit on the grid")
			continue
		}
		m.layout.Place(Placement{WidgetID: e.ID, Col: col, Row: row, Colspan: 1, Rowspan: 1})
	}

	if m.OnRebuilt != nil {
		m.OnRebuilt()
	}
}

// firmwareRestartWidget is injected while Klipper is not ready so
// recovery is one tap away, and retired once it reports ready again.
const firmwareRestartWidget = "firmware_restart"

func (m *Manager) syncFirmwareRestart() {
	st := m.subjects.Lookup(subject.GlobalScope, "klippy_state")
	if st == nil {
		return
	}
	if _, ok := m.defs.Get(firmwareRestartWidget); !ok {
		return
	}
	ready := st.GetString() == "ready"
	e := m.entry(firmwareRestartWidget)
	switch {
	case !ready && e == nil:
		m.entries = append(m.entries, &Entry{
			ID: firmwareRestartWidget, Enabled: true,
			Col: -1, Row: -1, Colspan: 1, Rowspan: 1,
		})
	case !ready && e != nil:
		e.Enabled = true
	case ready && e != nil:
		e.Enabled = false
	}
}

func (m *Manager) disableWithNotice(e *Entry, reason string) {
	e.Enabled = false
	m.logger.Warn("widget %q disabled: %s", e.ID, reason)
	if m.Notify != nil {
		d, _ := m.defs.Get(e.ID)
		name := e.ID
		if d != nil && d.DisplayName != "" {
			name = d.DisplayName
		}
		m.Notify(name + " was removed: " + reason)
	}
}

// Pin stores an explicit position for the entry, making it immune to
// auto-placement reshuffles.
func (m *Manager) Pin(id string, col, row, colspan, rowspan int) bool {
	e := m.entry(id)
	if e == nil {
		return false
	}
	d, ok := m.defs.Get(id)
	if !ok {
		return false
	}
	cs, rs := d.ClampSpan(colspan, rowspan)
	if !m.layout.CanPlaceExcept(col, row, cs, rs, id) {
		return false
	}
	e.Col, e.Row, e.Colspan, e.Rowspan = col, row, cs, rs
	return true
}

// Enable re-adds a catalog widget. Placement happens on the next rebuild.
func (m *Manager) Enable(id string) bool {
	e := m.entry(id)
	if e == nil {
		return false
	}
	e.Enabled = true
	return true
}

// Disable removes a widget from the grid; it stays in the catalog.
func (m *Manager) Disable(id string) bool {
	e := m.entry(id)
	if e == nil {
		return false
	}
	e.Enabled = false
	e.Col, e.Row = -1, -1
	return true
}

// AvailableForCatalog returns ids of visible-capable widgets not
// currently placed, for the edit-mode catalog list.
func (m *Manager) AvailableForCatalog() []string {
	var out []string
	for _, id := range m.defs.IDs() {
		e := m.entry(id)
		if e == nil || e.Enabled {
			continue
		}
		d, _ := m.defs.Get(id)
		if d.HardwareGate != "" {
			gate := m.subjects.Lookup(subject.GlobalScope, d.HardwareGate)
			if gate == nil || gate.GetInt() == 0 {
				continue
			}
		}
		out = append(out, id)
	}
	return out
}

// SyncPinsToLayout copies the current layout positions into the entries,
// pinning every placed widget. Edit mode calls this on entry so that
// persisted coordinates match what is on screen even after hardware
// discovery reshuffled the layout.
func (m *Manager) SyncPinsToLayout() {
	for _, p := range m.layout.Placements() {
		if e := m.entry(p.WidgetID); e != nil {
			e.Col, e.Row = p.Col, p.Row
			e.Colspan, e.Rowspan = p.Colspan, p.Rowspan
		}
	}
}
