package widgets

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Def describes one widget type in the catalog.
type Def struct {
	ID             string
	DisplayName    string
	Icon           string
	Description    string
	TranslationTag string

	// HardwareGate names a capability-gate subject; the widget is only
	// placed while the gate is non-zero. Empty means always available.
	HardwareGate string

	DefaultEnabled bool
	DefaultColspan int
	DefaultRowspan int
	MinColspan     int
	MaxColspan     int
	MinRowspan     int
	MaxRowspan     int

	// Factory builds the widget's view object; nil for XML-defined
	// widgets. InitSubjects registers the widget's own subjects; nil
	// when the widget binds only global subjects.
	Factory      func() any
	InitSubjects func() error
}

// Resizable reports whether the definition permits resizing on at least
// one axis.
func (d *Def) Resizable() bool {
	return d.MinColspan < d.MaxColspan || d.MinRowspan < d.MaxRowspan
}

// ClampSpan clamps a requested span to the definition's limits.
func (d *Def) ClampSpan(colspan, rowspan int) (int, int) {
	if colspan < d.MinColspan {
		colspan = d.MinColspan
	}
	if colspan > d.MaxColspan {
		colspan = d.MaxColspan
	}
	if rowspan < d.MinRowspan {
		rowspan = d.MinRowspan
	}
	if rowspan > d.MaxRowspan {
		rowspan = d.MaxRowspan
	}
	return colspan, rowspan
}

// Registry holds the widget catalog. Definitions register at runtime
// during startup, not at package init, so registration order is explicit
// and shared singletons exist first.
type Registry struct {
	mu   sync.Mutex
	defs map[string]*Def
}

// NewDefRegistry creates an empty catalog.
func NewDefRegistry() *Registry {
	return &Registry{defs: make(map[string]*Def)}
}

// Register adds a definition. Re-registering an id is an error.
func (r *Registry) Register(d *Def) error {
	if d.ID == "" {
		return fmt.Errorf("widgets: definition without id")
	}
	if d.DefaultColspan < 1 {
		d.DefaultColspan = 1
	}
	if d.DefaultRowspan < 1 {
		d.DefaultRowspan = 1
	}
	if d.MinColspan < 1 {
		d.MinColspan = d.DefaultColspan
	}
	if d.MaxColspan < d.MinColspan {
		d.MaxColspan = d.MinColspan
	}
	if d.MinRowspan < 1 {
		d.MinRowspan = d.DefaultRowspan
	}
	if d.MaxRowspan < d.MinRowspan {
		d.MaxRowspan = d.MinRowspan
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[d.ID]; ok {
		return fmt.Errorf("widgets: %q already registered", d.ID)
	}
	r.defs[d.ID] = d
	return nil
}

// Get returns the definition for id.
func (r *Registry) Get(id string) (*Def, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.defs[id]
	return d, ok
}

// IDs returns all registered ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.defs))
	for id := range r.defs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Entry is one configured widget instance on a panel. Negative Col/Row
// means auto-place; an entry with Col >= 0 is pinned and never moved by
// auto-placement.
type Entry struct {
	ID      string          `json:"id"`
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
	Col     int             `json:"col"`
	Row     int             `json:"row"`
	Colspan int             `json:"colspan"`
	Rowspan int             `json:"rowspan"`
}

// Pinned reports whether the user fixed this entry's position.
func (e *Entry) Pinned() bool {
	return e.Col >= 0
}
