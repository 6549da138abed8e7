package subject

import (
	"fmt"
	"runtime"
	"sort"
	"sync"

	"helixscreen/pkg/log"
)

var registryLog = log.New("SubjectRegistry")

// GlobalScope is the scope used for XML bind names visible everywhere.
const GlobalScope = ""

// Meta records debug metadata for a registered subject.
type Meta struct {
	Name   string
	Type   Type
	Source string // file:line of the registration call
}

// Registry maps (scope, name) to subjects so XML bind attributes can be
// resolved by name. Scopes isolate component-internal subjects from
// global names. UI goroutine only.
type Registry struct {
	scopes map[string]map[string]*Subject
	meta   map[*Subject]Meta
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		scopes: map[string]map[string]*Subject{GlobalScope: {}},
		meta:   make(map[*Subject]Meta),
	}
}

// Register binds name to s within scope. Registration is idempotent:
// re-registering the same pointer refreshes metadata. Registering a
// different pointer under an existing name is an error.
func (r *Registry) Register(scope, name string, s *Subject) error {
	if name == "" {
		return fmt.Errorf("subject: empty registration name")
	}

	m, ok := r.scopes[scope]
	if !ok {
		m = make(map[string]*Subject)
		r.scopes[scope] = m
	}

	if existing, ok := m[name]; ok && existing != s {
		return fmt.Errorf("subject: name %q already registered in scope %q", name, scope)
	}

	m[name] = s

	_, file, line, _ := runtime.Caller(1)
	r.meta[s] = Meta{
		Name:   name,
		Type:   s.Kind(),
		Source: fmt.Sprintf("%s:%d", file, line),
	}
	return nil
}

// Lookup resolves name in scope, falling back to the global scope.
func (r *Registry) Lookup(scope, name string) *Subject {
	if scope != GlobalScope {
		if m, ok := r.scopes[scope]; ok {
			if s, ok := m[name]; ok {
				return s
			}
		}
	}
	if s, ok := r.scopes[GlobalScope][name]; ok {
		return s
	}
	return nil
}

// Unregister removes the binding for name in scope.
func (r *Registry) Unregister(scope, name string) {
	m, ok := r.scopes[scope]
	if !ok {
		return
	}
	if s, ok := m[name]; ok {
		delete(r.meta, s)
		delete(m, name)
	}
}

// RemoveScope drops an entire component scope.
func (r *Registry) RemoveScope(scope string) {
	if scope == GlobalScope {
		return
	}
	for _, s := range r.scopes[scope] {
		delete(r.meta, s)
	}
	delete(r.scopes, scope)
}

// MetaFor returns the debug metadata recorded for s.
func (r *Registry) MetaFor(s *Subject) (Meta, bool) {
	m, ok := r.meta[s]
	return m, ok
}

// Names returns all registered names in scope, sorted.
func (r *Registry) Names(scope string) []string {
	m := r.scopes[scope]
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dump logs every registered subject with its metadata. Diagnostics aid
// for tracking leaked or stale registrations.
func (r *Registry) Dump() {
	for scope, m := range r.scopes {
		for name, s := range m {
			meta := r.meta[s]
			registryLog.Debug("scope=%q name=%s type=%s source=%s",
				scope, name, s.Kind(), meta.Source)
		}
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
