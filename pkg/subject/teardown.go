package subject

import (
	"sync"

	"helixscreen/pkg/log"
)

var teardownLog = log.New("Teardown")

// TeardownRegistry collects deinit closures from singletons as they are
// created and runs them in reverse registration order at shutdown, so
// dependents release before their dependencies.
type TeardownRegistry struct {
	mu    sync.Mutex
	funcs []namedTeardown
	done  bool
}

type namedTeardown struct {
	name string
	fn   func()
}

// NewTeardownRegistry creates an empty registry.
func NewTeardownRegistry() *TeardownRegistry {
	return &TeardownRegistry{}
}

// Register appends a named teardown closure. Registration after Execute
// is ignored.
func (t *TeardownRegistry) Register(name string, fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.funcs = append(t.funcs, namedTeardown{name: name, fn: fn})
}

// Execute runs all registered teardowns in LIFO order. Runs at most once;
// subsequent calls are no-ops.
func (t *TeardownRegistry) Execute() {
	t.mu.Lock()
	if t.done {
		t.mu.Unlock()
		return
	}
	t.done = true
	funcs := t.funcs
	t.funcs = nil
	t.mu.Unlock()

	for i := len(funcs) - 1; i >= 0; i-- {
		teardownLog.Debug("tearing down %s", funcs[i].name)
		funcs[i].fn()
	}
}

// Len returns the number of pending teardowns.
func (t *TeardownRegistry) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.funcs)
}

var (
	defaultTeardown     *TeardownRegistry
	defaultTeardownOnce sync.Once
)

// DefaultTeardown returns the process-wide teardown registry executed on
// shutdown.
func DefaultTeardown() *TeardownRegistry {
	defaultTeardownOnce.Do(func() {
		defaultTeardown = NewTeardownRegistry()
	})
	return defaultTeardown
}
