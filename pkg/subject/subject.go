// Package subject provides the observable cells that drive UI repaints.
// A Subject is a typed value with an ordered list of observers fired
// synchronously on mutation. Writes belong on the UI goroutine; background
// goroutines publish through an UpdateQueue drained once per UI tick.
package subject

import (
	"sync"
	"sync/atomic"
)

// Type identifies the value variant a Subject holds. The type is fixed
// at construction.
type Type int

const (
	TypeInt Type = iota
	TypeFloat
	TypeString
	TypeColor
	TypePointer
	TypeGroup
)

func (t Type) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	case TypeString:
		return "string"
	case TypeColor:
		return "color"
	case TypePointer:
		return "pointer"
	case TypeGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Observer is invoked synchronously when the subject's value changes.
type Observer func(s *Subject)

// ObserverHandle identifies a registered observer for removal.
type ObserverHandle uint64

type observerEntry struct {
	id ObserverHandle
	fn Observer
}

// Subject is a typed observable cell.
//
// Observer lists are only touched from the UI goroutine (add/remove/fire).
// The value itself is guarded by a mutex so Get* is safe from any
// goroutine; a reader may observe the last-written value (stale reads are
// tolerable by design).
type Subject struct {
	typ Type

	mu       sync.Mutex
	intVal   int64
	floatVal float64
	colorVal uint32
	ptrVal   interface{}
	strBuf   []byte
	strLen   int

	observers []observerEntry
	nextObs   uint64

	members []*Subject // group members
}

// NewInt creates an integer subject.
func NewInt(initial int64) *Subject {
	return &Subject{typ: TypeInt, intVal: initial}
}

// NewFloat creates a float subject.
func NewFloat(initial float64) *Subject {
	return &Subject{typ: TypeFloat, floatVal: initial}
}

// NewColor creates a color subject holding a 0xAARRGGBB value.
func NewColor(initial uint32) *Subject {
	return &Subject{typ: TypeColor, colorVal: initial}
}

// NewPointer creates a pointer subject.
func NewPointer(initial interface{}) *Subject {
	return &Subject{typ: TypePointer, ptrVal: initial}
}

// NewString creates a string subject with a fixed-capacity buffer.
// Values longer than capacity are truncated on write.
func NewString(capacity int, initial string) *Subject {
	if capacity < 1 {
		capacity = 1
	}
	s := &Subject{typ: TypeString, strBuf: make([]byte, capacity)}
	s.strLen = copy(s.strBuf, initial)
	return s
}

// NewGroup creates a group subject that fires when Notify is called or
// when any member changes (members forward through their own observers).
func NewGroup(members ...*Subject) *Subject {
	g := &Subject{typ: TypeGroup, members: members}
	for _, m := range members {
		m.AddObserver(func(*Subject) { g.fire() })
	}
	return g
}

// Kind returns the subject's fixed type.
func (s *Subject) Kind() Type {
	return s.typ
}

// AddObserver registers fn and returns a handle for removal. Observers
// fire in registration order. UI goroutine only.
func (s *Subject) AddObserver(fn Observer) ObserverHandle {
	id := ObserverHandle(atomic.AddUint64(&s.nextObs, 1))
	s.observers = append(s.observers, observerEntry{id: id, fn: fn})
	return id
}

// RemoveObserver unregisters the observer with the given handle.
// UI goroutine only.
func (s *Subject) RemoveObserver(h ObserverHandle) {
	for i, e := range s.observers {
		if e.id == h {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// ObserverCount returns the number of registered observers.
func (s *Subject) ObserverCount() int {
	return len(s.observers)
}

// fire invokes all observers in registration order on the calling
// goroutine. A snapshot is taken so observers may remove themselves.
func (s *Subject) fire() {
	snapshot := make([]observerEntry, len(s.observers))
	copy(snapshot, s.observers)
	for _, e := range snapshot {
		e.fn(s)
	}
}

// Notify fires observers without changing the value. Used by group
// subjects and for forcing an initial sync after binding.
func (s *Subject) Notify() {
	s.fire()
}

// SetInt writes an integer value. Equal values are a no-op and do not
// fire observers. UI goroutine only.
func (s *Subject) SetInt(v int64) {
	s.mu.Lock()
	if s.intVal == v {
		s.mu.Unlock()
		return
	}
	s.intVal = v
	s.mu.Unlock()
	s.fire()
}

// GetInt reads the integer value. Safe from any goroutine.
func (s *Subject) GetInt() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intVal
}

// SetFloat writes a float value. Equal values are a no-op.
func (s *Subject) SetFloat(v float64) {
	s.mu.Lock()
	if s.floatVal == v {
		s.mu.Unlock()
		return
	}
	s.floatVal = v
	s.mu.Unlock()
	s.fire()
}

// GetFloat reads the float value.
func (s *Subject) GetFloat() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.floatVal
}

// SetColor writes a color value. Equal values are a no-op.
func (s *Subject) SetColor(v uint32) {
	s.mu.Lock()
	if s.colorVal == v {
		s.mu.Unlock()
		return
	}
	s.colorVal = v
	s.mu.Unlock()
	s.fire()
}

// GetColor reads the color value.
func (s *Subject) GetColor() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.colorVal
}

// SetPointer writes a pointer value. Equal pointers are a no-op.
func (s *Subject) SetPointer(v interface{}) {
	s.mu.Lock()
	if s.ptrVal == v {
		s.mu.Unlock()
		return
	}
	s.ptrVal = v
	s.mu.Unlock()
	s.fire()
}

// GetPointer reads the pointer value.
func (s *Subject) GetPointer() interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ptrVal
}

// SetString copies v into the fixed-capacity buffer, truncating at
// capacity. An equal value is a no-op.
func (s *Subject) SetString(v string) {
	s.mu.Lock()
	if s.strLen == len(v) && string(s.strBuf[:s.strLen]) == v {
		s.mu.Unlock()
		return
	}
	s.strLen = copy(s.strBuf, v)
	s.mu.Unlock()
	s.fire()
}

// GetString reads the string value. Safe from any goroutine.
func (s *Subject) GetString() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.strBuf[:s.strLen])
}

// Capacity returns the string buffer capacity (0 for non-string subjects).
func (s *Subject) Capacity() int {
	return len(s.strBuf)
}
