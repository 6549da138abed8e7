package subject

// Guard is an observer handle that unregisters itself on Release.
// Widgets store guards so observers die with the widget, preventing
// callbacks from firing on freed state. UI goroutine only.
type Guard struct {
	subject *Subject
	handle  ObserverHandle
	active  bool
}

// Observe registers fn on s and returns a guard that removes it.
func Observe(s *Subject, fn Observer) *Guard {
	return &Guard{
		subject: s,
		handle:  s.AddObserver(fn),
		active:  true,
	}
}

// ObserveSync registers fn and fires it once immediately so bound state
// starts in sync with the current value.
func ObserveSync(s *Subject, fn Observer) *Guard {
	g := Observe(s, fn)
	fn(s)
	return g
}

// Release removes the observer. Idempotent.
func (g *Guard) Release() {
	if g == nil || !g.active {
		return
	}
	g.active = false
	g.subject.RemoveObserver(g.handle)
}

// Active reports whether the observer is still registered.
func (g *Guard) Active() bool {
	return g != nil && g.active
}

// GuardSet owns a collection of guards with a single release point.
type GuardSet struct {
	guards []*Guard
}

// Add stores g in the set.
func (gs *GuardSet) Add(g *Guard) {
	if g != nil {
		gs.guards = append(gs.guards, g)
	}
}

// Observe registers fn on s and tracks the guard.
func (gs *GuardSet) Observe(s *Subject, fn Observer) {
	gs.Add(Observe(s, fn))
}

// ReleaseAll releases every guard and empties the set.
func (gs *GuardSet) ReleaseAll() {
	for _, g := range gs.guards {
		g.Release()
	}
	gs.guards = nil
}

// Len returns the number of tracked guards.
func (gs *GuardSet) Len() int {
	return len(gs.guards)
}
