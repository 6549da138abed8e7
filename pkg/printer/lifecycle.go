package printer

import (
	"helixscreen/pkg/log"
	"helixscreen/pkg/subject"
)

// LifecycleState is the coarse print job state shown to the user.
type LifecycleState int

const (
	LifecycleIdle LifecycleState = iota
	LifecyclePreparing
	LifecyclePrinting
	LifecyclePaused
	LifecycleComplete
	LifecycleCancelled
	LifecycleError
)

func (s LifecycleState) String() string {
	switch s {
	case LifecycleIdle:
		return "idle"
	case LifecyclePreparing:
		return "preparing"
	case LifecyclePrinting:
		return "printing"
	case LifecyclePaused:
		return "paused"
	case LifecycleComplete:
		return "complete"
	case LifecycleCancelled:
		return "cancelled"
	case LifecycleError:
		return "error"
	default:
		return "unknown"
	}
}

// Active reports whether the state accepts telemetry updates. Terminal
// states freeze their displayed values.
func (s LifecycleState) Active() bool {
	return s == LifecyclePrinting || s == LifecyclePaused || s == LifecyclePreparing
}

// Terminal reports whether the state ends a job.
func (s LifecycleState) Terminal() bool {
	return s == LifecycleComplete || s == LifecycleCancelled || s == LifecycleError
}

// lifecycleStateFromPrintStats maps Klipper print_stats.state strings.
func lifecycleStateFromPrintStats(state string) LifecycleState {
	switch state {
	case "printing":
		return LifecyclePrinting
	case "paused":
		return LifecyclePaused
	case "complete":
		return LifecycleComplete
	case "cancelled":
		return LifecycleCancelled
	case "error":
		return LifecycleError
	case "standby":
		return LifecycleIdle
	default:
		return LifecycleIdle
	}
}

// Lifecycle projects print job telemetry into subjects, freezing values
// when a job reaches a terminal state. Moonraker keeps streaming zeroed
// progress and duration after completion; ignoring telemetry outside
// active states keeps the display stable.
//
// UI goroutine only.
type Lifecycle struct {
	logger *log.Logger

	state LifecycleState

	// Subjects bound by widgets.
	StateSubject     *subject.Subject // int, LifecycleState
	Filename         *subject.Subject // string
	Progress         *subject.Subject // int, percent 0..100
	Layer            *subject.Subject // int, current layer
	TotalLayers      *subject.Subject // int
	ElapsedSeconds   *subject.Subject // int
	RemainingSeconds *subject.Subject // int
	SpeedFactor      *subject.Subject // int, percent
	FlowFactor       *subject.Subject // int, percent

	// onPrintEnded fires once when an active job returns to idle,
	// letting viewers clear geometry and progress.
	onPrintEnded []func()
}

// NewLifecycle creates an idle lifecycle with zeroed subjects.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		logger:           log.New("PrintLifecycle"),
		state:            LifecycleIdle,
		StateSubject:     subject.NewInt(int64(LifecycleIdle)),
		Filename:         subject.NewString(256, ""),
		Progress:         subject.NewInt(0),
		Layer:            subject.NewInt(0),
		TotalLayers:      subject.NewInt(0),
		ElapsedSeconds:   subject.NewInt(0),
		RemainingSeconds: subject.NewInt(0),
		SpeedFactor:      subject.NewInt(100),
		FlowFactor:       subject.NewInt(100),
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() LifecycleState {
	return l.state
}

// OnPrintEnded registers fn to run when a job transitions back to idle.
func (l *Lifecycle) OnPrintEnded(fn func()) {
	l.onPrintEnded = append(l.onPrintEnded, fn)
}

// SetState applies a state transition reported by print_stats.
func (l *Lifecycle) SetState(next LifecycleState) {
	prev := l.state
	if prev == next {
		return
	}
	l.state = next
	l.logger.Info("print state %s -> %s", prev, next)

	switch {
	case next == LifecycleComplete:
		// Freeze a finished job at its end values. Elapsed keeps its
		// last reading; progress snaps to done.
		l.Progress.SetInt(100)
		l.RemainingSeconds.SetInt(0)
		if total := l.TotalLayers.GetInt(); total > 0 {
			l.Layer.SetInt(total)
		}
	case next == LifecycleIdle && (prev.Active() || prev.Terminal()):
		l.Progress.SetInt(0)
		l.Layer.SetInt(0)
		l.TotalLayers.SetInt(0)
		l.ElapsedSeconds.SetInt(0)
		l.RemainingSeconds.SetInt(0)
		l.Filename.SetString("")
		for _, fn := range l.onPrintEnded {
			fn()
		}
	}

	l.StateSubject.SetInt(int64(next))
}

// SetFilename records the job filename. Accepted in any state so the UI
// can show the upcoming file while Moonraker is still preparing.
func (l *Lifecycle) SetFilename(name string) {
	l.Filename.SetString(name)
}

// UpdateProgress applies a progress fraction in [0,1]. Ignored outside
// active states.
func (l *Lifecycle) UpdateProgress(fraction float64) {
	if !l.state.Active() {
		return
	}
	pct := int64(fraction*100 + 0.5)
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	l.Progress.SetInt(pct)
}

// UpdateLayers applies layer counters. Ignored outside active states.
func (l *Lifecycle) UpdateLayers(current, total int64) {
	if !l.state.Active() {
		return
	}
	if total > 0 {
		l.TotalLayers.SetInt(total)
	}
	if current >= 0 {
		l.Layer.SetInt(current)
	}
}

// UpdateTimes applies elapsed/remaining seconds. Ignored outside active
// states; elapsed never moves backwards while a job runs.
func (l *Lifecycle) UpdateTimes(elapsed, remaining int64) {
	if !l.state.Active() {
		return
	}
	if elapsed >= l.ElapsedSeconds.GetInt() {
		l.ElapsedSeconds.SetInt(elapsed)
	}
	if remaining >= 0 {
		l.RemainingSeconds.SetInt(remaining)
	}
}

// UpdateFactors applies speed/flow percentages. Ignored outside active
// states.
func (l *Lifecycle) UpdateFactors(speedPct, flowPct int64) {
	if !l.state.Active() {
		return
	}
	if speedPct > 0 {
		l.SpeedFactor.SetInt(speedPct)
	}
	if flowPct > 0 {
		l.FlowFactor.SetInt(flowPct)
	}
}
