package printer

import (
	"testing"
)

func TestLifecycleCompleteFreezesValues(t *testing.T) {
	l := NewLifecycle()
	l.SetState(LifecyclePrinting)
	l.UpdateProgress(0.97)
	l.UpdateLayers(97, 100)
	l.UpdateTimes(3600, 120)

	l.SetState(LifecycleComplete)

	if got := l.Progress.GetInt(); got != 100 {
		t.Errorf("progress = %d, want 100", got)
	}
	if got := l.RemainingSeconds.GetInt(); got != 0 {
		t.Errorf("remaining = %d, want 0", got)
	}
	if got := l.ElapsedSeconds.GetInt(); got != 3600 {
		t.Errorf("elapsed = %d, want last value 3600", got)
	}
	if got := l.Layer.GetInt(); got != 100 {
		t.Errorf("layer = %d, want total 100", got)
	}

	// Moonraker keeps streaming post-terminal zeroes; they must not
	// corrupt the frozen display.
	l.UpdateProgress(0)
	l.UpdateTimes(0, 0)
	l.UpdateLayers(0, 0)

	if got := l.Progress.GetInt(); got != 100 {
		t.Errorf("progress after post-terminal update = %d, want 100", got)
	}
	if got := l.ElapsedSeconds.GetInt(); got != 3600 {
		t.Errorf("elapsed after post-terminal update = %d, want 3600", got)
	}
}

func TestLifecycleIdleTransitionClearsAndFiresPrintEnded(t *testing.T) {
	l := NewLifecycle()
	ended := 0
	l.OnPrintEnded(func() { ended++ })

	l.SetState(LifecyclePrinting)
	l.SetFilename("benchy.gcode")
	l.UpdateProgress(0.5)

	l.SetState(LifecycleIdle)
	if ended != 1 {
		t.Errorf("print_ended fired %d times, want 1", ended)
	}
	if got := l.Progress.GetInt(); got != 0 {
		t.Errorf("progress = %d after idle, want 0", got)
	}
	if got := l.Filename.GetString(); got != "" {
		t.Errorf("filename = %q after idle, want empty", got)
	}

	// Idle to idle must not re-fire.
	l.SetState(LifecycleIdle)
	if ended != 1 {
		t.Errorf("print_ended fired %d times, want 1", ended)
	}
}

func TestLifecycleElapsedMonotonic(t *testing.T) {
	l := NewLifecycle()
	l.SetState(LifecyclePrinting)

	l.UpdateTimes(100, 500)
	l.UpdateTimes(90, 490) // clock skew from server; must not go backwards
	if got := l.ElapsedSeconds.GetInt(); got != 100 {
		t.Errorf("elapsed = %d, want 100", got)
	}
	l.UpdateTimes(110, 480)
	if got := l.ElapsedSeconds.GetInt(); got != 110 {
		t.Errorf("elapsed = %d, want 110", got)
	}
}

func TestLifecycleTelemetryIgnoredWhenIdle(t *testing.T) {
	l := NewLifecycle()

	l.UpdateProgress(0.5)
	l.UpdateLayers(10, 20)
	l.UpdateTimes(100, 200)
	l.UpdateFactors(150, 95)

	if l.Progress.GetInt() != 0 || l.Layer.GetInt() != 0 ||
		l.ElapsedSeconds.GetInt() != 0 || l.SpeedFactor.GetInt() != 100 {
		t.Error("idle state accepted telemetry")
	}
}

func TestLifecycleStateMapping(t *testing.T) {
	cases := map[string]LifecycleState{
		"printing":  LifecyclePrinting,
		"paused":    LifecyclePaused,
		"complete":  LifecycleComplete,
		"cancelled": LifecycleCancelled,
		"error":     LifecycleError,
		"standby":   LifecycleIdle,
		"unknown":   LifecycleIdle,
	}
	for in, want := range cases {
		if got := lifecycleStateFromPrintStats(in); got != want {
			t.Errorf("state %q -> %s, want %s", in, got, want)
		}
	}
}

func TestLifecycleActiveAndTerminal(t *testing.T) {
	for _, s := range []LifecycleState{LifecyclePrinting, LifecyclePaused, LifecyclePreparing} {
		if !s.Active() || s.Terminal() {
			t.Errorf("%s: active=%v terminal=%v", s, s.Active(), s.Terminal())
		}
	}
	for _, s := range []LifecycleState{LifecycleComplete, LifecycleCancelled, LifecycleError} {
		if s.Active() || !s.Terminal() {
			t.Errorf("%s: active=%v terminal=%v", s, s.Active(), s.Terminal())
		}
	}
	if LifecycleIdle.Active() || LifecycleIdle.Terminal() {
		t.Error("idle must be neither active nor terminal")
	}
}
