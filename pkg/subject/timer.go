package subject

import (
	"sync"
	"time"
)

// CoalescedTimer batches bursts of work into a single deferred callback.
// Schedule arms a one-shot timer; scheduling again before it fires
// replaces the pending callback and restarts the window, so N triggers
// within the window produce exactly one invocation. The callback runs on
// the UI goroutine via the update queue.
//
// Used to batch widget rebuilds when many gate subjects change during
// hardware discovery.
type CoalescedTimer struct {
	mu       sync.Mutex
	queue    *UpdateQueue
	window   time.Duration
	timer    *time.Timer
	callback func()
}

// NewCoalescedTimer creates a timer that posts to q after window elapses.
func NewCoalescedTimer(q *UpdateQueue, window time.Duration) *CoalescedTimer {
	return &CoalescedTimer{queue: q, window: window}
}

// Schedule arms the timer with cb, replacing any pending callback and
// restarting the window.
func (t *CoalescedTimer) Schedule(cb func()) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.callback = cb

	if t.timer != nil {
		t.timer.Reset(t.window)
		return
	}
	t.timer = time.AfterFunc(t.window, t.fire)
}

// Cancel drops the pending callback without running it.
func (t *CoalescedTimer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.callback = nil
}

// Pending reports whether a callback is armed.
func (t *CoalescedTimer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *CoalescedTimer) fire() {
	t.mu.Lock()
	// One-shot: clear before posting so the callback may re-schedule.
	t.timer = nil
	cb := t.callback
	t.callback = nil
	t.mu.Unlock()

	if cb != nil {
		t.queue.Post(cb)
	}
}
