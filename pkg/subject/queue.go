package subject

import (
	"sync"
)

// UpdateQueue marshals work from background goroutines onto the UI
// goroutine. Producers call Post from any goroutine; the UI loop calls
// Drain once per tick.
//
// Drain is re-entrant-safe: callbacks posted while draining run on the
// next drain, never the current one. Enqueue order is preserved.
type UpdateQueue struct {
	mu      sync.Mutex
	pending []func()
	frozen  int
}

// NewUpdateQueue creates an empty queue.
func NewUpdateQueue() *UpdateQueue {
	return &UpdateQueue{}
}

// Post appends fn to the queue. Safe from any goroutine.
func (q *UpdateQueue) Post(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Drain runs all callbacks queued before this call, in enqueue order,
// on the calling goroutine. Returns the number of callbacks executed.
// While frozen, Drain is a no-op and callbacks accumulate.
func (q *UpdateQueue) Drain() int {
	q.mu.Lock()
	if q.frozen > 0 || len(q.pending) == 0 {
		q.mu.Unlock()
		return 0
	}
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Freeze pauses draining for the duration of a UI operation that must
// not observe intermediate states (e.g. rebuilding widget trees during a
// grid edit). The returned release function resumes draining; it is safe
// to call exactly once. Freezes nest.
func (q *UpdateQueue) Freeze() (release func()) {
	q.mu.Lock()
	q.frozen++
	q.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			q.mu.Lock()
			if q.frozen > 0 {
				q.frozen--
			}
			q.mu.Unlock()
		})
	}
}

// Len returns the number of queued callbacks.
func (q *UpdateQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

var (
	defaultQueue     *UpdateQueue
	defaultQueueOnce sync.Once
)

// DefaultQueue returns the process-wide update queue drained by the main
// UI loop.
func DefaultQueue() *UpdateQueue {
	defaultQueueOnce.Do(func() {
		defaultQueue = NewUpdateQueue()
	})
	return defaultQueue
}
