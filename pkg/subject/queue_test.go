package subject

import (
	"sync"
	"testing"
	"time"
)

func TestQueuePreservesOrder(t *testing.T) {
	q := NewUpdateQueue()
	var order []int
	for i := 1; i <= 5; i++ {
		i := i
		q.Post(func() { order = append(order, i) })
	}

	n := q.Drain()
	if n != 5 {
		t.Fatalf("drained %d, want 5", n)
	}
	for i, v := range order {
		if v != i+1 {
			t.Fatalf("order = %v", order)
		}
	}
}

func TestQueueReentrantPostRunsNextDrain(t *testing.T) {
	q := NewUpdateQueue()
	var order []string
	q.Post(func() {
		order = append(order, "first")
		q.Post(func() { order = append(order, "nested") })
	})

	if n := q.Drain(); n != 1 {
		t.Fatalf("first drain ran %d, want 1", n)
	}
	if len(order) != 1 || order[0] != "first" {
		t.Fatalf("after first drain order = %v", order)
	}

	if n := q.Drain(); n != 1 {
		t.Fatalf("second drain ran %d, want 1", n)
	}
	if len(order) != 2 || order[1] != "nested" {
		t.Fatalf("after second drain order = %v", order)
	}
}

func TestQueueFreezeBlocksDrain(t *testing.T) {
	q := NewUpdateQueue()
	ran := false
	q.Post(func() { ran = true })

	release := q.Freeze()
	if n := q.Drain(); n != 0 || ran {
		t.Fatal("drain ran while frozen")
	}

	release()
	if n := q.Drain(); n != 1 || !ran {
		t.Fatal("drain did not run after release")
	}
}

func TestQueueFreezeNests(t *testing.T) {
	q := NewUpdateQueue()
	q.Post(func() {})

	r1 := q.Freeze()
	r2 := q.Freeze()

	r1()
	if n := q.Drain(); n != 0 {
		t.Fatal("drain ran with one freeze outstanding")
	}
	r2()
	if n := q.Drain(); n != 1 {
		t.Fatal("drain did not run after all releases")
	}
}

func TestQueueReleaseIsIdempotent(t *testing.T) {
	q := NewUpdateQueue()
	q.Post(func() {})

	r1 := q.Freeze()
	r2 := q.Freeze()
	r1()
	r1() // double release must not consume r2's freeze
	if n := q.Drain(); n != 0 {
		t.Fatal("double release unfroze the queue")
	}
	r2()
	if n := q.Drain(); n != 1 {
		t.Fatal("drain did not run")
	}
}

func TestQueuePostFromManyGoroutines(t *testing.T) {
	q := NewUpdateQueue()
	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				q.Post(func() {})
			}
		}()
	}
	wg.Wait()

	if n := q.Drain(); n != producers*perProducer {
		t.Errorf("drained %d, want %d", n, producers*perProducer)
	}
}

func TestCoalescedTimerSingleFire(t *testing.T) {
	q := NewUpdateQueue()
	ct := NewCoalescedTimer(q, 20*time.Millisecond)

	fired := 0
	for i := 0; i < 5; i++ {
		ct.Schedule(func() { fired++ })
	}

	time.Sleep(60 * time.Millisecond)
	q.Drain()
	if fired != 1 {
		t.Errorf("fired %d times, want 1", fired)
	}
	if ct.Pending() {
		t.Error("timer still pending after fire")
	}
}

func TestCoalescedTimerRescheduleReplacesCallback(t *testing.T) {
	q := NewUpdateQueue()
	ct := NewCoalescedTimer(q, 20*time.Millisecond)

	var got string
	ct.Schedule(func() { got = "old" })
	ct.Schedule(func() { got = "new" })

	time.Sleep(60 * time.Millisecond)
	q.Drain()
	if got != "new" {
		t.Errorf("got %q, want the replacement callback", got)
	}
}

func TestCoalescedTimerCancel(t *testing.T) {
	q := NewUpdateQueue()
	ct := NewCoalescedTimer(q, 10*time.Millisecond)

	fired := false
	ct.Schedule(func() { fired = true })
	ct.Cancel()

	time.Sleep(40 * time.Millisecond)
	q.Drain()
	if fired {
		t.Error("cancelled callback fired")
	}
	if ct.Pending() {
		t.Error("timer pending after cancel")
	}
}

func TestTeardownRunsLIFO(t *testing.T) {
	reg := NewTeardownRegistry()
	var order []string
	reg.Register("a", func() { order = append(order, "a") })
	reg.Register("b", func() { order = append(order, "b") })
	reg.Register("c", func() { order = append(order, "c") })

	reg.Execute()
	if len(order) != 3 || order[0] != "c" || order[1] != "b" || order[2] != "a" {
		t.Errorf("teardown order = %v, want [c b a]", order)
	}
}

func TestTeardownExecuteOnce(t *testing.T) {
	reg := NewTeardownRegistry()
	runs := 0
	reg.Register("x", func() { runs++ })

	reg.Execute()
	reg.Execute()
	if runs != 1 {
		t.Errorf("teardown ran %d times, want 1", runs)
	}

	reg.Register("late", func() { runs += 10 })
	reg.Execute()
	if runs != 1 {
		t.Errorf("late registration ran, runs=%d", runs)
	}
}
