package timer

import (
	"testing"
	"time"
)

func TestQueueFiresInTimeThenScheduleOrder(t *testing.T) {
	q := NewQueue()
	base := time.Unix(100, 0)
	var order []string

	q.Schedule(base.Add(2*time.Second), func() { order = append(order, "late") })
	q.Schedule(base.Add(time.Second), func() { order = append(order, "first") })
	q.Schedule(base.Add(time.Second), func() { order = append(order, "second") })

	if fired := q.Advance(base); fired != 0 {
		t.Fatalf("expected no timers due at base, got %d", fired)
	}
	if fired := q.Advance(base.Add(time.Second)); fired != 2 {
		t.Fatalf("expected two timers to fire, got %d", fired)
	}
	if fired := q.Advance(base.Add(5 * time.Second)); fired != 1 {
		t.Fatalf("expected remaining timer to fire, got %d", fired)
	}

	want := []string{"first", "second", "late"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}
	if q.Fired() != 3 {
		t.Fatalf("expected fired counter 3, got %d", q.Fired())
	}
}

func TestQueueCancelIsIdempotent(t *testing.T) {
	q := NewQueue()
	base := time.Unix(0, 0)
	called := false

	h := q.Schedule(base.Add(time.Second), func() { called = true })
	if h == 0 {
		t.Fatalf("expected non-zero handle")
	}
	if !q.Cancel(h) {
		t.Fatalf("expected first cancel to succeed")
	}
	if q.Cancel(h) {
		t.Fatalf("expected second cancel to report false")
	}
	if q.Cancel(0) {
		t.Fatalf("expected zero handle cancel to report false")
	}
	q.Advance(base.Add(time.Hour))
	if called {
		t.Fatalf("expected cancelled timer not to fire")
	}
	if q.Pending() != 0 {
		t.Fatalf("expected empty queue, got %d pending", q.Pending())
	}
}

func TestQueueCancelAfterFireReportsFalse(t *testing.T) {
	q := NewQueue()
	base := time.Unix(0, 0)
	h := q.Schedule(base, func() {})
	q.Advance(base)
	if q.Cancel(h) {
		t.Fatalf("expected cancel of fired timer to report false")
	}
}

func TestQueueCallbackSchedulesDueTimer(t *testing.T) {
	q := NewQueue()
	base := time.Unix(0, 0)
	count := 0
	q.Schedule(base, func() {
		count++
		q.Schedule(base, func() { count++ })
		q.Schedule(base.Add(time.Second), func() { count++ })
	})

	if fired := q.Advance(base); fired != 2 {
		t.Fatalf("expected chained due timer to fire in the same advance, got %d", fired)
	}
	if count != 2 {
		t.Fatalf("expected two callbacks, got %d", count)
	}
	next, ok := q.Next()
	if !ok || !next.Equal(base.Add(time.Second)) {
		t.Fatalf("expected next timer at +1s, got %v (ok=%v)", next, ok)
	}
}

func TestQueueCallbackCancelsSibling(t *testing.T) {
	q := NewQueue()
	base := time.Unix(0, 0)
	var sibling Handle
	siblingFired := false
	q.Schedule(base, func() { q.Cancel(sibling) })
	sibling = q.Schedule(base, func() { siblingFired = true })

	q.Advance(base)
	if siblingFired {
		t.Fatalf("expected sibling cancelled from a callback not to fire")
	}
}

func TestQueueIgnoresNilCallback(t *testing.T) {
	q := NewQueue()
	if h := q.Schedule(time.Unix(0, 0), nil); h != 0 {
		t.Fatalf("expected zero handle for nil callback, got %d", h)
	}
	if q.Pending() != 0 {
		t.Fatalf("expected nothing scheduled")
	}
}
