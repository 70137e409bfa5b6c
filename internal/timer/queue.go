// Package timer provides the one-shot timer service that resumes cast
// sequences. The queue is advanced explicitly by the host loop so callbacks
// always run on the simulation goroutine.
package timer

import (
	"container/heap"
	"sync"
	"time"
)

// Handle identifies a scheduled timer. The zero Handle never refers to a
// timer.
type Handle uint64

// Service is the contract the cast sequencer requires: schedule a callback
// for a point in time and cancel it again. Cancel must be safe to call with
// handles that already fired or were already cancelled.
type Service interface {
	Schedule(at time.Time, fn func()) Handle
	Cancel(h Handle) bool
}

type entry struct {
	handle Handle
	at     time.Time
	seq    uint64
	fn     func()
	index  int
}

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*entry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// Queue is a min-heap of one-shot timers ordered by fire time, then by
// scheduling order. It is safe for concurrent Schedule and Cancel calls;
// callbacks run on the goroutine calling Advance without the lock held.
type Queue struct {
	mu      sync.Mutex
	nextID  uint64
	seq     uint64
	entries entryHeap
	byID    map[Handle]*entry
	fired   uint64
}

// NewQueue constructs an empty timer queue.
func NewQueue() *Queue {
	return &Queue{byID: make(map[Handle]*entry)}
}

// Schedule registers fn to run on the first Advance whose clock reading is at
// or after at. A nil callback is ignored and yields the zero Handle.
func (q *Queue) Schedule(at time.Time, fn func()) Handle {
	if q == nil || fn == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	q.seq++
	e := &entry{handle: Handle(q.nextID), at: at, seq: q.seq, fn: fn}
	heap.Push(&q.entries, e)
	q.byID[e.handle] = e
	return e.handle
}

// Cancel removes a pending timer. It reports false for the zero handle and
// for timers that already fired or were already cancelled.
func (q *Queue) Cancel(h Handle) bool {
	if q == nil || h == 0 {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	e, ok := q.byID[h]
	if !ok {
		return false
	}
	delete(q.byID, h)
	heap.Remove(&q.entries, e.index)
	return true
}

// Advance fires every timer due at now, in order, and returns how many fired.
// Timers scheduled by a callback that are already due fire in the same call.
func (q *Queue) Advance(now time.Time) int {
	if q == nil {
		return 0
	}
	fired := 0
	for {
		q.mu.Lock()
		if len(q.entries) == 0 || q.entries[0].at.After(now) {
			q.mu.Unlock()
			return fired
		}
		e := heap.Pop(&q.entries).(*entry)
		delete(q.byID, e.handle)
		q.fired++
		q.mu.Unlock()

		e.fn()
		fired++
	}
}

// Pending reports the number of scheduled timers.
func (q *Queue) Pending() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Next returns the fire time of the earliest pending timer.
func (q *Queue) Next() (time.Time, bool) {
	if q == nil {
		return time.Time{}, false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].at, true
}

// Fired reports how many callbacks the queue has run.
func (q *Queue) Fired() uint64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.fired
}
