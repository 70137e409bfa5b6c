package logging

import (
	"log"
	"sync/atomic"
	"time"
)

const (
	retryBase     = 100 * time.Millisecond
	retryMaxShift = 5
)

// sinkWorker owns one sink and writes to it from its own goroutine. After a
// failed write it backs off exponentially before the next one.
type sinkWorker struct {
	name     string
	sink     Sink
	queue    chan Event
	fallback *log.Logger

	streak  int
	resume  time.Time
	dropped atomic.Uint64
	failed  atomic.Uint64
}

func newSinkWorker(name string, sink Sink, capacity int, fallback *log.Logger) *sinkWorker {
	return &sinkWorker{
		name:     name,
		sink:     sink,
		queue:    make(chan Event, capacity),
		fallback: fallback,
	}
}

// offer queues a private copy of event, dropping it when the sink is behind.
func (w *sinkWorker) offer(event Event) {
	select {
	case w.queue <- cloneForFields(event):
	default:
		w.dropped.Add(1)
		w.fallback.Printf("sink %s backlog full dropping event type=%s", w.name, event.Type)
	}
}

func (w *sinkWorker) run() {
	for event := range w.queue {
		if w.streak > 0 {
			if wait := time.Until(w.resume); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := w.sink.Write(event); err != nil {
			w.backoff(err)
			continue
		}
		w.streak = 0
	}
}

func (w *sinkWorker) backoff(err error) {
	w.failed.Add(1)
	w.streak++
	delay := retryBase << min(w.streak, retryMaxShift)
	w.resume = time.Now().Add(delay)
	w.fallback.Printf("sink %s failed: %v (retry in %s)", w.name, err, delay)
}
