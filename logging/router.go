package logging

import (
	"context"
	"errors"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

type RouterStats struct {
	EventsTotal   uint64            `json:"eventsTotal"`
	DroppedTotal  uint64            `json:"droppedTotal"`
	FilteredTotal uint64            `json:"filteredTotal"`
	Queued        int               `json:"queued"`
	SinkDrops     map[string]uint64 `json:"sinkDrops"`
	SinkFailures  map[string]uint64 `json:"sinkFailures"`
}

var ErrRouterClosed = errors.New("logging: router closed")

const (
	defaultRouterBuffer = 512
	minSinkBuffer       = 32
	maxSinkBuffer       = 1024
)

// Router hands published events to one dispatcher goroutine, which stamps
// them and copies them into a bounded queue per sink. Publish never blocks:
// when the router or a sink queue is full the event is dropped and counted.
type Router struct {
	minSeverity Severity
	fields      map[string]any
	clock       Clock
	fallback    *log.Logger

	in      chan Event
	stop    chan struct{}
	workers []*sinkWorker
	wg      sync.WaitGroup
	closed  atomic.Bool

	routed   atomic.Uint64
	dropped  atomic.Uint64
	filtered atomic.Uint64
	dropWarn *warnLimiter
}

func NewRouter(cfg Config, clock Clock, fallback *log.Logger, namedSinks ...NamedSink) *Router {
	if clock == nil {
		clock = SystemClock{}
	}
	if fallback == nil {
		fallback = log.New(os.Stderr, "[logging] ", log.LstdFlags)
	}
	capacity := cfg.BufferSize
	if capacity <= 0 {
		capacity = defaultRouterBuffer
	}

	r := &Router{
		minSeverity: cfg.MinimumSeverity,
		fields:      cfg.CloneFields(),
		clock:       clock,
		fallback:    fallback,
		in:          make(chan Event, capacity),
		stop:        make(chan struct{}),
		dropWarn:    newWarnLimiter(cfg.DropWarnInterval),
	}
	perSink := min(max(capacity, minSinkBuffer), maxSinkBuffer)
	for _, named := range namedSinks {
		if named.Sink != nil {
			r.workers = append(r.workers, newSinkWorker(named.Name, named.Sink, perSink, fallback))
		}
	}

	for _, w := range r.workers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			w.run()
		}()
	}
	r.wg.Add(1)
	go r.dispatch()
	return r
}

func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closed.Load() {
		return
	}
	if event.Severity < r.minSeverity {
		r.filtered.Add(1)
		return
	}
	select {
	case r.in <- event:
	default:
		r.dropped.Add(1)
		if r.dropWarn.allow(r.clock.Now()) {
			r.fallback.Printf("dropping event type=%s tick=%d", event.Type, event.Tick)
		}
	}
}

// dispatch runs until Close, then flushes whatever is still queued and
// closes the sink queues so the workers finish.
func (r *Router) dispatch() {
	defer r.wg.Done()
	defer func() {
		for _, w := range r.workers {
			close(w.queue)
		}
	}()
	for {
		select {
		case event := <-r.in:
			r.route(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.in:
					r.route(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) route(event Event) {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.routed.Add(1)
	for _, w := range r.workers {
		w.offer(event)
	}
}

// Close stops accepting events, waits for queued events to reach the sinks
// and closes them. A second Close reports ErrRouterClosed.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return ErrRouterClosed
	}
	close(r.stop)

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	var errs []error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) Stats() RouterStats {
	stats := RouterStats{
		EventsTotal:   r.routed.Load(),
		DroppedTotal:  r.dropped.Load(),
		FilteredTotal: r.filtered.Load(),
		Queued:        len(r.in),
		SinkDrops:     make(map[string]uint64, len(r.workers)),
		SinkFailures:  make(map[string]uint64, len(r.workers)),
	}
	for _, w := range r.workers {
		stats.SinkDrops[w.name] = w.dropped.Load()
		stats.SinkFailures[w.name] = w.failed.Load()
	}
	return stats
}

// Sink returns the sink registered under name, or nil.
func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

// warnLimiter lets one warning through per interval.
type warnLimiter struct {
	interval time.Duration
	next     atomic.Int64
}

func newWarnLimiter(interval time.Duration) *warnLimiter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &warnLimiter{interval: interval}
}

func (l *warnLimiter) allow(now time.Time) bool {
	next := l.next.Load()
	if next != 0 && now.UnixNano() < next {
		return false
	}
	return l.next.CompareAndSwap(next, now.Add(l.interval).UnixNano())
}
